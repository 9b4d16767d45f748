package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// InsufficientCreditsCode сообщается клиентам при нулевом балансе. Это код приложения,
// а не HTTP-статус: клиент должен предложить покупку кредитов.
const InsufficientCreditsCode = 402

// ConsumeResult описывает результат списания одного кредита.
type ConsumeResult struct {
	Success    bool             `json:"success"`
	Consumed   bool             `json:"consumed"`
	CreditType model.CreditType `json:"credit_type"`
	Balance    int64            `json:"balance"`
	Trial      bool             `json:"trial,omitempty"`
}

// consumeInTx списывает один кредит внутри транзакции. Во время пробного периода
// кредиты не списываются. Проверка баланса и списание выполняются одним условным обновлением.
func (s *Service) consumeInTx(ctx context.Context, tx repository.Tx, userID int64, ct model.CreditType, ref *model.Reference) (*ConsumeResult, error) {
	owner, ok := ct.Role()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCreditType, ct)
	}

	role, flags, err := lockTrialFlags(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if role != owner {
		return nil, fmt.Errorf("%w: %s credits for %s", ErrInvalidCreditType, ct, role)
	}

	if trialStatus(flags, s.now()).Active {
		balance, err := lockedBalance(ctx, tx, role, userID, ct)
		if err != nil {
			return nil, err
		}
		return &ConsumeResult{Success: true, CreditType: ct, Balance: balance, Trial: true}, nil
	}

	balance, err := tx.ConsumeCredit(ctx, userID, ct, model.ReasonConsumed, ref)
	if err != nil {
		return nil, err
	}
	return &ConsumeResult{Success: true, Consumed: true, CreditType: ct, Balance: balance}, nil
}

func lockedBalance(ctx context.Context, tx repository.Tx, role model.Role, userID int64, ct model.CreditType) (int64, error) {
	if role == model.RoleEmployer {
		p, err := tx.LockEmployerProfile(ctx, userID)
		if err != nil {
			return 0, err
		}
		b, _ := p.Balance(ct)
		return b, nil
	}
	p, err := tx.LockJobseekerProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	b, _ := p.Balance(ct)
	return b, nil
}

// ConsumeCredit списывает один кредит вида ct у пользователя.
// При нулевом балансе возвращает repository.ErrInsufficientCredits и баланс не меняется.
func (s *Service) ConsumeCredit(ctx context.Context, userID int64, ct model.CreditType, ref *model.Reference) (*ConsumeResult, error) {
	var res *ConsumeResult
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = s.consumeInTx(ctx, tx, userID, ct, ref)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			metrics.InsufficientCredits.WithLabelValues(string(ct)).Inc()
			s.logger.Debug("insufficient credits", zap.Int64("userID", userID), zap.String("creditType", string(ct)))
		}
		return nil, err
	}

	observeConsumption(res)
	return res, nil
}

// ConsumeEmployerCredit списывает кредит работодателя.
func (s *Service) ConsumeEmployerCredit(ctx context.Context, employerID int64, ct model.CreditType) (*ConsumeResult, error) {
	if owner, _ := ct.Role(); owner != model.RoleEmployer {
		return nil, fmt.Errorf("%w: %q is not an employer credit", ErrInvalidCreditType, ct)
	}
	return s.ConsumeCredit(ctx, employerID, ct, nil)
}

// ConsumeAlertCredit списывает кредит оповещения соискателя.
func (s *Service) ConsumeAlertCredit(ctx context.Context, jobseekerID int64) (*ConsumeResult, error) {
	return s.ConsumeCredit(ctx, jobseekerID, model.CreditAlert, nil)
}

func observeConsumption(res *ConsumeResult) {
	if res == nil {
		return
	}
	if res.Consumed {
		metrics.CreditsConsumed.WithLabelValues(string(res.CreditType)).Inc()
	} else if res.Trial {
		metrics.TrialConsumptions.WithLabelValues(string(res.CreditType)).Inc()
	}
}
