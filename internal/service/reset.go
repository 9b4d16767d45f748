package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// ResetResult описывает итог ежегодного сброса.
type ResetResult struct {
	Year       int `json:"year"`
	Employers  int `json:"employers"`
	Jobseekers int `json:"jobseekers"`
}

// ResetAnnualCredits обнуляет кредиты всех профилей без бессрочного премиума, которые
// ещё не сбрасывались в текущем году. Повторный вызов в том же году ничего не меняет.
// Ошибка по одному пользователю не останавливает остальных и возвращается вместе с итогом.
func (s *Service) ResetAnnualCredits(ctx context.Context) (*ResetResult, error) {
	year := s.now().Year()
	res := &ResetResult{Year: year}

	var errs []error
	for _, role := range []model.Role{model.RoleEmployer, model.RoleJobseeker} {
		ids, err := s.repo.ListResetCandidates(ctx, role, year)
		if err != nil {
			return res, fmt.Errorf("list %s reset candidates: %w", role, err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			done, err := s.resetProfile(ctx, role, id, year)
			if err != nil {
				s.logger.Error("annual reset failed", zap.Error(err), zap.Int64("userID", id), zap.String("role", string(role)))
				errs = append(errs, fmt.Errorf("reset user %d: %w", id, err))
				continue
			}
			if !done {
				continue
			}

			metrics.AnnualResetProfiles.WithLabelValues(string(role)).Inc()
			if role == model.RoleEmployer {
				res.Employers++
			} else {
				res.Jobseekers++
			}
		}
	}

	s.logger.Info("annual credit reset finished",
		zap.Int("year", year),
		zap.Int("employers", res.Employers),
		zap.Int("jobseekers", res.Jobseekers),
	)
	return res, errors.Join(errs...)
}

func resetDue(flags model.TrialFlags, last *int, year int) bool {
	if flags.HasPremiumIndefiniteTrial {
		return false
	}
	return last == nil || *last < year
}

// resetProfile сбрасывает один профиль под блокировкой строки. Условие сброса проверяется
// повторно внутри транзакции, поэтому параллельный запуск не сбросит профиль дважды.
func (s *Service) resetProfile(ctx context.Context, role model.Role, userID int64, year int) (bool, error) {
	done := false
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var balances []model.CreditGrant

		switch role {
		case model.RoleEmployer:
			p, err := tx.LockEmployerProfile(ctx, userID)
			if err != nil {
				return err
			}
			if !resetDue(p.TrialFlags, p.LastAnnualCreditResetYear, year) {
				return nil
			}
			for _, ct := range model.EmployerCreditTypes {
				b, _ := p.Balance(ct)
				balances = append(balances, model.CreditGrant{CreditType: ct, Amount: b})
			}
		case model.RoleJobseeker:
			p, err := tx.LockJobseekerProfile(ctx, userID)
			if err != nil {
				return err
			}
			if !resetDue(p.TrialFlags, p.LastAnnualCreditResetYear, year) {
				return nil
			}
			balances = append(balances, model.CreditGrant{CreditType: model.CreditAlert, Amount: p.CurrentAlertCredits})
		default:
			return ErrInvalidRole
		}

		for _, b := range balances {
			if b.Amount == 0 {
				continue
			}
			_, err := tx.ApplyCredit(ctx, model.CreditEntry{
				UserID:     userID,
				CreditType: b.CreditType,
				Amount:     -b.Amount,
				Reason:     model.ReasonAnnualReset,
			})
			if err != nil {
				return fmt.Errorf("reset %s: %w", b.CreditType, err)
			}
		}

		done = true
		return tx.MarkAnnualReset(ctx, role, userID, year)
	})
	return done, err
}

// RunAnnualResetScheduler периодически запускает ежегодный сброс до отмены ctx.
// Сброс идемпотентен в пределах года, поэтому частый запуск безопасен.
func (s *Service) RunAnnualResetScheduler(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.ResetAnnualCredits(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("annual reset run error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
