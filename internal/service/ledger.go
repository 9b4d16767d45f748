package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// recordCredit проверяет, что вид кредитов принадлежит роли пользователя, и пишет
// изменение через Tx.ApplyCredit. Отрицательный итог не блокируется здесь:
// достаточность баланса проверяет вызывающий код, хранилище отвергает запись ниже нуля.
func recordCredit(ctx context.Context, tx repository.Tx, e model.CreditEntry) (int64, error) {
	owner, ok := e.CreditType.Role()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCreditType, e.CreditType)
	}

	u, err := tx.GetUser(ctx, e.UserID)
	if err != nil {
		return 0, err
	}
	if u.Role != owner {
		return 0, fmt.Errorf("%w: %s credits for %s", ErrInvalidCreditType, e.CreditType, u.Role)
	}

	return tx.ApplyCredit(ctx, e)
}

// RecordCredit изменяет баланс пользователя на entry.Amount и записывает строку журнала.
func (s *Service) RecordCredit(ctx context.Context, entry model.CreditEntry) (int64, error) {
	var balance int64
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		balance, err = recordCredit(ctx, tx, entry)
		return err
	})
	if err != nil {
		return 0, err
	}

	observeEntries(entry)
	return balance, nil
}

// MaxCreditGrant ограничивает одно ручное начисление.
const MaxCreditGrant = 1_000_000

// GrantCredits начисляет кредиты вручную. Пустая причина означает admin_grant.
func (s *Service) GrantCredits(ctx context.Context, userID int64, ct model.CreditType, amount int64, reason model.Reason) (int64, error) {
	if amount <= 0 || amount > MaxCreditGrant {
		return 0, fmt.Errorf("%w: grant must be between 1 and %d, got %d", ErrInvalidAmount, MaxCreditGrant, amount)
	}
	if reason == "" {
		reason = model.ReasonAdminGrant
	}

	return s.RecordCredit(ctx, model.CreditEntry{
		UserID:     userID,
		CreditType: ct,
		Amount:     amount,
		Reason:     reason,
	})
}

func observeEntries(entries ...model.CreditEntry) {
	for _, e := range entries {
		if e.Amount > 0 {
			metrics.CreditsGranted.WithLabelValues(string(e.CreditType), string(e.Reason)).Add(float64(e.Amount))
		}
	}
}

// CreditStatus описывает балансы, уровень и пробный период пользователя.
type CreditStatus struct {
	UserID                    int64                      `json:"user_id"`
	Role                      model.Role                 `json:"role"`
	Balances                  map[model.CreditType]int64 `json:"balances"`
	FeatureTier               model.FeatureTier          `json:"feature_tier,omitempty"`
	AutoApplyEnabled          bool                       `json:"auto_apply_enabled,omitempty"`
	ActivePackageID           *int64                     `json:"active_package_id,omitempty"`
	LastAnnualCreditResetYear *int                       `json:"last_annual_credit_reset_year,omitempty"`
	Trial                     TrialStatus                `json:"trial"`
}

// GetCreditStatus возвращает текущие балансы и информацию о пробном периоде.
func (s *Service) GetCreditStatus(ctx context.Context, userID int64) (*CreditStatus, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	st := &CreditStatus{UserID: u.ID, Role: u.Role, Balances: make(map[model.CreditType]int64)}

	switch u.Role {
	case model.RoleEmployer:
		p, err := s.repo.GetEmployerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, ct := range model.EmployerCreditTypes {
			st.Balances[ct], _ = p.Balance(ct)
		}
		st.FeatureTier = p.FeatureTier
		st.LastAnnualCreditResetYear = p.LastAnnualCreditResetYear
		st.Trial = trialStatus(p.TrialFlags, now)
	case model.RoleJobseeker:
		p, err := s.repo.GetJobseekerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		st.Balances[model.CreditAlert] = p.CurrentAlertCredits
		st.AutoApplyEnabled = p.AutoApplyEnabled
		st.ActivePackageID = p.ActivePackageID
		st.LastAnnualCreditResetYear = p.LastAnnualCreditResetYear
		st.Trial = trialStatus(p.TrialFlags, now)
	default:
		return nil, ErrInvalidRole
	}

	return st, nil
}

// TransactionPage содержит страницу журнала кредитов.
type TransactionPage struct {
	Transactions []model.CreditTransaction `json:"transactions"`
	Total        int                       `json:"total"`
	Limit        int                       `json:"limit"`
	Offset       int                       `json:"offset"`
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListCreditTransactions возвращает журнал кредитов пользователя, новые записи первыми.
func (s *Service) ListCreditTransactions(ctx context.Context, userID int64, limit, offset int) (*TransactionPage, error) {
	limit, offset = normalizePage(limit, offset)
	txs, total, err := s.repo.ListCreditTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.CreditTransaction{}
	}
	return &TransactionPage{Transactions: txs, Total: total, Limit: limit, Offset: offset}, nil
}

// ListPackages возвращает активные пакеты для роли пользователя.
func (s *Service) ListPackages(ctx context.Context, userID int64) ([]model.Package, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == model.RoleAdmin {
		employer, err := s.repo.ListPackages(ctx, model.RoleEmployer, false)
		if err != nil {
			return nil, err
		}
		jobseeker, err := s.repo.ListPackages(ctx, model.RoleJobseeker, false)
		if err != nil {
			return nil, err
		}
		return append(employer, jobseeker...), nil
	}
	return s.repo.ListPackages(ctx, u.Role, true)
}

func daysFrom(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 24 * time.Hour)
}
