package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// TrialType описывает вид активного пробного периода.
type TrialType string

const (
	TrialNone     TrialType = "none"
	TrialStandard TrialType = "standard"
	TrialPremium  TrialType = "premium_indefinite"
)

// TrialStatus описывает результат проверки пробного периода.
type TrialStatus struct {
	Active    bool       `json:"active"`
	Type      TrialType  `json:"type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// trialStatus вычисляет состояние пробного периода на момент now.
// Бессрочный премиум проверяется первым и всегда побеждает.
func trialStatus(f model.TrialFlags, now time.Time) TrialStatus {
	if f.HasPremiumIndefiniteTrial {
		return TrialStatus{Active: true, Type: TrialPremium}
	}
	if f.HasStandardTrialActivated && f.StandardTrialEndDate != nil && f.StandardTrialEndDate.After(now) {
		end := *f.StandardTrialEndDate
		return TrialStatus{Active: true, Type: TrialStandard, ExpiresAt: &end}
	}
	return TrialStatus{Type: TrialNone}
}

// lockTrialFlags блокирует профиль пользователя и возвращает его роль и флаги пробного периода.
func lockTrialFlags(ctx context.Context, tx repository.Tx, userID int64) (model.Role, model.TrialFlags, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return "", model.TrialFlags{}, err
	}

	switch u.Role {
	case model.RoleEmployer:
		p, err := tx.LockEmployerProfile(ctx, userID)
		if err != nil {
			return "", model.TrialFlags{}, err
		}
		return u.Role, p.TrialFlags, nil
	case model.RoleJobseeker:
		p, err := tx.LockJobseekerProfile(ctx, userID)
		if err != nil {
			return "", model.TrialFlags{}, err
		}
		return u.Role, p.TrialFlags, nil
	}
	return "", model.TrialFlags{}, ErrInvalidRole
}

// HasActiveTrial сообщает, действует ли у пользователя пробный период.
func (s *Service) HasActiveTrial(ctx context.Context, userID int64) (TrialStatus, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return TrialStatus{}, err
	}

	var flags model.TrialFlags
	switch u.Role {
	case model.RoleEmployer:
		p, err := s.repo.GetEmployerProfile(ctx, userID)
		if err != nil {
			return TrialStatus{}, err
		}
		flags = p.TrialFlags
	case model.RoleJobseeker:
		p, err := s.repo.GetJobseekerProfile(ctx, userID)
		if err != nil {
			return TrialStatus{}, err
		}
		flags = p.TrialFlags
	default:
		return TrialStatus{}, ErrInvalidRole
	}

	return trialStatus(flags, s.now()), nil
}

// TrialActivation описывает результат активации стандартного пробного периода.
type TrialActivation struct {
	EndDate   time.Time           `json:"end_date"`
	PackageID *int64              `json:"package_id,omitempty"`
	Granted   []model.CreditGrant `json:"granted"`
}

// ActivateStandardTrial однократно активирует стандартный пробный период:
// ставит флаг, вычисляет дату окончания и начисляет кредиты пробного пакета.
func (s *Service) ActivateStandardTrial(ctx context.Context, userID int64) (*TrialActivation, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleEmployer && u.Role != model.RoleJobseeker {
		return nil, ErrInvalidRole
	}

	pkg, err := s.repo.GetTrialPackage(ctx, u.Role)
	if err != nil && !errors.Is(err, repository.ErrPackageNotFound) {
		return nil, err
	}

	days := s.trialDays
	if pkg != nil && pkg.TrialDurationDays > 0 {
		days = pkg.TrialDurationDays
	}

	now := s.now()
	end := daysFrom(now, days)
	res := &TrialActivation{EndDate: end, Granted: []model.CreditGrant{}}
	var entries []model.CreditEntry

	err = s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		role, flags, err := lockTrialFlags(ctx, tx, userID)
		if err != nil {
			return err
		}
		if flags.HasStandardTrialActivated {
			return ErrTrialAlreadyUsed
		}

		flags.HasStandardTrialActivated = true
		flags.StandardTrialEndDate = &end
		if err := tx.SetTrialFlags(ctx, role, userID, flags); err != nil {
			return err
		}

		if pkg != nil {
			id := pkg.ID
			res.PackageID = &id
			for _, g := range pkg.Grants() {
				e := model.CreditEntry{
					UserID:     userID,
					CreditType: g.CreditType,
					Amount:     g.Amount,
					Reason:     model.ReasonTrialActivation,
					Reference:  &model.Reference{Type: model.RefPackage, ID: pkg.ID},
				}
				if _, err := recordCredit(ctx, tx, e); err != nil {
					return fmt.Errorf("grant trial %s: %w", g.CreditType, err)
				}
				entries = append(entries, e)
				res.Granted = append(res.Granted, g)
			}
		}

		switch role {
		case model.RoleEmployer:
			tier := model.TierBasic
			if pkg != nil && pkg.FeatureTier.Rank() > tier.Rank() {
				tier = pkg.FeatureTier
			}
			return upgradeTier(ctx, tx, userID, tier)
		case model.RoleJobseeker:
			if pkg != nil && pkg.AutoApplyEnabled {
				id := pkg.ID
				return tx.SetJobseekerPackage(ctx, userID, &id, true)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observeEntries(entries...)
	s.logger.Info("standard trial activated",
		zap.Int64("userID", userID),
		zap.Time("endDate", end),
		zap.Int("grants", len(res.Granted)),
	)
	return res, nil
}

// GrantPremiumIndefiniteTrial включает бессрочный премиум. Повторный вызов только обновляет администратора.
func (s *Service) GrantPremiumIndefiniteTrial(ctx context.Context, userID int64, adminIdentity string) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		role, flags, err := lockTrialFlags(ctx, tx, userID)
		if err != nil {
			return err
		}

		flags.HasPremiumIndefiniteTrial = true
		flags.PremiumTrialOverrideBy = adminIdentity
		if err := tx.SetTrialFlags(ctx, role, userID, flags); err != nil {
			return err
		}

		if role == model.RoleEmployer {
			return tx.SetFeatureTier(ctx, userID, model.TierEnterprise)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("premium indefinite trial granted", zap.Int64("userID", userID), zap.String("admin", adminIdentity))
	return nil
}

// RevokePremiumIndefiniteTrial снимает бессрочный премиум и сбрасывает уровень работодателя на free.
func (s *Service) RevokePremiumIndefiniteTrial(ctx context.Context, userID int64) error {
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		role, flags, err := lockTrialFlags(ctx, tx, userID)
		if err != nil {
			return err
		}

		flags.HasPremiumIndefiniteTrial = false
		flags.PremiumTrialOverrideBy = ""
		if err := tx.SetTrialFlags(ctx, role, userID, flags); err != nil {
			return err
		}

		if role == model.RoleEmployer {
			return tx.SetFeatureTier(ctx, userID, model.TierFree)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("premium indefinite trial revoked", zap.Int64("userID", userID))
	return nil
}

// upgradeTier повышает уровень работодателя, никогда не понижая его.
func upgradeTier(ctx context.Context, tx repository.Tx, userID int64, tier model.FeatureTier) error {
	if !tier.Valid() {
		return nil
	}
	p, err := tx.LockEmployerProfile(ctx, userID)
	if err != nil {
		return err
	}
	if tier.Rank() <= p.FeatureTier.Rank() {
		return nil
	}
	return tx.SetFeatureTier(ctx, userID, tier)
}
