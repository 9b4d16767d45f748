package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// Причины решения о публикации вакансии.
const (
	PostReasonNoProfile    = "no_employer_profile"
	PostReasonPremiumTrial = "premium_trial"
	PostReasonTrial        = "standard_trial"
	PostReasonCredits      = "credits_available"
	PostReasonFreeSlot     = "free_slot"
	PostReasonNoCredits    = "no credits"
)

// PostingDecision описывает, может ли работодатель опубликовать вакансию и чем она оплачивается.
type PostingDecision struct {
	Allowed     bool       `json:"allowed"`
	Reason      string     `json:"reason"`
	Trial       bool       `json:"trial"`
	TrialType   TrialType  `json:"trial_type,omitempty"`
	Unlimited   bool       `json:"unlimited,omitempty"`
	Credits     int64      `json:"credits"`
	FreeSlot    bool       `json:"free_slot,omitempty"`
	WillConsume bool       `json:"will_consume"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// decidePosting применяет порядок правил публикации; первое совпавшее правило побеждает.
// Число активных вакансий запрашивается только для правила бесплатного слота.
func decidePosting(p *model.EmployerProfile, now time.Time, countActive func() (int, error)) (PostingDecision, error) {
	if p == nil {
		return PostingDecision{Reason: PostReasonNoProfile}, nil
	}

	trial := trialStatus(p.TrialFlags, now)
	d := PostingDecision{Credits: p.JobPostingCredits}

	switch {
	case trial.Type == TrialPremium:
		d.Allowed, d.Trial, d.TrialType, d.Unlimited = true, true, TrialPremium, true
		d.Reason = PostReasonPremiumTrial
		return d, nil
	case trial.Active:
		d.Allowed, d.Trial, d.TrialType, d.ExpiresAt = true, true, TrialStandard, trial.ExpiresAt
		d.Reason = PostReasonTrial
		return d, nil
	case p.JobPostingCredits > 0:
		d.Allowed, d.WillConsume = true, true
		d.Reason = PostReasonCredits
		return d, nil
	}

	active, err := countActive()
	if err != nil {
		return PostingDecision{}, err
	}
	if active < 1 {
		d.Allowed, d.FreeSlot = true, true
		d.Reason = PostReasonFreeSlot
		return d, nil
	}

	d.Reason = PostReasonNoCredits
	return d, nil
}

// CanPostJob отвечает, может ли работодатель опубликовать вакансию. Ничего не списывает.
func (s *Service) CanPostJob(ctx context.Context, employerID int64) (PostingDecision, error) {
	p, err := s.repo.GetEmployerProfile(ctx, employerID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return decidePosting(nil, s.now(), nil)
		}
		return PostingDecision{}, err
	}

	return decidePosting(p, s.now(), func() (int, error) {
		return s.repo.CountActiveJobs(ctx, employerID)
	})
}

// CreditCheck описывает, доступна ли пользователю функция, оплачиваемая кредитами.
type CreditCheck struct {
	CreditType model.CreditType `json:"credit_type"`
	Allowed    bool             `json:"allowed"`
	Trial      bool             `json:"trial"`
	TrialType  TrialType        `json:"trial_type,omitempty"`
	Balance    int64            `json:"balance"`
}

// CheckCredit отвечает, может ли пользователь сейчас воспользоваться функцией вида ct.
func (s *Service) CheckCredit(ctx context.Context, userID int64, ct model.CreditType) (*CreditCheck, error) {
	owner, ok := ct.Role()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCreditType, ct)
	}

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != owner {
		return nil, fmt.Errorf("%w: %s credits for %s", ErrInvalidCreditType, ct, u.Role)
	}

	var (
		flags   model.TrialFlags
		balance int64
	)
	switch owner {
	case model.RoleEmployer:
		p, err := s.repo.GetEmployerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		flags = p.TrialFlags
		balance, _ = p.Balance(ct)
	case model.RoleJobseeker:
		p, err := s.repo.GetJobseekerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		flags = p.TrialFlags
		balance, _ = p.Balance(ct)
	}

	trial := trialStatus(flags, s.now())
	res := &CreditCheck{CreditType: ct, Balance: balance}
	if trial.Active {
		res.Allowed, res.Trial, res.TrialType = true, true, trial.Type
		return res, nil
	}
	res.Allowed = balance > 0
	return res, nil
}
