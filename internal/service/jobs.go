package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// JobPosting описывает результат публикации вакансии.
type JobPosting struct {
	Job      *model.Job      `json:"job"`
	Decision PostingDecision `json:"decision"`
	Balance  int64           `json:"balance"`
}

// CreateJob публикует вакансию. Решение о праве публикации, создание вакансии и
// списание кредита выполняются в одной транзакции под блокировкой профиля работодателя.
func (s *Service) CreateJob(ctx context.Context, employerID int64, title string) (*JobPosting, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrJobTitleRequired
	}

	var res *JobPosting
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUser(ctx, employerID)
		if err != nil {
			return err
		}
		if u.Role != model.RoleEmployer {
			return ErrInvalidRole
		}

		p, err := tx.LockEmployerProfile(ctx, employerID)
		if err != nil {
			return err
		}

		decision, err := decidePosting(p, s.now(), func() (int, error) {
			return tx.CountActiveJobs(ctx, employerID)
		})
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return fmt.Errorf("%w: %w", ErrPostingNotAllowed, repository.ErrInsufficientCredits)
		}

		job, err := tx.CreateJob(ctx, model.Job{
			EmployerID:     employerID,
			Title:          title,
			Status:         model.JobStatusActive,
			CreditConsumed: decision.WillConsume,
			FreeSlot:       decision.FreeSlot,
			CreatedAt:      s.now(),
		})
		if err != nil {
			return err
		}

		balance := p.JobPostingCredits
		if decision.WillConsume {
			balance, err = tx.ConsumeCredit(ctx, employerID, model.CreditJobPosting, model.ReasonConsumed,
				&model.Reference{Type: model.RefJob, ID: job.ID})
			if err != nil {
				return err
			}
		}

		res = &JobPosting{Job: job, Decision: decision, Balance: balance}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			metrics.InsufficientCredits.WithLabelValues(string(model.CreditJobPosting)).Inc()
		}
		return nil, err
	}

	switch {
	case res.Decision.WillConsume:
		metrics.CreditsConsumed.WithLabelValues(string(model.CreditJobPosting)).Inc()
	case res.Decision.Trial:
		metrics.TrialConsumptions.WithLabelValues(string(model.CreditJobPosting)).Inc()
	}

	s.logger.Info("job posted",
		zap.Int64("jobID", res.Job.ID),
		zap.Int64("employerID", employerID),
		zap.String("reason", res.Decision.Reason),
	)
	return res, nil
}

// CloseJob закрывает вакансию работодателя, освобождая бесплатный слот.
func (s *Service) CloseJob(ctx context.Context, employerID, jobID int64) (*model.Job, error) {
	var closed model.Job
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		j, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		if j.EmployerID != employerID {
			return ErrForbidden
		}
		if j.Status == model.JobStatusClosed {
			return ErrJobClosed
		}
		if err := tx.CloseJob(ctx, jobID); err != nil {
			return err
		}
		closed = *j
		closed.Status = model.JobStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// ListJobs возвращает вакансии работодателя.
func (s *Service) ListJobs(ctx context.Context, employerID int64) ([]model.Job, error) {
	return s.repo.ListJobs(ctx, employerID)
}
