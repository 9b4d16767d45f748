package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/bankfeed"
	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/validation"
)

// TransferFeed возвращает входящие банковские переводы после курсора.
type TransferFeed interface {
	GetTransfers(ctx context.Context, since string) (*bankfeed.Batch, int, time.Duration, error)
}

// feedState хранит курсор ленты между опросами.
type feedState struct {
	mu     sync.Mutex
	cursor string
}

// RunDepositReconciliation периодически сверяет пополнения с банковской лентой до отмены ctx.
func (s *Service) RunDepositReconciliation(ctx context.Context, interval time.Duration) error {
	if s.feed == nil || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ReconcileDeposits(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("deposit reconciliation error", zap.Error(err))
			}
		}
	}
}

// ReconcileDeposits запрашивает одну страницу переводов и зачисляет те, чей референс
// совпадает с ожидающим пополнением. Возвращает число сопоставленных переводов.
func (s *Service) ReconcileDeposits(ctx context.Context) (int, error) {
	if s.feed == nil {
		return 0, nil
	}

	s.feedCursor.mu.Lock()
	defer s.feedCursor.mu.Unlock()

	batch, statusCode, retryAfter, err := s.feed.GetTransfers(ctx, s.feedCursor.cursor)
	if err != nil {
		metrics.BankFeedPolls.WithLabelValues("error").Inc()
		return 0, err
	}

	if statusCode == http.StatusTooManyRequests {
		metrics.BankFeedPolls.WithLabelValues("throttled").Inc()
		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, ctx.Err()
			case <-timer.C:
			}
		}
		return 0, nil
	}

	if batch == nil {
		metrics.BankFeedPolls.WithLabelValues("empty").Inc()
		return 0, nil
	}
	metrics.BankFeedPolls.WithLabelValues("ok").Inc()

	matched := 0
	for _, t := range batch.Transfers {
		ok, err := s.reconcileTransfer(ctx, t)
		if err != nil {
			// Курсор не сдвигается: перевод будет обработан при следующем опросе.
			return matched, err
		}
		if ok {
			matched++
		}
	}

	s.feedCursor.cursor = batch.Cursor
	return matched, nil
}

func (s *Service) reconcileTransfer(ctx context.Context, t bankfeed.Transfer) (bool, error) {
	log := s.logger.With(zap.String("transferID", t.ID), zap.String("reference", t.Reference))

	if !validation.IsValidDepositReference(t.Reference) {
		log.Debug("transfer without deposit reference skipped")
		return false, nil
	}
	if t.Currency != "" && t.Currency != s.currency {
		log.Warn("transfer currency mismatch", zap.String("currency", t.Currency))
		return false, nil
	}

	amount, err := model.ToeaFromKina(t.Amount)
	if err != nil || amount <= 0 {
		log.Warn("transfer amount rejected", zap.String("amount", t.Amount.String()))
		return false, nil
	}

	var res *DepositMatch
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		d, err := tx.LockDepositIntentByReference(ctx, validation.NormalizeDepositReference(t.Reference))
		if err != nil {
			return err
		}
		if d.Status != model.DepositPending {
			return nil
		}
		res, err = s.matchDeposit(ctx, tx, d, amount, t.ID, nil)
		return err
	})
	if errors.Is(err, repository.ErrDepositNotFound) {
		log.Warn("transfer reference has no deposit intent")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}

	observeWallet(res.Transaction)
	log.Info("deposit reconciled", zap.Int64("intentID", res.Intent.ID), zap.Int64("amountToea", amount))
	return true, nil
}
