package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/validation"
)

// Кошелёк хранит деньги в тоа и не связан с кредитами профилей: пополнения, резервы,
// списания и возвраты ведутся в отдельном журнале wallet_transactions.

// GetWallet возвращает кошелёк пользователя.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

// WalletPage содержит страницу журнала кошелька.
type WalletPage struct {
	Transactions []model.WalletTransaction `json:"transactions"`
	Total        int                       `json:"total"`
	Limit        int                       `json:"limit"`
	Offset       int                       `json:"offset"`
}

// ListWalletTransactions возвращает журнал кошелька, новые записи первыми.
func (s *Service) ListWalletTransactions(ctx context.Context, userID int64, limit, offset int) (*WalletPage, error) {
	limit, offset = normalizePage(limit, offset)
	txs, total, err := s.repo.ListWalletTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.WalletTransaction{}
	}
	return &WalletPage{Transactions: txs, Total: total, Limit: limit, Offset: offset}, nil
}

// applyWallet записывает движение по кошельку, предварительно заблокировав его.
func (s *Service) applyWallet(ctx context.Context, tx repository.Tx, e model.WalletEntry) (*model.WalletTransaction, error) {
	if _, err := tx.LockWallet(ctx, e.UserID, s.currency); err != nil {
		return nil, err
	}
	return tx.ApplyWallet(ctx, e)
}

func observeWallet(wt *model.WalletTransaction) {
	if wt == nil {
		return
	}
	amount := wt.BalanceDelta
	if amount == 0 {
		amount = wt.ReservedDelta
	}
	if amount < 0 {
		amount = -amount
	}
	metrics.WalletMovements.WithLabelValues(string(wt.Type)).Inc()
	metrics.WalletToea.WithLabelValues(string(wt.Type)).Add(float64(amount))
}

// CreateDepositIntent создаёт ожидаемое пополнение с референсом, который клиент
// указывает в назначении банковского перевода.
func (s *Service) CreateDepositIntent(ctx context.Context, userID, amountToea int64) (*model.DepositIntent, error) {
	if amountToea <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		intent, err := s.repo.CreateDepositIntent(ctx, model.DepositIntent{
			UserID:     userID,
			AmountToea: amountToea,
			Currency:   s.currency,
			Reference:  validation.DepositReference(referenceDigits(10)),
			Status:     model.DepositPending,
		})
		if errors.Is(err, repository.ErrDuplicateReference) && attempt+1 < referenceAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("deposit intent created",
			zap.Int64("intentID", intent.ID),
			zap.Int64("userID", userID),
			zap.String("reference", intent.Reference),
		)
		return intent, nil
	}
}

// DepositMatch описывает результат сопоставления банковского перевода с пополнением.
type DepositMatch struct {
	Intent      *model.DepositIntent     `json:"intent"`
	Transaction *model.WalletTransaction `json:"transaction"`
}

// matchDeposit зачисляет сумму перевода в кошелёк и помечает пополнение сопоставленным.
func (s *Service) matchDeposit(ctx context.Context, tx repository.Tx, d *model.DepositIntent, amountToea int64, bankRef string, matchedBy *int64) (*DepositMatch, error) {
	if d.Status != model.DepositPending {
		return nil, fmt.Errorf("%w: deposit %d is %s", ErrAlreadySettled, d.ID, d.Status)
	}
	if !validation.IsValidDepositReference(d.Reference) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReference, d.Reference)
	}
	if amountToea == 0 {
		amountToea = d.AmountToea
	}
	if amountToea < 0 {
		return nil, ErrInvalidAmount
	}

	wt, err := s.applyWallet(ctx, tx, model.WalletEntry{
		UserID:        d.UserID,
		Type:          model.WalletTxDeposit,
		BalanceDelta:  amountToea,
		ReferenceType: model.RefDepositIntent,
		ReferenceID:   strconv.FormatInt(d.ID, 10),
		Description:   "bank deposit " + d.Reference,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	d.Status = model.DepositMatched
	d.BankReference = bankRef
	d.MatchedAmountToea = amountToea
	d.MatchedBy = matchedBy
	d.MatchedAt = &now
	if err := tx.SettleDepositIntent(ctx, d); err != nil {
		return nil, err
	}

	return &DepositMatch{Intent: d, Transaction: wt}, nil
}

// MatchDeposit сопоставляет банковский перевод с пополнением по решению администратора.
// Нулевая сумма означает сумму, указанную при создании пополнения.
func (s *Service) MatchDeposit(ctx context.Context, intentID, adminID int64, bankRef string, amountToea int64) (*DepositMatch, error) {
	var res *DepositMatch
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		d, err := tx.LockDepositIntent(ctx, intentID)
		if err != nil {
			return err
		}
		res, err = s.matchDeposit(ctx, tx, d, amountToea, bankRef, &adminID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observeWallet(res.Transaction)
	s.logger.Info("deposit matched",
		zap.Int64("intentID", intentID),
		zap.Int64("adminID", adminID),
		zap.Int64("amountToea", res.Intent.MatchedAmountToea),
	)
	return res, nil
}

// RejectDeposit помечает пополнение истёкшим, без движения средств.
func (s *Service) RejectDeposit(ctx context.Context, intentID, adminID int64) (*model.DepositIntent, error) {
	var res *model.DepositIntent
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		d, err := tx.LockDepositIntent(ctx, intentID)
		if err != nil {
			return err
		}
		if d.Status != model.DepositPending {
			return fmt.Errorf("%w: deposit %d is %s", ErrAlreadySettled, d.ID, d.Status)
		}

		now := s.now()
		d.Status = model.DepositExpired
		d.MatchedBy = &adminID
		d.MatchedAt = &now
		if err := tx.SettleDepositIntent(ctx, d); err != nil {
			return err
		}
		res = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit rejected", zap.Int64("intentID", intentID), zap.Int64("adminID", adminID))
	return res, nil
}

// CreateHold резервирует сумму из доступного остатка кошелька.
func (s *Service) CreateHold(ctx context.Context, userID, amountToea int64, description string) (*model.WalletHold, error) {
	if amountToea <= 0 {
		return nil, ErrInvalidAmount
	}

	var hold model.WalletHold
	var wt *model.WalletTransaction
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		w, err := tx.LockWallet(ctx, userID, s.currency)
		if err != nil {
			return err
		}
		if w.AvailableToea() < amountToea {
			return ErrInsufficientFunds
		}

		hold = model.WalletHold{
			ID:          uuid.NewString(),
			UserID:      userID,
			AmountToea:  amountToea,
			Status:      model.HoldActive,
			Description: description,
			CreatedAt:   s.now(),
		}
		if err := tx.CreateHold(ctx, hold); err != nil {
			return err
		}

		wt, err = tx.ApplyWallet(ctx, model.WalletEntry{
			UserID:        userID,
			Type:          model.WalletTxHold,
			ReservedDelta: amountToea,
			ReferenceType: model.RefHold,
			ReferenceID:   hold.ID,
			Description:   description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	observeWallet(wt)
	return &hold, nil
}

// CaptureHold списывает зарезервированную сумму.
func (s *Service) CaptureHold(ctx context.Context, userID int64, holdID string) (*model.WalletTransaction, error) {
	return s.settleHold(ctx, userID, holdID, model.HoldCaptured)
}

// ReleaseHold возвращает зарезервированную сумму в доступный остаток.
func (s *Service) ReleaseHold(ctx context.Context, userID int64, holdID string) (*model.WalletTransaction, error) {
	return s.settleHold(ctx, userID, holdID, model.HoldReleased)
}

func (s *Service) settleHold(ctx context.Context, userID int64, holdID string, status model.HoldStatus) (*model.WalletTransaction, error) {
	var wt *model.WalletTransaction
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.LockHold(ctx, holdID)
		if err != nil {
			return err
		}
		if h.UserID != userID {
			return ErrForbidden
		}
		if h.Status != model.HoldActive {
			return fmt.Errorf("%w: hold %s is %s", ErrAlreadySettled, h.ID, h.Status)
		}

		entry := model.WalletEntry{
			UserID:        userID,
			ReservedDelta: -h.AmountToea,
			ReferenceType: model.RefHold,
			ReferenceID:   h.ID,
			Description:   h.Description,
		}
		if status == model.HoldCaptured {
			entry.Type = model.WalletTxCapture
			entry.BalanceDelta = -h.AmountToea
		} else {
			entry.Type = model.WalletTxRelease
		}

		wt, err = s.applyWallet(ctx, tx, entry)
		if err != nil {
			return err
		}
		return tx.SettleHold(ctx, h.ID, status, s.now())
	})
	if err != nil {
		return nil, err
	}

	observeWallet(wt)
	return wt, nil
}

// RequestRefund создаёт запрос на возврат списания. Нулевая сумма означает возврат
// всей ещё не возвращённой части.
func (s *Service) RequestRefund(ctx context.Context, userID, transactionID, amountToea int64, reason string) (*model.Refund, error) {
	if amountToea < 0 {
		return nil, ErrInvalidAmount
	}

	var res *model.Refund
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		wt, err := tx.GetWalletTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if wt.UserID != userID {
			return ErrForbidden
		}
		if wt.Type != model.WalletTxCapture {
			return ErrNotRefundable
		}

		// Блокировка кошелька сериализует параллельные запросы возврата одного пользователя.
		if _, err := tx.LockWallet(ctx, userID, s.currency); err != nil {
			return err
		}

		open, err := tx.SumOpenRefunds(ctx, transactionID)
		if err != nil {
			return err
		}
		refundable := -wt.BalanceDelta - open
		if amountToea == 0 {
			amountToea = refundable
		}
		if amountToea <= 0 || amountToea > refundable {
			return ErrRefundExceedsAmount
		}

		res, err = tx.CreateRefund(ctx, model.Refund{
			UserID:        userID,
			TransactionID: transactionID,
			AmountToea:    amountToea,
			Reason:        reason,
			Status:        model.RefundPending,
			CreatedAt:     s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund requested", zap.Int64("refundID", res.ID), zap.Int64("userID", userID))
	return res, nil
}

// ApproveRefund зачисляет возврат в кошелёк и помечает запрос одобренным.
func (s *Service) ApproveRefund(ctx context.Context, refundID, adminID int64, notes string) (*model.Refund, error) {
	var wt *model.WalletTransaction
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		rf, err := tx.LockRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if rf.Status != model.RefundPending {
			return fmt.Errorf("%w: refund %d is %s", ErrAlreadySettled, rf.ID, rf.Status)
		}

		wt, err = s.applyWallet(ctx, tx, model.WalletEntry{
			UserID:        rf.UserID,
			Type:          model.WalletTxRefund,
			BalanceDelta:  rf.AmountToea,
			ReferenceType: model.RefRefund,
			ReferenceID:   strconv.FormatInt(rf.ID, 10),
			Description:   rf.Reason,
		})
		if err != nil {
			return err
		}
		return tx.ReviewRefund(ctx, refundID, model.RefundApproved, adminID, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	observeWallet(wt)
	s.logger.Info("refund approved", zap.Int64("refundID", refundID), zap.Int64("adminID", adminID))
	return s.repo.GetRefund(ctx, refundID)
}

// RejectRefund отклоняет запрос на возврат без движения средств.
func (s *Service) RejectRefund(ctx context.Context, refundID, adminID int64, notes string) (*model.Refund, error) {
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		rf, err := tx.LockRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if rf.Status != model.RefundPending {
			return fmt.Errorf("%w: refund %d is %s", ErrAlreadySettled, rf.ID, rf.Status)
		}
		return tx.ReviewRefund(ctx, refundID, model.RefundRejected, adminID, notes, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund rejected", zap.Int64("refundID", refundID), zap.Int64("adminID", adminID))
	return s.repo.GetRefund(ctx, refundID)
}
