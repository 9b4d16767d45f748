package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/metrics"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/validation"
)

const referenceAttempts = 3

// referenceDigits возвращает n случайных десятичных цифр.
func referenceDigits(n int) string {
	id := uuid.New()
	v := binary.BigEndian.Uint64(id[:8])
	s := fmt.Sprintf("%020d", v)
	if n > len(s) {
		n = len(s)
	}
	return s[len(s)-n:]
}

// CreateOrder создаёт заказ в статусе pending на покупку пакета.
func (s *Service) CreateOrder(ctx context.Context, userID, packageID int64) (*model.Order, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleEmployer && u.Role != model.RoleJobseeker {
		return nil, ErrInvalidRole
	}

	pkg, err := s.repo.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active || pkg.Role != u.Role || pkg.IsTrial() {
		return nil, fmt.Errorf("%w: %s", ErrPackageUnavailable, pkg.Slug)
	}

	currency := pkg.Currency
	if currency == "" {
		currency = s.currency
	}

	for attempt := 0; ; attempt++ {
		order, err := s.repo.CreateOrder(ctx, model.Order{
			UserID:        userID,
			PackageID:     &pkg.ID,
			AmountToea:    pkg.PriceToea,
			Currency:      currency,
			Status:        model.OrderStatusPending,
			InvoiceNumber: validation.InvoiceNumber(s.now(), referenceDigits(10)),
		})
		if errors.Is(err, repository.ErrDuplicateReference) && attempt+1 < referenceAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.Orders.WithLabelValues("created").Inc()
		s.logger.Info("order created",
			zap.Int64("orderID", order.ID),
			zap.Int64("userID", userID),
			zap.String("package", pkg.Slug),
			zap.String("invoice", order.InvoiceNumber),
		)
		return order, nil
	}
}

// GetOrder возвращает заказ пользователя. Чужой заказ возвращает ErrForbidden.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListOrders возвращает заказы пользователя.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// ListOrdersByStatus возвращает заказы в статусе для администратора.
func (s *Service) ListOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	switch status {
	case "", model.OrderStatusPending, model.OrderStatusApproved, model.OrderStatusCompleted, model.OrderStatusRejected:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.ListOrdersByStatus(ctx, status, limit)
}

// ensurePending проверяет, что заказ ещё не обработан.
func ensurePending(o *model.Order) error {
	switch o.Status {
	case model.OrderStatusPending:
		return nil
	case model.OrderStatusRejected:
		return ErrOrderAlreadyRejected
	default:
		return ErrOrderAlreadyCompleted
	}
}

// ApprovalResult описывает результат подтверждения заказа.
type ApprovalResult struct {
	Success bool                `json:"success"`
	OrderID int64               `json:"order_id"`
	Order   *model.Order        `json:"order"`
	Credits []model.CreditGrant `json:"credits"`
}

// ApproveOrder подтверждает заказ и выдаёт кредиты пакета ровно один раз:
// pending → approved → completed в одной транзакции с заблокированной строкой заказа.
func (s *Service) ApproveOrder(ctx context.Context, orderID, adminID int64) (*ApprovalResult, error) {
	res := &ApprovalResult{OrderID: orderID, Credits: []model.CreditGrant{}}
	var entries []model.CreditEntry

	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ensurePending(o); err != nil {
			return err
		}

		now := s.now()
		if err := tx.TransitionOrder(ctx, repository.OrderTransition{
			OrderID: orderID, From: model.OrderStatusPending, To: model.OrderStatusApproved, AdminID: adminID, At: now,
		}); err != nil {
			return err
		}

		if o.PackageID != nil {
			entries, err = addCreditPackage(ctx, tx, o.UserID, *o.PackageID, orderID)
			if err != nil {
				return err
			}
		}

		return tx.TransitionOrder(ctx, repository.OrderTransition{
			OrderID: orderID, From: model.OrderStatusApproved, To: model.OrderStatusCompleted, At: now,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrOrderAlreadyCompleted
		}
		return nil, err
	}

	for _, e := range entries {
		res.Credits = append(res.Credits, model.CreditGrant{CreditType: e.CreditType, Amount: e.Amount})
	}
	observeEntries(entries...)
	metrics.Orders.WithLabelValues("completed").Inc()

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res.Success = true
	res.Order = o

	s.logger.Info("order approved",
		zap.Int64("orderID", orderID),
		zap.Int64("adminID", adminID),
		zap.Int("grants", len(entries)),
	)
	return res, nil
}

// AddCreditPackage выдаёт пользователю кредиты пакета в отдельной транзакции.
func (s *Service) AddCreditPackage(ctx context.Context, userID, packageID, orderID int64) ([]model.CreditGrant, error) {
	var entries []model.CreditEntry
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		entries, err = addCreditPackage(ctx, tx, userID, packageID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observeEntries(entries...)
	grants := make([]model.CreditGrant, 0, len(entries))
	for _, e := range entries {
		grants = append(grants, model.CreditGrant{CreditType: e.CreditType, Amount: e.Amount})
	}
	return grants, nil
}

// addCreditPackage начисляет ненулевые кредиты пакета, повышает уровень работодателя
// (никогда не понижая) и для соискателя запоминает активный пакет.
func addCreditPackage(ctx context.Context, tx repository.Tx, userID, packageID, orderID int64) ([]model.CreditEntry, error) {
	pkg, err := tx.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != pkg.Role {
		return nil, fmt.Errorf("%w: %s package for %s", ErrInvalidCreditType, pkg.Role, u.Role)
	}

	var entries []model.CreditEntry
	for _, g := range pkg.Grants() {
		e := model.CreditEntry{
			UserID:     userID,
			CreditType: g.CreditType,
			Amount:     g.Amount,
			Reason:     model.ReasonPackagePurchase,
			Reference:  &model.Reference{Type: model.RefOrder, ID: orderID},
		}
		if _, err := recordCredit(ctx, tx, e); err != nil {
			return nil, fmt.Errorf("grant %s: %w", g.CreditType, err)
		}
		entries = append(entries, e)
	}

	switch u.Role {
	case model.RoleEmployer:
		if err := upgradeTier(ctx, tx, userID, pkg.FeatureTier); err != nil {
			return nil, err
		}
	case model.RoleJobseeker:
		p, err := tx.LockJobseekerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		id := pkg.ID
		if err := tx.SetJobseekerPackage(ctx, userID, &id, p.AutoApplyEnabled || pkg.AutoApplyEnabled); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// RejectOrder отклоняет заказ с комментарием. Отклонить можно только заказ в статусе pending.
func (s *Service) RejectOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	err := s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := ensurePending(o); err != nil {
			return err
		}

		return tx.TransitionOrder(ctx, repository.OrderTransition{
			OrderID: orderID,
			From:    model.OrderStatusPending,
			To:      model.OrderStatusRejected,
			Notes:   reason,
			At:      s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrOrderAlreadyRejected
		}
		return nil, err
	}

	metrics.Orders.WithLabelValues("rejected").Inc()
	s.logger.Info("order rejected", zap.Int64("orderID", orderID), zap.String("reason", reason))
	return s.repo.GetOrder(ctx, orderID)
}
