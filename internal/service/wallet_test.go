package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/validation"
)

func (f *fixture) fundWallet(t *testing.T, userID, adminID, amount int64) {
	t.Helper()
	intent, err := f.svc.CreateDepositIntent(context.Background(), userID, amount)
	require.NoError(t, err)
	_, err = f.svc.MatchDeposit(context.Background(), intent.ID, adminID, "BSP-1", 0)
	require.NoError(t, err)
}

func TestDeposit_MatchOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "e@example.com", model.RoleEmployer)
	admin := f.user(t, "a@example.com", model.RoleAdmin)

	_, err := f.svc.CreateDepositIntent(ctx, u, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	intent, err := f.svc.CreateDepositIntent(ctx, u, 5000)
	require.NoError(t, err)
	require.Equal(t, model.DepositPending, intent.Status)
	require.True(t, validation.IsValidDepositReference(intent.Reference))

	m, err := f.svc.MatchDeposit(ctx, intent.ID, admin, "BSP-778", 4500)
	require.NoError(t, err)
	require.Equal(t, model.DepositMatched, m.Intent.Status)
	require.EqualValues(t, 4500, m.Intent.MatchedAmountToea)
	require.EqualValues(t, 4500, m.Transaction.BalanceAfter)

	_, err = f.svc.MatchDeposit(ctx, intent.ID, admin, "BSP-778", 4500)
	require.ErrorIs(t, err, ErrAlreadySettled)

	w, err := f.svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.EqualValues(t, 4500, w.BalanceToea)

	other, err := f.svc.CreateDepositIntent(ctx, u, 100)
	require.NoError(t, err)
	rejected, err := f.svc.RejectDeposit(ctx, other.ID, admin)
	require.NoError(t, err)
	require.Equal(t, model.DepositExpired, rejected.Status)

	_, err = f.svc.MatchDeposit(ctx, other.ID, admin, "", 0)
	require.ErrorIs(t, err, ErrAlreadySettled)

	_, err = f.svc.MatchDeposit(ctx, 404, admin, "", 0)
	require.ErrorIs(t, err, repository.ErrDepositNotFound)
}

func TestHold_CaptureAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "e@example.com", model.RoleEmployer)
	other := f.user(t, "o@example.com", model.RoleEmployer)
	admin := f.user(t, "a@example.com", model.RoleAdmin)
	f.fundWallet(t, u, admin, 10000)

	h1, err := f.svc.CreateHold(ctx, u, 6000, "featured listing")
	require.NoError(t, err)
	require.Equal(t, model.HoldActive, h1.Status)

	_, err = f.svc.CreateHold(ctx, u, 4001, "too much")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	h2, err := f.svc.CreateHold(ctx, u, 4000, "banner")
	require.NoError(t, err)

	w, err := f.svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.EqualValues(t, 10000, w.BalanceToea)
	require.EqualValues(t, 10000, w.ReservedToea)
	require.Zero(t, w.AvailableToea())

	_, err = f.svc.CaptureHold(ctx, other, h1.ID)
	require.ErrorIs(t, err, ErrForbidden)

	captured, err := f.svc.CaptureHold(ctx, u, h1.ID)
	require.NoError(t, err)
	require.Equal(t, model.WalletTxCapture, captured.Type)
	require.EqualValues(t, 4000, captured.BalanceAfter)
	require.EqualValues(t, 4000, captured.ReservedAfter)

	_, err = f.svc.ReleaseHold(ctx, u, h1.ID)
	require.ErrorIs(t, err, ErrAlreadySettled)

	released, err := f.svc.ReleaseHold(ctx, u, h2.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4000, released.BalanceAfter)
	require.EqualValues(t, 0, released.ReservedAfter)

	_, err = f.svc.CaptureHold(ctx, u, "missing")
	require.ErrorIs(t, err, repository.ErrHoldNotFound)

	page, err := f.svc.ListWalletTransactions(ctx, u, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, model.WalletTxRelease, page.Transactions[0].Type)
}

func TestRefund_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "e@example.com", model.RoleEmployer)
	other := f.user(t, "o@example.com", model.RoleEmployer)
	admin := f.user(t, "a@example.com", model.RoleAdmin)
	f.fundWallet(t, u, admin, 3000)

	h, err := f.svc.CreateHold(ctx, u, 2000, "boost")
	require.NoError(t, err)
	captured, err := f.svc.CaptureHold(ctx, u, h.ID)
	require.NoError(t, err)

	page, err := f.svc.ListWalletTransactions(ctx, u, 0, 0)
	require.NoError(t, err)
	deposit := page.Transactions[len(page.Transactions)-1]
	require.Equal(t, model.WalletTxDeposit, deposit.Type)

	_, err = f.svc.RequestRefund(ctx, u, deposit.ID, 0, "")
	require.ErrorIs(t, err, ErrNotRefundable)

	_, err = f.svc.RequestRefund(ctx, other, captured.ID, 0, "")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.RequestRefund(ctx, u, captured.ID, 2001, "")
	require.ErrorIs(t, err, ErrRefundExceedsAmount)

	partial, err := f.svc.RequestRefund(ctx, u, captured.ID, 500, "duplicate charge")
	require.NoError(t, err)
	require.Equal(t, model.RefundPending, partial.Status)

	rest, err := f.svc.RequestRefund(ctx, u, captured.ID, 0, "not delivered")
	require.NoError(t, err)
	require.EqualValues(t, 1500, rest.AmountToea)

	_, err = f.svc.RequestRefund(ctx, u, captured.ID, 1, "")
	require.ErrorIs(t, err, ErrRefundExceedsAmount)

	rejected, err := f.svc.RejectRefund(ctx, rest.ID, admin, "delivered")
	require.NoError(t, err)
	require.Equal(t, model.RefundRejected, rejected.Status)

	approved, err := f.svc.ApproveRefund(ctx, partial.ID, admin, "ok")
	require.NoError(t, err)
	require.Equal(t, model.RefundApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	require.Equal(t, admin, *approved.ReviewedBy)

	_, err = f.svc.ApproveRefund(ctx, partial.ID, admin, "again")
	require.ErrorIs(t, err, ErrAlreadySettled)

	w, err := f.svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.EqualValues(t, 1500, w.BalanceToea)

	again, err := f.svc.RequestRefund(ctx, u, captured.ID, 0, "retry")
	require.NoError(t, err)
	require.EqualValues(t, 1500, again.AmountToea)
}
