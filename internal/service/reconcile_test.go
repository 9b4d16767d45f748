package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/bankfeed"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

type stubFeed struct {
	calls  []string
	status int
	batch  *bankfeed.Batch
}

func (s *stubFeed) GetTransfers(_ context.Context, since string) (*bankfeed.Batch, int, time.Duration, error) {
	s.calls = append(s.calls, since)
	if s.status == http.StatusTooManyRequests {
		return nil, s.status, 0, nil
	}
	return s.batch, http.StatusOK, 0, nil
}

func TestReconcileDeposits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "e@example.com", model.RoleEmployer)

	intent, err := f.svc.CreateDepositIntent(ctx, u, 2500)
	require.NoError(t, err)

	feed := &stubFeed{status: http.StatusTooManyRequests}
	svc := NewService(f.repo, zap.NewNop(), WithClock(f.clock.Now), WithTransferFeed(feed))

	n, err := svc.ReconcileDeposits(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	feed.status = http.StatusOK
	feed.batch = &bankfeed.Batch{
		Cursor: "c1",
		Transfers: []bankfeed.Transfer{
			{ID: "t1", Reference: "salary march", Amount: decimal.NewFromInt(10), Currency: "PGK"},
			{ID: "t2", Reference: " " + intent.Reference + " ", Amount: decimal.RequireFromString("25.00"), Currency: "PGK"},
			{ID: "t3", Reference: intent.Reference, Amount: decimal.NewFromInt(25), Currency: "USD"},
			{ID: "t4", Reference: "WJ79927398713", Amount: decimal.NewFromInt(1), Currency: "PGK"},
		},
	}

	n, err = svc.ReconcileDeposits(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	w, err := svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.EqualValues(t, 2500, w.BalanceToea)

	n, err = svc.ReconcileDeposits(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, []string{"", "", "c1"}, feed.calls)

	w, err = svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.EqualValues(t, 2500, w.BalanceToea)
}

func TestReconcileDeposits_OversizedTransferIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "e@example.com", model.RoleEmployer)

	intent, err := f.svc.CreateDepositIntent(ctx, u, 1)
	require.NoError(t, err)

	feed := &stubFeed{status: http.StatusOK, batch: &bankfeed.Batch{
		Cursor: "c1",
		Transfers: []bankfeed.Transfer{
			{ID: "t1", Reference: intent.Reference, Amount: decimal.RequireFromString("184467440737095516.17"), Currency: "PGK"},
		},
	}}
	svc := NewService(f.repo, zap.NewNop(), WithClock(f.clock.Now), WithTransferFeed(feed))

	n, err := svc.ReconcileDeposits(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	w, err := svc.GetWallet(ctx, u)
	require.NoError(t, err)
	require.Zero(t, w.BalanceToea)
}

func TestReconcileDeposits_NoFeed(t *testing.T) {
	f := newFixture(t)
	n, err := f.svc.ReconcileDeposits(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, f.svc.RunDepositReconciliation(context.Background(), time.Second))
}
