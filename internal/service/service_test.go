package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	repo  *repository.MemoryRepository
	svc   *Service
	clock *testClock
}

func newFixture(t *testing.T, packages ...model.Package) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	repo := repository.NewMemoryRepository(packages...)
	svc := NewService(repo, zap.NewNop(), WithClock(clock.Now))

	return &fixture{repo: repo, svc: svc, clock: clock}
}

func (f *fixture) user(t *testing.T, email string, role model.Role) int64 {
	t.Helper()
	u, err := f.svc.RegisterUser(context.Background(), email, role)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) packageID(t *testing.T, role model.Role, slug string) int64 {
	t.Helper()
	pkgs, err := f.repo.ListPackages(context.Background(), role, false)
	require.NoError(t, err)
	for _, p := range pkgs {
		if p.Slug == slug {
			return p.ID
		}
	}
	t.Fatalf("package %s not found", slug)
	return 0
}

func (f *fixture) employer(t *testing.T, id int64) *model.EmployerProfile {
	t.Helper()
	p, err := f.repo.GetEmployerProfile(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) jobseeker(t *testing.T, id int64) *model.JobseekerProfile {
	t.Helper()
	p, err := f.repo.GetJobseekerProfile(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) txCount(t *testing.T, userID int64) int {
	t.Helper()
	_, total, err := f.repo.ListCreditTransactions(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return total
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterUser(ctx, "x@example.com", model.Role("owner"))
	require.ErrorIs(t, err, ErrInvalidRole)

	id := f.user(t, "boss@example.com", model.RoleEmployer)
	require.Equal(t, model.TierFree, f.employer(t, id).FeatureTier)

	_, err = f.svc.RegisterUser(ctx, "BOSS@example.com", model.RoleJobseeker)
	require.ErrorIs(t, err, repository.ErrUserExists)
}

func TestRecordCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	balance, err := f.svc.RecordCredit(ctx, model.CreditEntry{
		UserID: emp, CreditType: model.CreditAIMatching, Amount: 7, Reason: model.ReasonReferralBonus,
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, balance)

	_, err = f.svc.RecordCredit(ctx, model.CreditEntry{
		UserID: emp, CreditType: model.CreditAlert, Amount: 1, Reason: model.ReasonAdminGrant,
	})
	require.ErrorIs(t, err, ErrInvalidCreditType)

	_, err = f.svc.RecordCredit(ctx, model.CreditEntry{
		UserID: emp, CreditType: model.CreditAIMatching, Amount: -8, Reason: model.ReasonAdminGrant,
	})
	require.ErrorIs(t, err, repository.ErrNegativeBalance)
	require.EqualValues(t, 7, f.employer(t, emp).AIMatchingCredits)
	require.Equal(t, 1, f.txCount(t, emp))

	_, err = f.svc.RecordCredit(ctx, model.CreditEntry{
		UserID: 999, CreditType: model.CreditAIMatching, Amount: 1, Reason: model.ReasonAdminGrant,
	})
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	page, err := f.svc.ListCreditTransactions(ctx, emp, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.EqualValues(t, 7, page.Transactions[0].BalanceAfter)
	require.Equal(t, model.ReasonReferralBonus, page.Transactions[0].Reason)
}

func TestGrantCredits_Validation(t *testing.T) {
	f := newFixture(t)
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	for _, amount := range []int64{0, -5, MaxCreditGrant + 1, math.MaxInt64} {
		_, err := f.svc.GrantCredits(context.Background(), emp, model.CreditJobPosting, amount, "")
		require.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
	require.Zero(t, f.txCount(t, emp))

	balance, err := f.svc.GrantCredits(context.Background(), emp, model.CreditJobPosting, 3, "")
	require.NoError(t, err)
	require.EqualValues(t, 3, balance)

	page, err := f.svc.ListCreditTransactions(context.Background(), emp, 10, 0)
	require.NoError(t, err)
	require.Equal(t, model.ReasonAdminGrant, page.Transactions[0].Reason)
}

func TestConsumeCredit_NeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	_, err := f.svc.GrantCredits(ctx, emp, model.CreditCandidateSearch, 2, "")
	require.NoError(t, err)

	for want := int64(1); want >= 0; want-- {
		res, err := f.svc.ConsumeEmployerCredit(ctx, emp, model.CreditCandidateSearch)
		require.NoError(t, err)
		require.True(t, res.Consumed)
		require.Equal(t, want, res.Balance)
	}

	txBefore := f.txCount(t, emp)
	_, err = f.svc.ConsumeEmployerCredit(ctx, emp, model.CreditCandidateSearch)
	require.ErrorIs(t, err, repository.ErrInsufficientCredits)
	require.EqualValues(t, 0, f.employer(t, emp).CandidateSearchCredits)
	require.Equal(t, txBefore, f.txCount(t, emp))
}

func TestConsumeCredit_ConcurrentDoubleSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	_, err := f.svc.GrantCredits(ctx, emp, model.CreditJobPosting, 1, "")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		denied    int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConsumeEmployerCredit(ctx, emp, model.CreditJobPosting)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				denied++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, 19, denied)
	require.EqualValues(t, 0, f.employer(t, emp).JobPostingCredits)
}

func TestConsumeCredit_TrialDoesNotBurn(t *testing.T) {
	f := newFixture(t, repository.DefaultPackages...)
	ctx := context.Background()
	js := f.user(t, "j@example.com", model.RoleJobseeker)

	_, err := f.svc.ActivateStandardTrial(ctx, js)
	require.NoError(t, err)

	res, err := f.svc.ConsumeAlertCredit(ctx, js)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Consumed)
	require.True(t, res.Trial)
	require.EqualValues(t, 20, f.jobseeker(t, js).CurrentAlertCredits)

	f.clock.Advance(15 * 24 * time.Hour)

	res, err = f.svc.ConsumeAlertCredit(ctx, js)
	require.NoError(t, err)
	require.True(t, res.Consumed)
	require.EqualValues(t, 19, res.Balance)
}

func TestConsumeCredit_WrongRole(t *testing.T) {
	f := newFixture(t)
	js := f.user(t, "j@example.com", model.RoleJobseeker)

	_, err := f.svc.ConsumeEmployerCredit(context.Background(), js, model.CreditAlert)
	require.ErrorIs(t, err, ErrInvalidCreditType)

	_, err = f.svc.ConsumeCredit(context.Background(), js, model.CreditJobPosting, nil)
	require.ErrorIs(t, err, ErrInvalidCreditType)

	_, err = f.svc.ConsumeCredit(context.Background(), js, model.CreditType("bogus"), nil)
	require.ErrorIs(t, err, ErrInvalidCreditType)
}

func TestHasActiveTrial_PremiumWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	end := f.clock.Now().Add(48 * time.Hour)
	err := f.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SetTrialFlags(ctx, model.RoleEmployer, emp, model.TrialFlags{
			HasStandardTrialActivated: true,
			StandardTrialEndDate:      &end,
			HasPremiumIndefiniteTrial: true,
		})
	})
	require.NoError(t, err)

	st, err := f.svc.HasActiveTrial(ctx, emp)
	require.NoError(t, err)
	require.True(t, st.Active)
	require.Equal(t, TrialPremium, st.Type)
	require.Nil(t, st.ExpiresAt)

	f.clock.Advance(72 * time.Hour)
	st, err = f.svc.HasActiveTrial(ctx, emp)
	require.NoError(t, err)
	require.Equal(t, TrialPremium, st.Type)
}

func TestHasActiveTrial_StandardExpires(t *testing.T) {
	f := newFixture(t, repository.DefaultPackages...)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	st, err := f.svc.HasActiveTrial(ctx, emp)
	require.NoError(t, err)
	require.False(t, st.Active)
	require.Equal(t, TrialNone, st.Type)

	_, err = f.svc.ActivateStandardTrial(ctx, emp)
	require.NoError(t, err)

	st, err = f.svc.HasActiveTrial(ctx, emp)
	require.NoError(t, err)
	require.True(t, st.Active)
	require.Equal(t, TrialStandard, st.Type)

	f.clock.Advance(14 * 24 * time.Hour)
	st, err = f.svc.HasActiveTrial(ctx, emp)
	require.NoError(t, err)
	require.False(t, st.Active)
}

func TestActivateStandardTrial_Jobseeker(t *testing.T) {
	f := newFixture(t, repository.DefaultPackages...)
	ctx := context.Background()
	js := f.user(t, "j@example.com", model.RoleJobseeker)

	act, err := f.svc.ActivateStandardTrial(ctx, js)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(14*24*time.Hour), act.EndDate)
	require.Equal(t, []model.CreditGrant{{CreditType: model.CreditAlert, Amount: 20}}, act.Granted)

	p := f.jobseeker(t, js)
	require.EqualValues(t, 20, p.CurrentAlertCredits)
	require.True(t, p.HasStandardTrialActivated)
	require.NotNil(t, p.StandardTrialEndDate)
	require.Equal(t, act.EndDate, *p.StandardTrialEndDate)

	_, err = f.svc.ActivateStandardTrial(ctx, js)
	require.ErrorIs(t, err, ErrTrialAlreadyUsed)
	require.EqualValues(t, 20, f.jobseeker(t, js).CurrentAlertCredits)
	require.Equal(t, 1, f.txCount(t, js))
}

func TestActivateStandardTrial_EmployerGetsBasicTier(t *testing.T) {
	f := newFixture(t, repository.DefaultPackages...)
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	_, err := f.svc.ActivateStandardTrial(context.Background(), emp)
	require.NoError(t, err)

	p := f.employer(t, emp)
	require.Equal(t, model.TierBasic, p.FeatureTier)
	require.EqualValues(t, 3, p.JobPostingCredits)
	require.EqualValues(t, 5, p.AIMatchingCredits)
	require.EqualValues(t, 5, p.CandidateSearchCredits)
}

func TestActivateStandardTrial_DefaultDuration(t *testing.T) {
	f := newFixture(t)
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	act, err := f.svc.ActivateStandardTrial(context.Background(), emp)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().Add(14*24*time.Hour), act.EndDate)
	require.Empty(t, act.Granted)
	require.Nil(t, act.PackageID)
	require.Equal(t, 0, f.txCount(t, emp))

	admin := f.user(t, "a@example.com", model.RoleAdmin)
	_, err = f.svc.ActivateStandardTrial(context.Background(), admin)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestPremiumTrial_GrantAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e2@example.com", model.RoleEmployer)

	_, err := f.svc.CreateJob(ctx, emp, "first")
	require.NoError(t, err)

	require.NoError(t, f.svc.GrantPremiumIndefiniteTrial(ctx, emp, "admin@example.com"))
	require.NoError(t, f.svc.GrantPremiumIndefiniteTrial(ctx, emp, "admin@example.com"))

	p := f.employer(t, emp)
	require.True(t, p.HasPremiumIndefiniteTrial)
	require.Equal(t, "admin@example.com", p.PremiumTrialOverrideBy)
	require.Equal(t, model.TierEnterprise, p.FeatureTier)

	d, err := f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.Trial)
	require.True(t, d.Unlimited)
	require.False(t, d.WillConsume)

	require.NoError(t, f.svc.RevokePremiumIndefiniteTrial(ctx, emp))
	p = f.employer(t, emp)
	require.False(t, p.HasPremiumIndefiniteTrial)
	require.Empty(t, p.PremiumTrialOverrideBy)
	require.Equal(t, model.TierFree, p.FeatureTier)

	d, err = f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestCanPostJob_DecisionOrder(t *testing.T) {
	f := newFixture(t, repository.DefaultPackages...)
	ctx := context.Background()

	admin := f.user(t, "a@example.com", model.RoleAdmin)
	d, err := f.svc.CanPostJob(ctx, admin)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, PostReasonNoProfile, d.Reason)

	d, err = f.svc.CanPostJob(ctx, 404)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	emp := f.user(t, "e@example.com", model.RoleEmployer)
	_, err = f.svc.GrantCredits(ctx, emp, model.CreditJobPosting, 2, "")
	require.NoError(t, err)

	d, err = f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.WillConsume)
	require.Equal(t, PostReasonCredits, d.Reason)
	require.EqualValues(t, 2, d.Credits)

	_, err = f.svc.ActivateStandardTrial(ctx, emp)
	require.NoError(t, err)

	d, err = f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.Trial)
	require.False(t, d.WillConsume)
	require.Equal(t, PostReasonTrial, d.Reason)
	require.EqualValues(t, 5, d.Credits)
}

func TestCanPostJob_FreeSlotScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	d, err := f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.FreeSlot)
	require.False(t, d.WillConsume)

	posted, err := f.svc.CreateJob(ctx, emp, "Driver")
	require.NoError(t, err)
	require.True(t, posted.Job.FreeSlot)
	require.False(t, posted.Job.CreditConsumed)

	d, err = f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, PostReasonNoCredits, d.Reason)

	_, err = f.svc.CreateJob(ctx, emp, "Cook")
	require.ErrorIs(t, err, ErrPostingNotAllowed)
	require.ErrorIs(t, err, repository.ErrInsufficientCredits)

	_, err = f.svc.CloseJob(ctx, emp, posted.Job.ID)
	require.NoError(t, err)

	d, err = f.svc.CanPostJob(ctx, emp)
	require.NoError(t, err)
	require.True(t, d.FreeSlot)
}

func TestCreateJob_ConsumesCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	_, err := f.svc.GrantCredits(ctx, emp, model.CreditJobPosting, 1, "")
	require.NoError(t, err)

	posted, err := f.svc.CreateJob(ctx, emp, "Accountant")
	require.NoError(t, err)
	require.True(t, posted.Job.CreditConsumed)
	require.EqualValues(t, 0, posted.Balance)
	require.EqualValues(t, 0, f.employer(t, emp).JobPostingCredits)

	page, err := f.svc.ListCreditTransactions(ctx, emp, 1, 0)
	require.NoError(t, err)
	require.Equal(t, model.ReasonConsumed, page.Transactions[0].Reason)
	require.Equal(t, model.RefJob, page.Transactions[0].ReferenceType)
	require.Equal(t, posted.Job.ID, *page.Transactions[0].ReferenceID)

	_, err = f.svc.CreateJob(ctx, emp, "  ")
	require.ErrorIs(t, err, ErrJobTitleRequired)
}

func TestCloseJob_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)
	other := f.user(t, "o@example.com", model.RoleEmployer)

	posted, err := f.svc.CreateJob(ctx, emp, "Driver")
	require.NoError(t, err)

	_, err = f.svc.CloseJob(ctx, other, posted.Job.ID)
	require.ErrorIs(t, err, ErrForbidden)

	closed, err := f.svc.CloseJob(ctx, emp, posted.Job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusClosed, closed.Status)

	_, err = f.svc.CloseJob(ctx, emp, posted.Job.ID)
	require.ErrorIs(t, err, ErrJobClosed)

	_, err = f.svc.CloseJob(ctx, emp, 12345)
	require.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestCheckCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.user(t, "e@example.com", model.RoleEmployer)

	c, err := f.svc.CheckCredit(ctx, emp, model.CreditAIMatching)
	require.NoError(t, err)
	require.False(t, c.Allowed)

	_, err = f.svc.GrantCredits(ctx, emp, model.CreditAIMatching, 1, "")
	require.NoError(t, err)

	c, err = f.svc.CheckCredit(ctx, emp, model.CreditAIMatching)
	require.NoError(t, err)
	require.True(t, c.Allowed)
	require.EqualValues(t, 1, c.Balance)

	_, err = f.svc.CheckCredit(ctx, emp, model.CreditAlert)
	require.ErrorIs(t, err, ErrInvalidCreditType)
}
