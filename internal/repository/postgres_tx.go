package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

// postgresTx реализует Tx поверх pgx.Tx. Блокировки строк берутся через SELECT ... FOR UPDATE.
type postgresTx struct {
	tx pgx.Tx
}

// creditColumn возвращает таблицу и колонку баланса для вида кредитов.
// Имена колонок берутся только из этого switch, пользовательский ввод в SQL не попадает.
func creditColumn(ct model.CreditType) (table, column string, err error) {
	switch ct {
	case model.CreditJobPosting:
		return "employer_profiles", "job_posting_credits", nil
	case model.CreditAIMatching:
		return "employer_profiles", "ai_matching_credits", nil
	case model.CreditCandidateSearch:
		return "employer_profiles", "candidate_search_credits", nil
	case model.CreditAlert:
		return "jobseeker_profiles", "current_alert_credits", nil
	}
	return "", "", fmt.Errorf("unknown credit type %q", ct)
}

func profileTable(role model.Role) (string, error) {
	switch role {
	case model.RoleEmployer:
		return "employer_profiles", nil
	case model.RoleJobseeker:
		return "jobseeker_profiles", nil
	}
	return "", ErrProfileNotFound
}

func lockClause(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func getUser(ctx context.Context, q querier, userID int64) (*model.User, error) {
	var u model.User
	err := q.QueryRow(ctx,
		`SELECT id, email, role, created_at FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func getEmployerProfile(ctx context.Context, q querier, userID int64, lock bool) (*model.EmployerProfile, error) {
	var p model.EmployerProfile
	err := q.QueryRow(ctx,
		`SELECT user_id, job_posting_credits, ai_matching_credits, candidate_search_credits, feature_tier,
		        last_annual_credit_reset_year, has_standard_trial_activated, standard_trial_end_date,
		        has_premium_indefinite_trial, COALESCE(premium_trial_override_by, '')
		 FROM employer_profiles
		 WHERE user_id = $1`+lockClause(lock),
		userID,
	).Scan(&p.UserID, &p.JobPostingCredits, &p.AIMatchingCredits, &p.CandidateSearchCredits, &p.FeatureTier,
		&p.LastAnnualCreditResetYear, &p.HasStandardTrialActivated, &p.StandardTrialEndDate,
		&p.HasPremiumIndefiniteTrial, &p.PremiumTrialOverrideBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get employer profile: %w", err)
	}
	return &p, nil
}

func getJobseekerProfile(ctx context.Context, q querier, userID int64, lock bool) (*model.JobseekerProfile, error) {
	var p model.JobseekerProfile
	err := q.QueryRow(ctx,
		`SELECT user_id, current_alert_credits, auto_apply_enabled, active_package_id,
		        last_annual_credit_reset_year, has_standard_trial_activated, standard_trial_end_date,
		        has_premium_indefinite_trial, COALESCE(premium_trial_override_by, '')
		 FROM jobseeker_profiles
		 WHERE user_id = $1`+lockClause(lock),
		userID,
	).Scan(&p.UserID, &p.CurrentAlertCredits, &p.AutoApplyEnabled, &p.ActivePackageID,
		&p.LastAnnualCreditResetYear, &p.HasStandardTrialActivated, &p.StandardTrialEndDate,
		&p.HasPremiumIndefiniteTrial, &p.PremiumTrialOverrideBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get jobseeker profile: %w", err)
	}
	return &p, nil
}

func countActiveJobs(ctx context.Context, q querier, employerID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE employer_id = $1 AND status = $2`,
		employerID, string(model.JobStatusActive),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

func getPackage(ctx context.Context, q querier, packageID int64) (*model.Package, error) {
	p, err := scanPackage(q.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, packageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	return p, nil
}

func getOrder(ctx context.Context, q querier, orderID int64, lock bool) (*model.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`+lockClause(lock), orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

const walletColumns = `user_id, balance_toea, reserved_toea, currency, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	if err := row.Scan(&w.UserID, &w.BalanceToea, &w.ReservedToea, &w.Currency, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

const walletTxColumns = `id, user_id, type, balance_delta_toea, reserved_delta_toea, balance_after_toea,
	reserved_after_toea, COALESCE(reference_type, ''), COALESCE(reference_id, ''), COALESCE(description, ''), created_at`

func scanWalletTx(row pgx.Row) (*model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.BalanceDelta, &t.ReservedDelta, &t.BalanceAfter,
		&t.ReservedAfter, &t.ReferenceType, &t.ReferenceID, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const depositColumns = `id, user_id, amount_toea, currency, reference, status, COALESCE(bank_reference, ''),
	matched_amount_toea, matched_by, created_at, matched_at`

func scanDeposit(row pgx.Row) (*model.DepositIntent, error) {
	var d model.DepositIntent
	err := row.Scan(&d.ID, &d.UserID, &d.AmountToea, &d.Currency, &d.Reference, &d.Status, &d.BankReference,
		&d.MatchedAmountToea, &d.MatchedBy, &d.CreatedAt, &d.MatchedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const holdColumns = `id::text, user_id, amount_toea, status, COALESCE(description, ''), created_at, settled_at`

func scanHold(row pgx.Row) (*model.WalletHold, error) {
	var h model.WalletHold
	if err := row.Scan(&h.ID, &h.UserID, &h.AmountToea, &h.Status, &h.Description, &h.CreatedAt, &h.SettledAt); err != nil {
		return nil, err
	}
	return &h, nil
}

const refundColumns = `id, user_id, transaction_id, amount_toea, reason, status, reviewed_by, COALESCE(notes, ''),
	created_at, reviewed_at`

func scanRefund(row pgx.Row) (*model.Refund, error) {
	var rf model.Refund
	err := row.Scan(&rf.ID, &rf.UserID, &rf.TransactionID, &rf.AmountToea, &rf.Reason, &rf.Status,
		&rf.ReviewedBy, &rf.Notes, &rf.CreatedAt, &rf.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func getRefund(ctx context.Context, q querier, refundID int64, lock bool) (*model.Refund, error) {
	rf, err := scanRefund(q.QueryRow(ctx,
		`SELECT `+refundColumns+` FROM credit_refunds WHERE id = $1`+lockClause(lock), refundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return rf, nil
}

func (t *postgresTx) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, t.tx, userID)
}

func (t *postgresTx) LockEmployerProfile(ctx context.Context, userID int64) (*model.EmployerProfile, error) {
	return getEmployerProfile(ctx, t.tx, userID, true)
}

func (t *postgresTx) LockJobseekerProfile(ctx context.Context, userID int64) (*model.JobseekerProfile, error) {
	return getJobseekerProfile(ctx, t.tx, userID, true)
}

func (t *postgresTx) ApplyCredit(ctx context.Context, e model.CreditEntry) (int64, error) {
	table, column, err := creditColumn(e.CreditType)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = t.tx.QueryRow(ctx,
		`UPDATE `+table+` SET `+column+` = `+column+` + $2 WHERE user_id = $1 RETURNING `+column,
		e.UserID, e.Amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		if isCheckViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrNegativeBalance, e.CreditType)
		}
		return 0, fmt.Errorf("apply credit: %w", err)
	}

	if err := t.insertCreditTx(ctx, e, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// ConsumeCredit выполняет условное списание: строка обновляется, только если баланс положителен,
// поэтому два параллельных списания последнего кредита не пройдут оба.
func (t *postgresTx) ConsumeCredit(ctx context.Context, userID int64, ct model.CreditType, reason model.Reason, ref *model.Reference) (int64, error) {
	table, column, err := creditColumn(ct)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = t.tx.QueryRow(ctx,
		`UPDATE `+table+` SET `+column+` = `+column+` - 1 WHERE user_id = $1 AND `+column+` > 0 RETURNING `+column,
		userID,
	).Scan(&balance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("consume credit: %w", err)
		}
		var exists bool
		if err := t.tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE user_id = $1)`, userID,
		).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check profile: %w", err)
		}
		if !exists {
			return 0, ErrProfileNotFound
		}
		return 0, ErrInsufficientCredits
	}

	entry := model.CreditEntry{UserID: userID, CreditType: ct, Amount: -1, Reason: reason, Reference: ref}
	if err := t.insertCreditTx(ctx, entry, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (t *postgresTx) insertCreditTx(ctx context.Context, e model.CreditEntry, balance int64) error {
	var refType *string
	var refID *int64
	if e.Reference != nil {
		refType = &e.Reference.Type
		refID = &e.Reference.ID
	}

	_, err := t.tx.Exec(ctx,
		`INSERT INTO credit_transactions (user_id, credit_type, amount, balance_after, reason, reference_type, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, string(e.CreditType), e.Amount, balance, string(e.Reason), refType, refID,
	)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

func (t *postgresTx) SetTrialFlags(ctx context.Context, role model.Role, userID int64, flags model.TrialFlags) error {
	table, err := profileTable(role)
	if err != nil {
		return err
	}

	var overrideBy *string
	if flags.PremiumTrialOverrideBy != "" {
		overrideBy = &flags.PremiumTrialOverrideBy
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE `+table+`
		 SET has_standard_trial_activated = $2, standard_trial_end_date = $3,
		     has_premium_indefinite_trial = $4, premium_trial_override_by = $5
		 WHERE user_id = $1`,
		userID, flags.HasStandardTrialActivated, flags.StandardTrialEndDate,
		flags.HasPremiumIndefiniteTrial, overrideBy,
	)
	return profileUpdated(tag, err, "set trial flags")
}

func (t *postgresTx) SetFeatureTier(ctx context.Context, userID int64, tier model.FeatureTier) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE employer_profiles SET feature_tier = $2 WHERE user_id = $1`, userID, string(tier))
	return profileUpdated(tag, err, "set feature tier")
}

func (t *postgresTx) SetJobseekerPackage(ctx context.Context, userID int64, packageID *int64, autoApply bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE jobseeker_profiles SET active_package_id = $2, auto_apply_enabled = $3 WHERE user_id = $1`,
		userID, packageID, autoApply)
	return profileUpdated(tag, err, "set jobseeker package")
}

func (t *postgresTx) MarkAnnualReset(ctx context.Context, role model.Role, userID int64, year int) error {
	table, err := profileTable(role)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+table+` SET last_annual_credit_reset_year = $2 WHERE user_id = $1`, userID, year)
	return profileUpdated(tag, err, "mark annual reset")
}

func profileUpdated(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (t *postgresTx) GetPackage(ctx context.Context, packageID int64) (*model.Package, error) {
	return getPackage(ctx, t.tx, packageID)
}

func (t *postgresTx) LockOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return getOrder(ctx, t.tx, orderID, true)
}

// TransitionOrder меняет статус заказа, только если он всё ещё равен tr.From.
func (t *postgresTx) TransitionOrder(ctx context.Context, tr OrderTransition) error {
	var (
		tag pgconn.CommandTag
		err error
	)

	switch tr.To {
	case model.OrderStatusApproved:
		tag, err = t.tx.Exec(ctx,
			`UPDATE orders SET status = $3, approved_by = $4, approved_at = $5 WHERE id = $1 AND status = $2`,
			tr.OrderID, string(tr.From), string(tr.To), tr.AdminID, tr.At)
	case model.OrderStatusCompleted:
		tag, err = t.tx.Exec(ctx,
			`UPDATE orders SET status = $3, completed_at = $4 WHERE id = $1 AND status = $2`,
			tr.OrderID, string(tr.From), string(tr.To), tr.At)
	case model.OrderStatusRejected:
		tag, err = t.tx.Exec(ctx,
			`UPDATE orders SET status = $3, rejected_at = $4, notes = $5 WHERE id = $1 AND status = $2`,
			tr.OrderID, string(tr.From), string(tr.To), tr.At, tr.Notes)
	default:
		return fmt.Errorf("unsupported order status %q", tr.To)
	}
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		o, err := getOrder(ctx, t.tx, tr.OrderID, false)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: order %d is %s, expected %s", ErrStatusConflict, o.ID, o.Status, tr.From)
	}
	return nil
}

func (t *postgresTx) CountActiveJobs(ctx context.Context, employerID int64) (int, error) {
	return countActiveJobs(ctx, t.tx, employerID)
}

func (t *postgresTx) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	var j model.Job
	err := t.tx.QueryRow(ctx,
		`INSERT INTO jobs (employer_id, title, status, credit_consumed, free_slot)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, employer_id, title, status, credit_consumed, free_slot, created_at`,
		job.EmployerID, job.Title, string(job.Status), job.CreditConsumed, job.FreeSlot,
	).Scan(&j.ID, &j.EmployerID, &j.Title, &j.Status, &j.CreditConsumed, &j.FreeSlot, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &j, nil
}

func (t *postgresTx) LockJob(ctx context.Context, jobID int64) (*model.Job, error) {
	var j model.Job
	err := t.tx.QueryRow(ctx,
		`SELECT id, employer_id, title, status, credit_consumed, free_slot, created_at
		 FROM jobs WHERE id = $1 FOR UPDATE`,
		jobID,
	).Scan(&j.ID, &j.EmployerID, &j.Title, &j.Status, &j.CreditConsumed, &j.FreeSlot, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("lock job: %w", err)
	}
	return &j, nil
}

func (t *postgresTx) CloseJob(ctx context.Context, jobID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE jobs SET status = $2 WHERE id = $1`, jobID, string(model.JobStatusClosed))
	if err != nil {
		return fmt.Errorf("close job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// LockWallet блокирует кошелёк пользователя, создавая его при первом обращении.
func (t *postgresTx) LockWallet(ctx context.Context, userID int64, currency string) (*model.Wallet, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO credit_wallets (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, currency)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM credit_wallets WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

func (t *postgresTx) ApplyWallet(ctx context.Context, e model.WalletEntry) (*model.WalletTransaction, error) {
	var balance, reserved int64
	err := t.tx.QueryRow(ctx,
		`UPDATE credit_wallets
		 SET balance_toea = balance_toea + $2, reserved_toea = reserved_toea + $3, updated_at = now()
		 WHERE user_id = $1
		 RETURNING balance_toea, reserved_toea`,
		e.UserID, e.BalanceDelta, e.ReservedDelta,
	).Scan(&balance, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet of user %d is not locked", e.UserID)
		}
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: wallet %d", ErrNegativeBalance, e.UserID)
		}
		return nil, fmt.Errorf("apply wallet: %w", err)
	}

	wt, err := scanWalletTx(t.tx.QueryRow(ctx,
		`INSERT INTO wallet_transactions (user_id, type, balance_delta_toea, reserved_delta_toea, balance_after_toea,
		                                  reserved_after_toea, reference_type, reference_id, description)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''))
		 RETURNING `+walletTxColumns,
		e.UserID, string(e.Type), e.BalanceDelta, e.ReservedDelta, balance, reserved,
		e.ReferenceType, e.ReferenceID, e.Description,
	))
	if err != nil {
		return nil, fmt.Errorf("insert wallet transaction: %w", err)
	}
	return wt, nil
}

func (t *postgresTx) GetWalletTransaction(ctx context.Context, txID int64) (*model.WalletTransaction, error) {
	wt, err := scanWalletTx(t.tx.QueryRow(ctx,
		`SELECT `+walletTxColumns+` FROM wallet_transactions WHERE id = $1`, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletTransactionNotFound
		}
		return nil, fmt.Errorf("get wallet transaction: %w", err)
	}
	return wt, nil
}

func (t *postgresTx) LockDepositIntent(ctx context.Context, intentID int64) (*model.DepositIntent, error) {
	return t.lockDeposit(ctx, `id = $1`, intentID)
}

func (t *postgresTx) LockDepositIntentByReference(ctx context.Context, reference string) (*model.DepositIntent, error) {
	return t.lockDeposit(ctx, `reference = $1`, reference)
}

func (t *postgresTx) lockDeposit(ctx context.Context, where string, arg any) (*model.DepositIntent, error) {
	d, err := scanDeposit(t.tx.QueryRow(ctx,
		`SELECT `+depositColumns+` FROM deposit_intents WHERE `+where+` FOR UPDATE`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("lock deposit intent: %w", err)
	}
	return d, nil
}

func (t *postgresTx) SettleDepositIntent(ctx context.Context, d *model.DepositIntent) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE deposit_intents
		 SET status = $2, bank_reference = NULLIF($3, ''), matched_amount_toea = $4, matched_by = $5, matched_at = $6
		 WHERE id = $1 AND status = $7`,
		d.ID, string(d.Status), d.BankReference, d.MatchedAmountToea, d.MatchedBy, d.MatchedAt,
		string(model.DepositPending),
	)
	if err != nil {
		return fmt.Errorf("settle deposit intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: deposit %d is not pending", ErrStatusConflict, d.ID)
	}
	return nil
}

func (t *postgresTx) CreateHold(ctx context.Context, h model.WalletHold) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO wallet_holds (id, user_id, amount_toea, status, description, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		h.ID, h.UserID, h.AmountToea, string(h.Status), h.Description, h.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hold %s", ErrDuplicateReference, h.ID)
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

func (t *postgresTx) LockHold(ctx context.Context, holdID string) (*model.WalletHold, error) {
	h, err := scanHold(t.tx.QueryRow(ctx,
		`SELECT `+holdColumns+` FROM wallet_holds WHERE id::text = $1 FOR UPDATE`, holdID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("lock hold: %w", err)
	}
	return h, nil
}

func (t *postgresTx) SettleHold(ctx context.Context, holdID string, status model.HoldStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE wallet_holds SET status = $2, settled_at = $3 WHERE id::text = $1 AND status = $4`,
		holdID, string(status), at, string(model.HoldActive))
	if err != nil {
		return fmt.Errorf("settle hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: hold %s is not held", ErrStatusConflict, holdID)
	}
	return nil
}

func (t *postgresTx) CreateRefund(ctx context.Context, rf model.Refund) (*model.Refund, error) {
	res, err := scanRefund(t.tx.QueryRow(ctx,
		`INSERT INTO credit_refunds (user_id, transaction_id, amount_toea, reason, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+refundColumns,
		rf.UserID, rf.TransactionID, rf.AmountToea, rf.Reason, string(rf.Status)))
	if err != nil {
		return nil, fmt.Errorf("insert refund: %w", err)
	}
	return res, nil
}

func (t *postgresTx) LockRefund(ctx context.Context, refundID int64) (*model.Refund, error) {
	return getRefund(ctx, t.tx, refundID, true)
}

func (t *postgresTx) SumOpenRefunds(ctx context.Context, txID int64) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_toea), 0) FROM credit_refunds WHERE transaction_id = $1 AND status <> $2`,
		txID, string(model.RefundRejected),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum refunds: %w", err)
	}
	return sum, nil
}

func (t *postgresTx) ReviewRefund(ctx context.Context, refundID int64, status model.RefundStatus, reviewer int64, notes string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE credit_refunds SET status = $2, reviewed_by = $3, notes = NULLIF($4, ''), reviewed_at = $5
		 WHERE id = $1 AND status = $6`,
		refundID, string(status), reviewer, notes, at, string(model.RefundPending))
	if err != nil {
		return fmt.Errorf("review refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := getRefund(ctx, t.tx, refundID, false); err != nil {
			return err
		}
		return fmt.Errorf("%w: refund %d is not pending", ErrStatusConflict, refundID)
	}
	return nil
}
