package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу биллинга в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// querier объединяет общие методы pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresRepository создаёт репозиторий, применяет миграции и заполняет каталог пакетов.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.withRetry(ctx, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := r.seedPackages(ctx, DefaultPackages); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) seedPackages(ctx context.Context, pkgs []model.Package) error {
	for _, p := range pkgs {
		currency := p.Currency
		if currency == "" {
			currency = model.DefaultCurrency
		}
		_, err := r.pool.Exec(ctx,
			`INSERT INTO packages (slug, name, role, price_toea, currency, job_posting_credits, ai_matching_credits,
			                       candidate_search_credits, alert_credits, feature_tier, trial_duration_days,
			                       auto_apply_enabled, active, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14)
			 ON CONFLICT (slug) DO NOTHING`,
			p.Slug, p.Name, string(p.Role), p.PriceToea, currency, p.JobPostingCredits, p.AIMatchingCredits,
			p.CandidateSearchCredits, p.AlertCredits, string(p.FeatureTier), p.TrialDurationDays,
			p.AutoApplyEnabled, p.Active, p.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("seed package %s: %w", p.Slug, err)
		}
	}
	return nil
}

// withRetry повторяет fn при временных ошибках соединения. Используется только при запуске:
// операции биллинга не повторяются автоматически.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if isConnectionError(err) && i < len(delays) {
			timer := time.NewTimer(delays[i])
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) || pgErr.Code == pgerrcode.CannotConnectNow
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в одной транзакции БД. Ошибка fn откатывает транзакцию.
func (r *PostgresRepository) InTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateUser создаёт пользователя и профиль его роли в одной транзакции.
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, role model.Role) (*model.User, error) {
	var u model.User

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id, email, role, created_at`,
		email, string(role),
	).Scan(&u.ID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	switch role {
	case model.RoleEmployer:
		_, err = tx.Exec(ctx, `INSERT INTO employer_profiles (user_id) VALUES ($1)`, u.ID)
	case model.RoleJobseeker:
		_, err = tx.Exec(ctx, `INSERT INTO jobseeker_profiles (user_id) VALUES ($1)`, u.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return getUser(ctx, r.pool, userID)
}

// GetEmployerProfile возвращает профиль работодателя.
func (r *PostgresRepository) GetEmployerProfile(ctx context.Context, userID int64) (*model.EmployerProfile, error) {
	return getEmployerProfile(ctx, r.pool, userID, false)
}

// GetJobseekerProfile возвращает профиль соискателя.
func (r *PostgresRepository) GetJobseekerProfile(ctx context.Context, userID int64) (*model.JobseekerProfile, error) {
	return getJobseekerProfile(ctx, r.pool, userID, false)
}

// CountActiveJobs возвращает число активных вакансий работодателя. Не кэшируется.
func (r *PostgresRepository) CountActiveJobs(ctx context.Context, employerID int64) (int, error) {
	return countActiveJobs(ctx, r.pool, employerID)
}

// ListJobs возвращает вакансии работодателя, новые первыми.
func (r *PostgresRepository) ListJobs(ctx context.Context, employerID int64) ([]model.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, employer_id, title, status, credit_consumed, free_slot, created_at
		 FROM jobs
		 WHERE employer_id = $1
		 ORDER BY id DESC`,
		employerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var res []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Status, &j.CreditConsumed, &j.FreeSlot, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		res = append(res, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListCreditTransactions возвращает страницу журнала кредитов и общее число строк.
func (r *PostgresRepository) ListCreditTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.CreditTransaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count credit transactions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, credit_type, amount, balance_after, reason, COALESCE(reference_type, ''), reference_id, created_at
		 FROM credit_transactions
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select credit transactions: %w", err)
	}
	defer rows.Close()

	var res []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.CreditType, &t.Amount, &t.BalanceAfter, &t.Reason,
			&t.ReferenceType, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan credit transaction: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return res, total, nil
}

const packageColumns = `id, slug, name, role, price_toea, currency, job_posting_credits, ai_matching_credits,
	candidate_search_credits, alert_credits, COALESCE(feature_tier, ''), trial_duration_days,
	auto_apply_enabled, active, sort_order`

func scanPackage(row pgx.Row) (*model.Package, error) {
	var p model.Package
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Role, &p.PriceToea, &p.Currency, &p.JobPostingCredits,
		&p.AIMatchingCredits, &p.CandidateSearchCredits, &p.AlertCredits, &p.FeatureTier,
		&p.TrialDurationDays, &p.AutoApplyEnabled, &p.Active, &p.SortOrder)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPackages возвращает пакеты роли в порядке сортировки.
func (r *PostgresRepository) ListPackages(ctx context.Context, role model.Role, activeOnly bool) ([]model.Package, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+packageColumns+`
		 FROM packages
		 WHERE role = $1 AND (active OR NOT $2)
		 ORDER BY sort_order, id`,
		string(role), activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select packages: %w", err)
	}
	defer rows.Close()

	var res []model.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetPackage возвращает пакет по идентификатору.
func (r *PostgresRepository) GetPackage(ctx context.Context, packageID int64) (*model.Package, error) {
	return getPackage(ctx, r.pool, packageID)
}

// GetTrialPackage возвращает первый активный пробный пакет роли.
func (r *PostgresRepository) GetTrialPackage(ctx context.Context, role model.Role) (*model.Package, error) {
	p, err := scanPackage(r.pool.QueryRow(ctx,
		`SELECT `+packageColumns+`
		 FROM packages
		 WHERE role = $1 AND active AND trial_duration_days > 0
		 ORDER BY sort_order, id
		 LIMIT 1`,
		string(role),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get trial package: %w", err)
	}
	return p, nil
}

const orderColumns = `id, user_id, package_id, amount_toea, currency, status, invoice_number, COALESCE(notes, ''),
	approved_by, created_at, approved_at, completed_at, rejected_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.PackageID, &o.AmountToea, &o.Currency, &o.Status, &o.InvoiceNumber,
		&o.Notes, &o.ApprovedBy, &o.CreatedAt, &o.ApprovedAt, &o.CompletedAt, &o.RejectedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder сохраняет новый заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order model.Order) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`INSERT INTO orders (user_id, package_id, amount_toea, currency, status, invoice_number)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+orderColumns,
		order.UserID, order.PackageID, order.AmountToea, order.Currency, string(order.Status), order.InvoiceNumber,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, order.InvoiceNumber)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return getOrder(ctx, r.pool, orderID, false)
}

// ListOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID)
}

// ListOrdersByStatus возвращает заказы в статусе; пустой статус означает все заказы.
func (r *PostgresRepository) ListOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1) ORDER BY id LIMIT $2`,
		string(status), limit)
}

func (r *PostgresRepository) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListResetCandidates возвращает пользователей роли, которым положен ежегодный сброс.
func (r *PostgresRepository) ListResetCandidates(ctx context.Context, role model.Role, year int) ([]int64, error) {
	table, err := profileTable(role)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM `+table+`
		 WHERE NOT has_premium_indefinite_trial
		   AND (last_annual_credit_reset_year IS NULL OR last_annual_credit_reset_year < $1)
		 ORDER BY user_id`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("select reset candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reset candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// GetWallet возвращает кошелёк пользователя; отсутствующий кошелёк возвращается пустым.
func (r *PostgresRepository) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	if _, err := getUser(ctx, r.pool, userID); err != nil {
		return nil, err
	}

	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM credit_wallets WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.Wallet{UserID: userID, Currency: model.DefaultCurrency}, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// ListWalletTransactions возвращает страницу журнала кошелька и общее число строк.
func (r *PostgresRepository) ListWalletTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.WalletTransaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+walletTxColumns+`
		 FROM wallet_transactions
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select wallet transactions: %w", err)
	}
	defer rows.Close()

	var res []model.WalletTransaction
	for rows.Next() {
		wt, err := scanWalletTx(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction: %w", err)
		}
		res = append(res, *wt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return res, total, nil
}

// CreateDepositIntent сохраняет намерение пополнения.
func (r *PostgresRepository) CreateDepositIntent(ctx context.Context, intent model.DepositIntent) (*model.DepositIntent, error) {
	d, err := scanDeposit(r.pool.QueryRow(ctx,
		`INSERT INTO deposit_intents (user_id, amount_toea, currency, reference, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+depositColumns,
		intent.UserID, intent.AmountToea, intent.Currency, intent.Reference, string(intent.Status),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, intent.Reference)
		}
		return nil, fmt.Errorf("insert deposit intent: %w", err)
	}
	return d, nil
}

// GetRefund возвращает запрос на возврат.
func (r *PostgresRepository) GetRefund(ctx context.Context, refundID int64) (*model.Refund, error) {
	return getRefund(ctx, r.pool, refundID, false)
}
