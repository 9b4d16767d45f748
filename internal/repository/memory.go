package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

// MemoryRepository хранит данные биллинга в памяти процесса.
// Все транзакции сериализуются одной блокировкой; при ошибке состояние откатывается к снимку.
type MemoryRepository struct {
	mu    sync.RWMutex
	state memState
	now   func() time.Time
}

type memState struct {
	users      map[int64]model.User
	employers  map[int64]model.EmployerProfile
	jobseekers map[int64]model.JobseekerProfile
	packages   map[int64]model.Package
	orders     map[int64]model.Order
	creditTxs  []model.CreditTransaction
	jobs       map[int64]model.Job
	wallets    map[int64]model.Wallet
	walletTxs  []model.WalletTransaction
	deposits   map[int64]model.DepositIntent
	holds      map[string]model.WalletHold
	refunds    map[int64]model.Refund
	seq        map[string]int64
}

func (s memState) clone() memState {
	return memState{
		users:      maps.Clone(s.users),
		employers:  maps.Clone(s.employers),
		jobseekers: maps.Clone(s.jobseekers),
		packages:   maps.Clone(s.packages),
		orders:     maps.Clone(s.orders),
		creditTxs:  slices.Clone(s.creditTxs),
		jobs:       maps.Clone(s.jobs),
		wallets:    maps.Clone(s.wallets),
		walletTxs:  slices.Clone(s.walletTxs),
		deposits:   maps.Clone(s.deposits),
		holds:      maps.Clone(s.holds),
		refunds:    maps.Clone(s.refunds),
		seq:        maps.Clone(s.seq),
	}
}

// NewMemoryRepository создаёт пустое хранилище и заполняет каталог указанными пакетами.
func NewMemoryRepository(packages ...model.Package) *MemoryRepository {
	r := &MemoryRepository{
		state: memState{
			users:      make(map[int64]model.User),
			employers:  make(map[int64]model.EmployerProfile),
			jobseekers: make(map[int64]model.JobseekerProfile),
			packages:   make(map[int64]model.Package),
			orders:     make(map[int64]model.Order),
			jobs:       make(map[int64]model.Job),
			wallets:    make(map[int64]model.Wallet),
			deposits:   make(map[int64]model.DepositIntent),
			holds:      make(map[string]model.WalletHold),
			refunds:    make(map[int64]model.Refund),
			seq:        make(map[string]int64),
		},
		now: time.Now,
	}

	for _, p := range packages {
		r.AddPackage(p)
	}

	return r
}

func (r *MemoryRepository) next(name string) int64 {
	r.state.seq[name]++
	return r.state.seq[name]
}

// AddPackage добавляет пакет в каталог и возвращает его идентификатор.
func (r *MemoryRepository) AddPackage(p model.Package) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Currency == "" {
		p.Currency = model.DefaultCurrency
	}
	p.ID = r.next("packages")
	r.state.packages[p.ID] = p
	return p.ID
}

// Close ничего не делает и нужен для соответствия контракту хранилища.
func (r *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn под эксклюзивной блокировкой. Ошибка fn откатывает все изменения.
func (r *MemoryRepository) InTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{r: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

// CreateUser создаёт пользователя и профиль его роли.
func (r *MemoryRepository) CreateUser(_ context.Context, email string, role model.Role) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.state.users {
		if strings.EqualFold(u.Email, email) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
	}

	u := model.User{ID: r.next("users"), Email: email, Role: role, CreatedAt: r.now()}
	r.state.users[u.ID] = u

	switch role {
	case model.RoleEmployer:
		r.state.employers[u.ID] = model.EmployerProfile{UserID: u.ID, FeatureTier: model.TierFree}
	case model.RoleJobseeker:
		r.state.jobseekers[u.ID] = model.JobseekerProfile{UserID: u.ID}
	}

	return &u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUser(_ context.Context, userID int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getUser(userID)
}

func (r *MemoryRepository) getUser(userID int64) (*model.User, error) {
	u, ok := r.state.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// GetEmployerProfile возвращает профиль работодателя.
func (r *MemoryRepository) GetEmployerProfile(_ context.Context, userID int64) (*model.EmployerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getEmployer(userID)
}

func (r *MemoryRepository) getEmployer(userID int64) (*model.EmployerProfile, error) {
	p, ok := r.state.employers[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// GetJobseekerProfile возвращает профиль соискателя.
func (r *MemoryRepository) GetJobseekerProfile(_ context.Context, userID int64) (*model.JobseekerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getJobseeker(userID)
}

func (r *MemoryRepository) getJobseeker(userID int64) (*model.JobseekerProfile, error) {
	p, ok := r.state.jobseekers[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// CountActiveJobs возвращает число активных вакансий работодателя.
func (r *MemoryRepository) CountActiveJobs(_ context.Context, employerID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActiveJobs(employerID), nil
}

func (r *MemoryRepository) countActiveJobs(employerID int64) int {
	n := 0
	for _, j := range r.state.jobs {
		if j.EmployerID == employerID && j.Status == model.JobStatusActive {
			n++
		}
	}
	return n
}

// ListJobs возвращает вакансии работодателя, новые первыми.
func (r *MemoryRepository) ListJobs(_ context.Context, employerID int64) ([]model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Job
	for _, j := range r.state.jobs {
		if j.EmployerID == employerID {
			res = append(res, j)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].ID > res[k].ID })
	return res, nil
}

// ListCreditTransactions возвращает журнал кредитов пользователя, новые первыми.
func (r *MemoryRepository) ListCreditTransactions(_ context.Context, userID int64, limit, offset int) ([]model.CreditTransaction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []model.CreditTransaction
	for i := len(r.state.creditTxs) - 1; i >= 0; i-- {
		if r.state.creditTxs[i].UserID == userID {
			all = append(all, r.state.creditTxs[i])
		}
	}
	return page(all, limit, offset), len(all), nil
}

// ListPackages возвращает пакеты роли в порядке сортировки.
func (r *MemoryRepository) ListPackages(_ context.Context, role model.Role, activeOnly bool) ([]model.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Package
	for _, p := range r.state.packages {
		if p.Role != role || (activeOnly && !p.Active) {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, k int) bool {
		if res[i].SortOrder != res[k].SortOrder {
			return res[i].SortOrder < res[k].SortOrder
		}
		return res[i].ID < res[k].ID
	})
	return res, nil
}

// GetPackage возвращает пакет по идентификатору.
func (r *MemoryRepository) GetPackage(_ context.Context, packageID int64) (*model.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getPackage(packageID)
}

func (r *MemoryRepository) getPackage(packageID int64) (*model.Package, error) {
	p, ok := r.state.packages[packageID]
	if !ok {
		return nil, ErrPackageNotFound
	}
	return &p, nil
}

// GetTrialPackage возвращает первый активный пробный пакет роли.
func (r *MemoryRepository) GetTrialPackage(ctx context.Context, role model.Role) (*model.Package, error) {
	pkgs, err := r.ListPackages(ctx, role, true)
	if err != nil {
		return nil, err
	}
	for _, p := range pkgs {
		if p.IsTrial() {
			return &p, nil
		}
	}
	return nil, ErrPackageNotFound
}

// CreateOrder сохраняет новый заказ.
func (r *MemoryRepository) CreateOrder(_ context.Context, order model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.state.orders {
		if o.InvoiceNumber == order.InvoiceNumber {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, order.InvoiceNumber)
		}
	}

	order.ID = r.next("orders")
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	r.state.orders[order.ID] = order
	return &order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(_ context.Context, orderID int64) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getOrder(orderID)
}

func (r *MemoryRepository) getOrder(orderID int64) (*model.Order, error) {
	o, ok := r.state.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// ListOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *MemoryRepository) ListOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Order
	for _, o := range r.state.orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].ID > res[k].ID })
	return res, nil
}

// ListOrdersByStatus возвращает заказы в статусе; пустой статус означает все заказы.
func (r *MemoryRepository) ListOrdersByStatus(_ context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Order
	for _, o := range r.state.orders {
		if status == "" || o.Status == status {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, k int) bool { return res[i].ID < res[k].ID })
	return page(res, limit, 0), nil
}

// ListResetCandidates возвращает пользователей роли, которым положен ежегодный сброс.
func (r *MemoryRepository) ListResetCandidates(_ context.Context, role model.Role, year int) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	switch role {
	case model.RoleEmployer:
		for id, p := range r.state.employers {
			if resetDue(p.HasPremiumIndefiniteTrial, p.LastAnnualCreditResetYear, year) {
				ids = append(ids, id)
			}
		}
	case model.RoleJobseeker:
		for id, p := range r.state.jobseekers {
			if resetDue(p.HasPremiumIndefiniteTrial, p.LastAnnualCreditResetYear, year) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func resetDue(premium bool, last *int, year int) bool {
	return !premium && (last == nil || *last < year)
}

// GetWallet возвращает кошелёк пользователя; отсутствующий кошелёк возвращается пустым.
func (r *MemoryRepository) GetWallet(_ context.Context, userID int64) (*model.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.state.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	w, ok := r.state.wallets[userID]
	if !ok {
		return &model.Wallet{UserID: userID, Currency: model.DefaultCurrency}, nil
	}
	return &w, nil
}

// ListWalletTransactions возвращает журнал кошелька, новые первыми.
func (r *MemoryRepository) ListWalletTransactions(_ context.Context, userID int64, limit, offset int) ([]model.WalletTransaction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []model.WalletTransaction
	for i := len(r.state.walletTxs) - 1; i >= 0; i-- {
		if r.state.walletTxs[i].UserID == userID {
			all = append(all, r.state.walletTxs[i])
		}
	}
	return page(all, limit, offset), len(all), nil
}

// CreateDepositIntent сохраняет намерение пополнения.
func (r *MemoryRepository) CreateDepositIntent(_ context.Context, intent model.DepositIntent) (*model.DepositIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.state.deposits {
		if d.Reference == intent.Reference {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, intent.Reference)
		}
	}

	intent.ID = r.next("deposits")
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = r.now()
	}
	r.state.deposits[intent.ID] = intent
	return &intent, nil
}

// GetRefund возвращает запрос на возврат.
func (r *MemoryRepository) GetRefund(_ context.Context, refundID int64) (*model.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rf, ok := r.state.refunds[refundID]
	if !ok {
		return nil, ErrRefundNotFound
	}
	return &rf, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

// memoryTx работает с состоянием под блокировкой, взятой в InTx.
type memoryTx struct {
	r *MemoryRepository
}

func (t *memoryTx) GetUser(_ context.Context, userID int64) (*model.User, error) {
	return t.r.getUser(userID)
}

func (t *memoryTx) LockEmployerProfile(_ context.Context, userID int64) (*model.EmployerProfile, error) {
	return t.r.getEmployer(userID)
}

func (t *memoryTx) LockJobseekerProfile(_ context.Context, userID int64) (*model.JobseekerProfile, error) {
	return t.r.getJobseeker(userID)
}

func (t *memoryTx) ApplyCredit(_ context.Context, e model.CreditEntry) (int64, error) {
	return t.writeBalance(e, false)
}

func (t *memoryTx) ConsumeCredit(_ context.Context, userID int64, ct model.CreditType, reason model.Reason, ref *model.Reference) (int64, error) {
	return t.writeBalance(model.CreditEntry{
		UserID:     userID,
		CreditType: ct,
		Amount:     -1,
		Reason:     reason,
		Reference:  ref,
	}, true)
}

// writeBalance повторяет семантику UPDATE ... RETURNING с CHECK (balance >= 0).
func (t *memoryTx) writeBalance(e model.CreditEntry, requirePositive bool) (int64, error) {
	st := &t.r.state

	var current int64
	var set func(int64)

	switch e.CreditType {
	case model.CreditJobPosting, model.CreditAIMatching, model.CreditCandidateSearch:
		p, ok := st.employers[e.UserID]
		if !ok {
			return 0, ErrProfileNotFound
		}
		current, _ = p.Balance(e.CreditType)
		set = func(v int64) {
			switch e.CreditType {
			case model.CreditJobPosting:
				p.JobPostingCredits = v
			case model.CreditAIMatching:
				p.AIMatchingCredits = v
			case model.CreditCandidateSearch:
				p.CandidateSearchCredits = v
			}
			st.employers[e.UserID] = p
		}
	case model.CreditAlert:
		p, ok := st.jobseekers[e.UserID]
		if !ok {
			return 0, ErrProfileNotFound
		}
		current = p.CurrentAlertCredits
		set = func(v int64) {
			p.CurrentAlertCredits = v
			st.jobseekers[e.UserID] = p
		}
	default:
		return 0, fmt.Errorf("unknown credit type %q", e.CreditType)
	}

	if requirePositive && current <= 0 {
		return 0, ErrInsufficientCredits
	}

	balance := current + e.Amount
	if balance < 0 {
		return 0, fmt.Errorf("%w: %s would become %d", ErrNegativeBalance, e.CreditType, balance)
	}
	set(balance)

	row := model.CreditTransaction{
		ID:           t.r.next("credit_transactions"),
		UserID:       e.UserID,
		CreditType:   e.CreditType,
		Amount:       e.Amount,
		BalanceAfter: balance,
		Reason:       e.Reason,
		CreatedAt:    t.r.now(),
	}
	if e.Reference != nil {
		row.ReferenceType = e.Reference.Type
		id := e.Reference.ID
		row.ReferenceID = &id
	}
	st.creditTxs = append(st.creditTxs, row)

	return balance, nil
}

func (t *memoryTx) SetTrialFlags(_ context.Context, role model.Role, userID int64, flags model.TrialFlags) error {
	st := &t.r.state
	switch role {
	case model.RoleEmployer:
		p, ok := st.employers[userID]
		if !ok {
			return ErrProfileNotFound
		}
		p.TrialFlags = flags
		st.employers[userID] = p
	case model.RoleJobseeker:
		p, ok := st.jobseekers[userID]
		if !ok {
			return ErrProfileNotFound
		}
		p.TrialFlags = flags
		st.jobseekers[userID] = p
	default:
		return ErrProfileNotFound
	}
	return nil
}

func (t *memoryTx) SetFeatureTier(_ context.Context, userID int64, tier model.FeatureTier) error {
	p, ok := t.r.state.employers[userID]
	if !ok {
		return ErrProfileNotFound
	}
	p.FeatureTier = tier
	t.r.state.employers[userID] = p
	return nil
}

func (t *memoryTx) SetJobseekerPackage(_ context.Context, userID int64, packageID *int64, autoApply bool) error {
	p, ok := t.r.state.jobseekers[userID]
	if !ok {
		return ErrProfileNotFound
	}
	p.ActivePackageID = packageID
	p.AutoApplyEnabled = autoApply
	t.r.state.jobseekers[userID] = p
	return nil
}

func (t *memoryTx) MarkAnnualReset(_ context.Context, role model.Role, userID int64, year int) error {
	st := &t.r.state
	y := year
	switch role {
	case model.RoleEmployer:
		p, ok := st.employers[userID]
		if !ok {
			return ErrProfileNotFound
		}
		p.LastAnnualCreditResetYear = &y
		st.employers[userID] = p
	case model.RoleJobseeker:
		p, ok := st.jobseekers[userID]
		if !ok {
			return ErrProfileNotFound
		}
		p.LastAnnualCreditResetYear = &y
		st.jobseekers[userID] = p
	default:
		return ErrProfileNotFound
	}
	return nil
}

func (t *memoryTx) GetPackage(_ context.Context, packageID int64) (*model.Package, error) {
	return t.r.getPackage(packageID)
}

func (t *memoryTx) LockOrder(_ context.Context, orderID int64) (*model.Order, error) {
	return t.r.getOrder(orderID)
}

func (t *memoryTx) TransitionOrder(_ context.Context, tr OrderTransition) error {
	o, ok := t.r.state.orders[tr.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != tr.From {
		return fmt.Errorf("%w: order %d is %s, expected %s", ErrStatusConflict, o.ID, o.Status, tr.From)
	}

	at := tr.At
	o.Status = tr.To
	switch tr.To {
	case model.OrderStatusApproved:
		admin := tr.AdminID
		o.ApprovedBy = &admin
		o.ApprovedAt = &at
	case model.OrderStatusCompleted:
		o.CompletedAt = &at
	case model.OrderStatusRejected:
		o.RejectedAt = &at
		o.Notes = tr.Notes
	}
	t.r.state.orders[o.ID] = o
	return nil
}

func (t *memoryTx) CountActiveJobs(_ context.Context, employerID int64) (int, error) {
	return t.r.countActiveJobs(employerID), nil
}

func (t *memoryTx) CreateJob(_ context.Context, job model.Job) (*model.Job, error) {
	job.ID = t.r.next("jobs")
	if job.CreatedAt.IsZero() {
		job.CreatedAt = t.r.now()
	}
	t.r.state.jobs[job.ID] = job
	return &job, nil
}

func (t *memoryTx) LockJob(_ context.Context, jobID int64) (*model.Job, error) {
	j, ok := t.r.state.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

func (t *memoryTx) CloseJob(_ context.Context, jobID int64) error {
	j, ok := t.r.state.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = model.JobStatusClosed
	t.r.state.jobs[jobID] = j
	return nil
}

func (t *memoryTx) LockWallet(_ context.Context, userID int64, currency string) (*model.Wallet, error) {
	if _, ok := t.r.state.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	w, ok := t.r.state.wallets[userID]
	if !ok {
		w = model.Wallet{UserID: userID, Currency: currency, UpdatedAt: t.r.now()}
		t.r.state.wallets[userID] = w
	}
	return &w, nil
}

func (t *memoryTx) ApplyWallet(_ context.Context, e model.WalletEntry) (*model.WalletTransaction, error) {
	w, ok := t.r.state.wallets[e.UserID]
	if !ok {
		return nil, fmt.Errorf("wallet of user %d is not locked", e.UserID)
	}

	balance := w.BalanceToea + e.BalanceDelta
	reserved := w.ReservedToea + e.ReservedDelta
	if balance < 0 || reserved < 0 || reserved > balance {
		return nil, fmt.Errorf("%w: wallet %d balance=%d reserved=%d", ErrNegativeBalance, e.UserID, balance, reserved)
	}

	now := t.r.now()
	w.BalanceToea = balance
	w.ReservedToea = reserved
	w.UpdatedAt = now
	t.r.state.wallets[e.UserID] = w

	row := model.WalletTransaction{
		ID:            t.r.next("wallet_transactions"),
		UserID:        e.UserID,
		Type:          e.Type,
		BalanceDelta:  e.BalanceDelta,
		ReservedDelta: e.ReservedDelta,
		BalanceAfter:  balance,
		ReservedAfter: reserved,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		Description:   e.Description,
		CreatedAt:     now,
	}
	t.r.state.walletTxs = append(t.r.state.walletTxs, row)
	return &row, nil
}

func (t *memoryTx) GetWalletTransaction(_ context.Context, txID int64) (*model.WalletTransaction, error) {
	for _, wt := range t.r.state.walletTxs {
		if wt.ID == txID {
			return &wt, nil
		}
	}
	return nil, ErrWalletTransactionNotFound
}

func (t *memoryTx) LockDepositIntent(_ context.Context, intentID int64) (*model.DepositIntent, error) {
	d, ok := t.r.state.deposits[intentID]
	if !ok {
		return nil, ErrDepositNotFound
	}
	return &d, nil
}

func (t *memoryTx) LockDepositIntentByReference(_ context.Context, reference string) (*model.DepositIntent, error) {
	for _, d := range t.r.state.deposits {
		if d.Reference == reference {
			return &d, nil
		}
	}
	return nil, ErrDepositNotFound
}

func (t *memoryTx) SettleDepositIntent(_ context.Context, intent *model.DepositIntent) error {
	d, ok := t.r.state.deposits[intent.ID]
	if !ok {
		return ErrDepositNotFound
	}
	if d.Status != model.DepositPending {
		return fmt.Errorf("%w: deposit %d is %s", ErrStatusConflict, d.ID, d.Status)
	}
	t.r.state.deposits[intent.ID] = *intent
	return nil
}

func (t *memoryTx) CreateHold(_ context.Context, hold model.WalletHold) error {
	if _, ok := t.r.state.holds[hold.ID]; ok {
		return fmt.Errorf("%w: hold %s", ErrDuplicateReference, hold.ID)
	}
	t.r.state.holds[hold.ID] = hold
	return nil
}

func (t *memoryTx) LockHold(_ context.Context, holdID string) (*model.WalletHold, error) {
	h, ok := t.r.state.holds[holdID]
	if !ok {
		return nil, ErrHoldNotFound
	}
	return &h, nil
}

func (t *memoryTx) SettleHold(_ context.Context, holdID string, status model.HoldStatus, at time.Time) error {
	h, ok := t.r.state.holds[holdID]
	if !ok {
		return ErrHoldNotFound
	}
	if h.Status != model.HoldActive {
		return fmt.Errorf("%w: hold %s is %s", ErrStatusConflict, h.ID, h.Status)
	}
	h.Status = status
	h.SettledAt = &at
	t.r.state.holds[holdID] = h
	return nil
}

func (t *memoryTx) CreateRefund(_ context.Context, refund model.Refund) (*model.Refund, error) {
	refund.ID = t.r.next("refunds")
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = t.r.now()
	}
	t.r.state.refunds[refund.ID] = refund
	return &refund, nil
}

func (t *memoryTx) LockRefund(_ context.Context, refundID int64) (*model.Refund, error) {
	rf, ok := t.r.state.refunds[refundID]
	if !ok {
		return nil, ErrRefundNotFound
	}
	return &rf, nil
}

func (t *memoryTx) SumOpenRefunds(_ context.Context, txID int64) (int64, error) {
	var sum int64
	for _, rf := range t.r.state.refunds {
		if rf.TransactionID == txID && rf.Status != model.RefundRejected {
			sum += rf.AmountToea
		}
	}
	return sum, nil
}

func (t *memoryTx) ReviewRefund(_ context.Context, refundID int64, status model.RefundStatus, reviewer int64, notes string, at time.Time) error {
	rf, ok := t.r.state.refunds[refundID]
	if !ok {
		return ErrRefundNotFound
	}
	if rf.Status != model.RefundPending {
		return fmt.Errorf("%w: refund %d is %s", ErrStatusConflict, rf.ID, rf.Status)
	}
	rf.Status = status
	rf.ReviewedBy = &reviewer
	rf.Notes = notes
	rf.ReviewedAt = &at
	t.r.state.refunds[refundID] = rf
	return nil
}
