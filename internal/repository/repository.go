// Package repository содержит хранилища биллинга: PostgreSQL и in-memory.
package repository

import (
	"context"
	"time"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

// Tx описывает операции, выполняемые внутри одной атомарной единицы работы.
// Методы Lock* блокируют строку до конца транзакции.
type Tx interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	LockEmployerProfile(ctx context.Context, userID int64) (*model.EmployerProfile, error)
	LockJobseekerProfile(ctx context.Context, userID int64) (*model.JobseekerProfile, error)

	// ApplyCredit единственный путь записи балансов кредитов: прибавляет entry.Amount
	// к балансу и добавляет строку журнала с итоговым балансом.
	ApplyCredit(ctx context.Context, entry model.CreditEntry) (int64, error)
	// ConsumeCredit списывает один кредит, только если баланс положителен.
	ConsumeCredit(ctx context.Context, userID int64, ct model.CreditType, reason model.Reason, ref *model.Reference) (int64, error)

	SetTrialFlags(ctx context.Context, role model.Role, userID int64, flags model.TrialFlags) error
	SetFeatureTier(ctx context.Context, userID int64, tier model.FeatureTier) error
	SetJobseekerPackage(ctx context.Context, userID int64, packageID *int64, autoApply bool) error
	MarkAnnualReset(ctx context.Context, role model.Role, userID int64, year int) error

	GetPackage(ctx context.Context, packageID int64) (*model.Package, error)
	LockOrder(ctx context.Context, orderID int64) (*model.Order, error)
	TransitionOrder(ctx context.Context, t OrderTransition) error

	CountActiveJobs(ctx context.Context, employerID int64) (int, error)
	CreateJob(ctx context.Context, job model.Job) (*model.Job, error)
	LockJob(ctx context.Context, jobID int64) (*model.Job, error)
	CloseJob(ctx context.Context, jobID int64) error

	LockWallet(ctx context.Context, userID int64, currency string) (*model.Wallet, error)
	ApplyWallet(ctx context.Context, entry model.WalletEntry) (*model.WalletTransaction, error)
	GetWalletTransaction(ctx context.Context, txID int64) (*model.WalletTransaction, error)

	LockDepositIntent(ctx context.Context, intentID int64) (*model.DepositIntent, error)
	LockDepositIntentByReference(ctx context.Context, reference string) (*model.DepositIntent, error)
	SettleDepositIntent(ctx context.Context, intent *model.DepositIntent) error

	CreateHold(ctx context.Context, hold model.WalletHold) error
	LockHold(ctx context.Context, holdID string) (*model.WalletHold, error)
	SettleHold(ctx context.Context, holdID string, status model.HoldStatus, at time.Time) error

	CreateRefund(ctx context.Context, refund model.Refund) (*model.Refund, error)
	LockRefund(ctx context.Context, refundID int64) (*model.Refund, error)
	SumOpenRefunds(ctx context.Context, txID int64) (int64, error)
	ReviewRefund(ctx context.Context, refundID int64, status model.RefundStatus, reviewer int64, notes string, at time.Time) error
}

// OrderTransition описывает условный переход статуса заказа.
type OrderTransition struct {
	OrderID int64
	From    model.OrderStatus
	To      model.OrderStatus
	AdminID int64
	Notes   string
	At      time.Time
}

// TxFunc выполняется внутри транзакции.
type TxFunc func(ctx context.Context, tx Tx) error
