// Package service реализует бизнес-логику биллинга WantokJobs: журнал кредитов,
// пробные периоды, проверку прав, списание, выполнение заказов, ежегодный сброс и кошелёк.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Все изменения балансов выполняются только через repository.Tx внутри InTx.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn repository.TxFunc) error

	CreateUser(ctx context.Context, email string, role model.Role) (*model.User, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	GetEmployerProfile(ctx context.Context, userID int64) (*model.EmployerProfile, error)
	GetJobseekerProfile(ctx context.Context, userID int64) (*model.JobseekerProfile, error)

	CountActiveJobs(ctx context.Context, employerID int64) (int, error)
	ListJobs(ctx context.Context, employerID int64) ([]model.Job, error)
	ListCreditTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.CreditTransaction, int, error)

	ListPackages(ctx context.Context, role model.Role, activeOnly bool) ([]model.Package, error)
	GetPackage(ctx context.Context, packageID int64) (*model.Package, error)
	GetTrialPackage(ctx context.Context, role model.Role) (*model.Package, error)

	CreateOrder(ctx context.Context, order model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)

	ListResetCandidates(ctx context.Context, role model.Role, year int) ([]int64, error)

	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	ListWalletTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.WalletTransaction, int, error)
	CreateDepositIntent(ctx context.Context, intent model.DepositIntent) (*model.DepositIntent, error)
	GetRefund(ctx context.Context, refundID int64) (*model.Refund, error)
}

const defaultTrialDays = 14

// Service содержит бизнес-логику биллинга.
type Service struct {
	repo      Repository
	logger    *zap.Logger
	now       func() time.Time
	trialDays int
	currency  string
	feed      TransferFeed

	feedCursor feedState
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultTrialDays задаёт длительность пробного периода, если пробный пакет не настроен.
func WithDefaultTrialDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.trialDays = days
		}
	}
}

// WithCurrency задаёт валюту заказов и кошельков.
func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// WithTransferFeed подключает ленту банковских переводов для сверки пополнений.
func WithTransferFeed(feed TransferFeed) Option {
	return func(s *Service) { s.feed = feed }
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		trialDays: defaultTrialDays,
		currency:  model.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser создаёт пользователя и профиль его роли.
func (s *Service) RegisterUser(ctx context.Context, email string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.CreateUser(ctx, email, role)
}

// GetUser возвращает пользователя.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUser(ctx, userID)
}
