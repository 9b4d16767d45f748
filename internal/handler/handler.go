// Package handler содержит HTTP-обработчики API биллинга WantokJobs.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/middleware"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)

	GetCreditStatus(ctx context.Context, userID int64) (*service.CreditStatus, error)
	ListCreditTransactions(ctx context.Context, userID int64, limit, offset int) (*service.TransactionPage, error)
	ListPackages(ctx context.Context, userID int64) ([]model.Package, error)
	CanPostJob(ctx context.Context, employerID int64) (service.PostingDecision, error)
	CheckCredit(ctx context.Context, userID int64, ct model.CreditType) (*service.CreditCheck, error)
	ConsumeCredit(ctx context.Context, userID int64, ct model.CreditType, ref *model.Reference) (*service.ConsumeResult, error)

	ActivateStandardTrial(ctx context.Context, userID int64) (*service.TrialActivation, error)
	GrantPremiumIndefiniteTrial(ctx context.Context, userID int64, adminIdentity string) error
	RevokePremiumIndefiniteTrial(ctx context.Context, userID int64) error
	GrantCredits(ctx context.Context, userID int64, ct model.CreditType, amount int64, reason model.Reason) (int64, error)
	ResetAnnualCredits(ctx context.Context) (*service.ResetResult, error)

	CreateOrder(ctx context.Context, userID, packageID int64) (*model.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	ApproveOrder(ctx context.Context, orderID, adminID int64) (*service.ApprovalResult, error)
	RejectOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error)

	CreateJob(ctx context.Context, employerID int64, title string) (*service.JobPosting, error)
	ListJobs(ctx context.Context, employerID int64) ([]model.Job, error)
	CloseJob(ctx context.Context, employerID, jobID int64) (*model.Job, error)

	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	ListWalletTransactions(ctx context.Context, userID int64, limit, offset int) (*service.WalletPage, error)
	CreateDepositIntent(ctx context.Context, userID, amountToea int64) (*model.DepositIntent, error)
	MatchDeposit(ctx context.Context, intentID, adminID int64, bankRef string, amountToea int64) (*service.DepositMatch, error)
	RejectDeposit(ctx context.Context, intentID, adminID int64) (*model.DepositIntent, error)
	CreateHold(ctx context.Context, userID, amountToea int64, description string) (*model.WalletHold, error)
	CaptureHold(ctx context.Context, userID int64, holdID string) (*model.WalletTransaction, error)
	ReleaseHold(ctx context.Context, userID int64, holdID string) (*model.WalletTransaction, error)
	RequestRefund(ctx context.Context, userID, transactionID, amountToea int64, reason string) (*model.Refund, error)
	ApproveRefund(ctx context.Context, refundID, adminID int64, notes string) (*model.Refund, error)
	RejectRefund(ctx context.Context, refundID, adminID int64, notes string) (*model.Refund, error)
}

// Handler реализует HTTP-обработчики API биллинга.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: status})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor сопоставляет ошибку бизнес-логики HTTP-статусу. Ноль означает внутреннюю ошибку.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInsufficientCredits),
		errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrPackageNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, repository.ErrDepositNotFound),
		errors.Is(err, repository.ErrHoldNotFound),
		errors.Is(err, repository.ErrRefundNotFound),
		errors.Is(err, repository.ErrWalletTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCreditType),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrTrialAlreadyUsed),
		errors.Is(err, service.ErrOrderAlreadyCompleted),
		errors.Is(err, service.ErrOrderAlreadyRejected),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrPackageUnavailable),
		errors.Is(err, service.ErrInvalidReference),
		errors.Is(err, service.ErrJobClosed),
		errors.Is(err, service.ErrJobTitleRequired),
		errors.Is(err, service.ErrRefundExceedsAmount),
		errors.Is(err, service.ErrNotRefundable),
		errors.Is(err, service.ErrAlreadySettled),
		errors.Is(err, model.ErrFractionalToea),
		errors.Is(err, model.ErrAmountOutOfRange):
		return http.StatusBadRequest
	}
	return 0
}

// handleError пишет ответ для ошибки сервиса; неизвестные ошибки логируются и отдаются как 500.
func (h *Handler) handleError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	status := statusFor(err)
	if status == http.StatusPaymentRequired {
		writeJSON(w, status, errorResponse{Error: err.Error(), Code: service.InsufficientCreditsCode})
		return
	}
	if status != 0 {
		writeError(w, status, err.Error())
		return
	}

	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return 0, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, 0, false
	}
	offset, err := queryInt(r, "offset")
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}

// Health отвечает на проверку живости.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
