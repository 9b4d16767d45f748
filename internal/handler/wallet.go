package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/service"
)

// Суммы в API передаются в кинах с двумя знаками, в хранилище лежат целые тоа.

func parseKina(v decimal.Decimal) (int64, error) {
	if v.IsNegative() {
		return 0, service.ErrInvalidAmount
	}
	return model.ToeaFromKina(v)
}

type walletResponse struct {
	Balance   string `json:"balance"`
	Reserved  string `json:"reserved_balance"`
	Available string `json:"available_balance"`
	Currency  string `json:"currency"`
}

type walletTransactionResponse struct {
	ID            int64  `json:"id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	ReservedDelta string `json:"reserved_delta"`
	BalanceAfter  string `json:"balance_after"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func newWalletTransactionResponse(wt *model.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:            wt.ID,
		Type:          string(wt.Type),
		Amount:        formatKina(wt.BalanceDelta),
		ReservedDelta: formatKina(wt.ReservedDelta),
		BalanceAfter:  formatKina(wt.BalanceAfter),
		ReferenceType: wt.ReferenceType,
		ReferenceID:   wt.ReferenceID,
		Description:   wt.Description,
		CreatedAt:     wt.CreatedAt.Format(time.RFC3339),
	}
}

// GetWallet возвращает кошелёк текущего пользователя.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "get wallet error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Balance:   formatKina(wallet.BalanceToea),
		Reserved:  formatKina(wallet.ReservedToea),
		Available: formatKina(wallet.AvailableToea()),
		Currency:  wallet.Currency,
	})
}

type walletPageResponse struct {
	Transactions []walletTransactionResponse `json:"transactions"`
	Total        int                         `json:"total"`
	Limit        int                         `json:"limit"`
	Offset       int                         `json:"offset"`
}

// WalletTransactions возвращает страницу журнала кошелька.
func (h *Handler) WalletTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListWalletTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.handleError(w, err, "list wallet transactions error", zap.Int64("userID", userID))
		return
	}

	resp := walletPageResponse{
		Transactions: make([]walletTransactionResponse, 0, len(page.Transactions)),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for i := range page.Transactions {
		resp.Transactions = append(resp.Transactions, newWalletTransactionResponse(&page.Transactions[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type depositResponse struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

func newDepositResponse(d *model.DepositIntent) depositResponse {
	return depositResponse{
		ID:        d.ID,
		Reference: d.Reference,
		Amount:    formatKina(d.AmountToea),
		Currency:  d.Currency,
		Status:    string(d.Status),
	}
}

// Deposit создаёт намерение пополнения кошелька.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	amount, err := parseKina(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := h.service.CreateDepositIntent(r.Context(), userID, amount)
	if err != nil {
		h.handleError(w, err, "create deposit intent error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusCreated, newDepositResponse(intent))
}

type holdResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// CreateHold резервирует сумму кошелька.
func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	amount, err := parseKina(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hold, err := h.service.CreateHold(r.Context(), userID, amount, req.Description)
	if err != nil {
		h.handleError(w, err, "create hold error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusCreated, holdResponse{
		ID:          hold.ID,
		Amount:      formatKina(hold.AmountToea),
		Status:      string(hold.Status),
		Description: hold.Description,
	})
}

// CaptureHold списывает зарезервированную сумму.
func (h *Handler) CaptureHold(w http.ResponseWriter, r *http.Request) {
	h.settleHold(w, r, h.service.CaptureHold, "capture hold error")
}

// ReleaseHold снимает резерв.
func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	h.settleHold(w, r, h.service.ReleaseHold, "release hold error")
}

type holdSettler func(ctx context.Context, userID int64, holdID string) (*model.WalletTransaction, error)

func (h *Handler) settleHold(w http.ResponseWriter, r *http.Request, settle holdSettler, msg string) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	holdID := chi.URLParam(r, "id")

	wt, err := settle(r.Context(), userID, holdID)
	if err != nil {
		h.handleError(w, err, msg, zap.Int64("userID", userID), zap.String("holdID", holdID))
		return
	}
	writeJSON(w, http.StatusOK, newWalletTransactionResponse(wt))
}

type refundRequest struct {
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

type refundResponse struct {
	ID            int64  `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason,omitempty"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
}

func newRefundResponse(rf *model.Refund) refundResponse {
	return refundResponse{
		ID:            rf.ID,
		TransactionID: rf.TransactionID,
		Amount:        formatKina(rf.AmountToea),
		Reason:        rf.Reason,
		Status:        string(rf.Status),
		Notes:         rf.Notes,
	}
}

// RequestRefund создаёт запрос на возврат списания. Пустая сумма означает весь остаток.
func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := decodeJSON(r, &req); err != nil || req.TransactionID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	amount, err := parseKina(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rf, err := h.service.RequestRefund(r.Context(), userID, req.TransactionID, amount, req.Reason)
	if err != nil {
		h.handleError(w, err, "request refund error", zap.Int64("userID", userID), zap.Int64("transactionID", req.TransactionID))
		return
	}
	writeJSON(w, http.StatusCreated, newRefundResponse(rf))
}

type matchDepositRequest struct {
	BankReference string          `json:"bank_reference"`
	Amount        decimal.Decimal `json:"amount"`
}

type matchDepositResponse struct {
	Deposit     depositResponse           `json:"deposit"`
	Matched     string                    `json:"matched_amount"`
	Transaction walletTransactionResponse `json:"transaction"`
}

// MatchDeposit сопоставляет банковский перевод с намерением пополнения.
func (h *Handler) MatchDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	intentID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req matchDepositRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			return
		}
	}
	amount, err := parseKina(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.MatchDeposit(r.Context(), intentID, adminID, req.BankReference, amount)
	if err != nil {
		h.handleError(w, err, "match deposit error", zap.Int64("intentID", intentID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, matchDepositResponse{
		Deposit:     newDepositResponse(res.Intent),
		Matched:     formatKina(res.Intent.MatchedAmountToea),
		Transaction: newWalletTransactionResponse(res.Transaction),
	})
}

// RejectDeposit помечает намерение пополнения истёкшим.
func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	intentID, ok := pathID(w, r)
	if !ok {
		return
	}

	d, err := h.service.RejectDeposit(r.Context(), intentID, adminID)
	if err != nil {
		h.handleError(w, err, "reject deposit error", zap.Int64("intentID", intentID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, newDepositResponse(d))
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

// ApproveRefund одобряет возврат.
func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	h.reviewRefund(w, r, h.service.ApproveRefund, "approve refund error")
}

// RejectRefund отклоняет возврат.
func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	h.reviewRefund(w, r, h.service.RejectRefund, "reject refund error")
}

type refundReviewer func(ctx context.Context, refundID, adminID int64, notes string) (*model.Refund, error)

func (h *Handler) reviewRefund(w http.ResponseWriter, r *http.Request, review refundReviewer, msg string) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	refundID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			return
		}
	}

	rf, err := review(r.Context(), refundID, adminID, req.Notes)
	if err != nil {
		h.handleError(w, err, msg, zap.Int64("refundID", refundID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, newRefundResponse(rf))
}
