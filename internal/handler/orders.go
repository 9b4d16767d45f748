package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
	"github.com/nwakan/wantok-jobs-sub002/internal/service"
)

type orderResponse struct {
	ID            int64   `json:"id"`
	PackageID     *int64  `json:"package_id,omitempty"`
	InvoiceNumber string  `json:"invoice_number"`
	Status        string  `json:"status"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	RejectedAt    *string `json:"rejected_at,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func formatKina(toea int64) string {
	return model.KinaFromToea(toea).StringFixed(2)
}

func newOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		PackageID:     o.PackageID,
		InvoiceNumber: o.InvoiceNumber,
		Status:        string(o.Status),
		Amount:        formatKina(o.AmountToea),
		Currency:      o.Currency,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		CompletedAt:   formatTime(o.CompletedAt),
		RejectedAt:    formatTime(o.RejectedAt),
	}
}

func newOrdersResponse(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	return resp
}

type createOrderRequest struct {
	PackageID int64 `json:"package_id"`
}

// CreateOrder создаёт заказ на покупку пакета.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil || req.PackageID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.PackageID)
	if err != nil {
		h.handleError(w, err, "create order error", zap.Int64("userID", userID), zap.Int64("packageID", req.PackageID))
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(*order))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "get orders error", zap.Int64("userID", userID))
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, newOrdersResponse(orders))
}

// AdminOrders возвращает заказы в статусе из параметра status; по умолчанию pending.
func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.OrderStatusPending
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	orders, err := h.service.ListOrdersByStatus(r.Context(), status, limit)
	if err != nil {
		h.handleError(w, err, "list orders by status error", zap.String("status", string(status)))
		return
	}
	writeJSON(w, http.StatusOK, newOrdersResponse(orders))
}

type approvalResponse struct {
	Success bool                `json:"success"`
	OrderID int64               `json:"order_id"`
	Order   orderResponse       `json:"order"`
	Credits []model.CreditGrant `json:"credits"`
}

// ApproveOrder подтверждает заказ и выдаёт кредиты пакета.
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.service.ApproveOrder(r.Context(), orderID, adminID)
	if err != nil {
		h.handleError(w, err, "approve order error", zap.Int64("orderID", orderID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, newApprovalResponse(res))
}

func newApprovalResponse(res *service.ApprovalResult) approvalResponse {
	resp := approvalResponse{Success: res.Success, OrderID: res.OrderID, Credits: res.Credits}
	if res.Order != nil {
		resp.Order = newOrderResponse(*res.Order)
	}
	return resp
}

type rejectOrderRequest struct {
	Reason string `json:"reason"`
}

// RejectOrder отклоняет заказ. Тело запроса необязательно.
func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req rejectOrderRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
			return
		}
	}

	order, err := h.service.RejectOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		h.handleError(w, err, "reject order error", zap.Int64("orderID", orderID))
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}
