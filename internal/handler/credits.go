package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

// CreditStatus возвращает балансы, уровень и пробный период текущего пользователя.
func (h *Handler) CreditStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	st, err := h.service.GetCreditStatus(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "get credit status error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CreditTransactions возвращает страницу журнала кредитов.
func (h *Handler) CreditTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListCreditTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.handleError(w, err, "list credit transactions error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Packages возвращает пакеты, доступные роли пользователя.
func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	pkgs, err := h.service.ListPackages(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "list packages error", zap.Int64("userID", userID))
		return
	}
	if pkgs == nil {
		pkgs = []model.Package{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

// CanPostJob сообщает, может ли работодатель опубликовать вакансию.
func (h *Handler) CanPostJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	d, err := h.service.CanPostJob(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "can post job error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CheckCredit сообщает, доступна ли функция, оплачиваемая кредитами указанного вида.
func (h *Handler) CheckCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	res, err := h.service.CheckCredit(r.Context(), userID, model.CreditType(chi.URLParam(r, "type")))
	if err != nil {
		h.handleError(w, err, "check credit error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// consumeRequest не принимает ссылку на сущность: ссылки в журнал пишет только сервис.
type consumeRequest struct {
	CreditType model.CreditType `json:"credit_type"`
}

// Consume списывает один кредит у текущего пользователя.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req consumeRequest
	if err := decodeJSON(r, &req); err != nil || req.CreditType == "" {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	res, err := h.service.ConsumeCredit(r.Context(), userID, req.CreditType, nil)
	if err != nil {
		h.handleError(w, err, "consume credit error", zap.Int64("userID", userID), zap.String("creditType", string(req.CreditType)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ActivateTrial однократно активирует стандартный пробный период.
func (h *Handler) ActivateTrial(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	res, err := h.service.ActivateStandardTrial(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "activate trial error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

// GrantTrial включает пользователю бессрочный премиум.
func (h *Handler) GrantTrial(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.GrantPremiumIndefiniteTrial(r.Context(), req.UserID, h.adminIdentity(r, adminID)); err != nil {
		h.handleError(w, err, "grant premium trial error", zap.Int64("userID", req.UserID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user_id": req.UserID})
}

// RevokeTrial снимает бессрочный премиум.
func (h *Handler) RevokeTrial(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.RevokePremiumIndefiniteTrial(r.Context(), req.UserID); err != nil {
		h.handleError(w, err, "revoke premium trial error", zap.Int64("userID", req.UserID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user_id": req.UserID})
}

// adminIdentity возвращает email администратора, а если он недоступен, его идентификатор.
func (h *Handler) adminIdentity(r *http.Request, adminID int64) string {
	u, err := h.service.GetUser(r.Context(), adminID)
	if err != nil || u.Email == "" {
		return "admin:" + strconv.FormatInt(adminID, 10)
	}
	return u.Email
}

type grantCreditsRequest struct {
	UserID     int64            `json:"user_id"`
	CreditType model.CreditType `json:"credit_type"`
	Amount     int64            `json:"amount"`
	Reason     model.Reason     `json:"reason,omitempty"`
}

type grantCreditsResponse struct {
	Success    bool             `json:"success"`
	UserID     int64            `json:"user_id"`
	CreditType model.CreditType `json:"credit_type"`
	Balance    int64            `json:"balance"`
}

// GrantCredits начисляет кредиты вручную.
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req grantCreditsRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 || req.CreditType == "" {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	balance, err := h.service.GrantCredits(r.Context(), req.UserID, req.CreditType, req.Amount, req.Reason)
	if err != nil {
		h.handleError(w, err, "grant credits error", zap.Int64("userID", req.UserID), zap.Int64("adminID", adminID))
		return
	}
	writeJSON(w, http.StatusOK, grantCreditsResponse{
		Success:    true,
		UserID:     req.UserID,
		CreditType: req.CreditType,
		Balance:    balance,
	})
}

// ResetAnnual запускает ежегодный сброс кредитов.
func (h *Handler) ResetAnnual(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ResetAnnualCredits(r.Context())
	if err != nil {
		h.handleError(w, err, "annual reset error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
