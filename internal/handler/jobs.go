package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

type createJobRequest struct {
	Title string `json:"title"`
}

// CreateJob публикует вакансию, списывая кредит, если это требуется.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	posted, err := h.service.CreateJob(r.Context(), userID, req.Title)
	if err != nil {
		h.handleError(w, err, "create job error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

// GetJobs возвращает вакансии текущего работодателя.
func (h *Handler) GetJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "list jobs error", zap.Int64("userID", userID))
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// CloseJob закрывает вакансию.
func (h *Handler) CloseJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := h.service.CloseJob(r.Context(), userID, jobID)
	if err != nil {
		h.handleError(w, err, "close job error", zap.Int64("userID", userID), zap.Int64("jobID", jobID))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
