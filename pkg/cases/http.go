package cases

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/common/middleware"
	"github.com/pharmaguard/pipeline/pkg/common/models"
	"github.com/pharmaguard/pipeline/pkg/followup"
	"github.com/pharmaguard/pipeline/pkg/intake"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"github.com/pharmaguard/pipeline/pkg/scoring"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/cases", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/cases/{id}", h.handleDetail).Methods(http.MethodGet)
	router.HandleFunc("/cases/{id}/score", h.handleScoreHistory).Methods(http.MethodGet)
	router.HandleFunc("/cases/{id}/score/override", h.handleScoreOverride).Methods(http.MethodPost)
	router.HandleFunc("/cases/{id}/status", h.handleStatusUpdate).Methods(http.MethodPost)
	router.HandleFunc("/cases/{id}/audit", h.handleAuditHistory).Methods(http.MethodGet)
	router.HandleFunc("/followups", h.handleListFollowUps).Methods(http.MethodGet)
	router.HandleFunc("/followups/{id}/assign", h.handleAssignFollowUp).Methods(http.MethodPost)
	router.HandleFunc("/followups/{id}/complete", h.handleCompleteFollowUp).Methods(http.MethodPost)
	router.HandleFunc("/followups/{id}/cancel", h.handleCancelFollowUp).Methods(http.MethodPost)
	router.HandleFunc("/events/{id}/relink", h.handleRelink).Methods(http.MethodPost)
	router.HandleFunc("/events/{id}/normalization/override", h.handleNormalizationOverride).Methods(http.MethodPost)
	router.HandleFunc("/similarity/check", h.handleSimilarityCheck).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.CaseFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Limit:    intParam(q.Get("limit")),
		Offset:   intParam(q.Get("offset")),
	}
	if v := q.Get("min_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinScore = &f
		}
	}
	if v := q.Get("max_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxScore = &f
		}
	}
	if v := q.Get("pending_followup"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.PendingFollow = &b
		}
	}

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list cases")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases":  items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *HTTPHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Detail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to load case")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *HTTPHandler) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.ScoreHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to load score history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"score_history": history})
}

func (h *HTTPHandler) handleScoreOverride(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.service.OverrideScore(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidPolarity) || errors.Is(err, scoring.ErrInvalidStrength) || errors.Is(err, scoring.ErrReasonRequired) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err, "failed to override score")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *HTTPHandler) handleStatusUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.UpdateStatus(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err, "failed to update case status")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleAuditHistory(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"))
	entries, err := h.service.AuditHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		h.writeError(w, err, "failed to load audit history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_log": entries})
}

func (h *HTTPHandler) handleListFollowUps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := followup.ListFilter{
		CaseID:         q.Get("case_id"),
		Status:         followup.Status(q.Get("status")),
		AssignedToType: q.Get("assigned_to_type"),
		Limit:          intParam(q.Get("limit")),
		Offset:         intParam(q.Get("offset")),
	}

	requests, err := h.service.ListFollowUps(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list follow-ups")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"followups": requests})
}

func (h *HTTPHandler) handleAssignFollowUp(w http.ResponseWriter, r *http.Request) {
	var req models.AssignFollowUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.AssignFollowUp(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	h.writeFollowUpResult(w, result, err)
}

func (h *HTTPHandler) handleCompleteFollowUp(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteFollowUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CompleteFollowUp(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	h.writeFollowUpResult(w, result, err)
}

func (h *HTTPHandler) handleCancelFollowUp(w http.ResponseWriter, r *http.Request) {
	var req models.CancelFollowUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CancelFollowUp(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	h.writeFollowUpResult(w, result, err)
}

func (h *HTTPHandler) writeFollowUpResult(w http.ResponseWriter, result *followup.Request, err error) {
	if err != nil {
		switch {
		case errors.Is(err, followup.ErrNotFound):
			http.Error(w, "follow-up request not found", http.StatusNotFound)
		case errors.Is(err, followup.ErrInvalidTransition),
			errors.Is(err, followup.ErrResponseRequired),
			errors.Is(err, followup.ErrReasonRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("follow-up action failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleRelink(w http.ResponseWriter, r *http.Request) {
	var req models.RelinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Relink(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrEventNotFound), errors.Is(err, caselink.ErrCaseNotFound), errors.Is(err, caselink.ErrLogNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, caselink.ErrReasonRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("failed to relink event")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleNormalizationOverride(w http.ResponseWriter, r *http.Request) {
	var req models.NormalizationOverrideRequest
	if !h.decode(w, r, &req) {
		return
	}

	exp, err := h.service.OverrideNormalization(r.Context(), mux.Vars(r)["id"], req, actionFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrEventNotFound), errors.Is(err, normalize.ErrNotFound), errors.Is(err, caselink.ErrCaseNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, scoring.ErrInvalidPolarity), errors.Is(err, scoring.ErrInvalidStrength), errors.Is(err, scoring.ErrReasonRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("failed to override normalization")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (h *HTTPHandler) handleSimilarityCheck(w http.ResponseWriter, r *http.Request) {
	var req models.SimilarityCheckRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.SimilarityCheck(r.Context(), req)
	if err != nil {
		logger.Log.WithError(err).Error("similarity check failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, caselink.ErrCaseNotFound) {
		http.Error(w, "case not found", http.StatusNotFound)
		return
	}
	logger.Log.WithError(err).Error(msg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func actionFrom(r *http.Request) ActionContext {
	return ActionContext{
		Actor:     middleware.ActorFrom(r.Context()),
		RequestID: middleware.RequestIDFrom(r.Context()),
	}
}

func intParam(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
