package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/common/middleware"
	"github.com/pharmaguard/pipeline/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/submissions/clinician", h.submitAs(SourceClinician)).Methods(http.MethodPost)
	router.HandleFunc("/submissions/institution", h.submitAs(SourceInstitution)).Methods(http.MethodPost)
	router.HandleFunc("/submissions/dispensary", h.submitAs(SourceDispensary)).Methods(http.MethodPost)
	router.HandleFunc("/submissions/direct", h.submitAs(SourceDirectReport)).Methods(http.MethodPost)
	router.HandleFunc("/submissions", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/submissions/{id}", h.handleGet).Methods(http.MethodGet)
}

// submitAs binds a route to a fixed source; the generic endpoint reads it
// from the body instead.
func (h *HTTPHandler) submitAs(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.process(w, r, source)
	}
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, "")
}

func (h *HTTPHandler) process(w http.ResponseWriter, r *http.Request, source Source) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid submission payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if source == "" {
		source = Source(req.Source)
	}

	resp, err := h.service.Process(r.Context(), Submission{
		Source:      source,
		SubmitterID: middleware.ActorFrom(r.Context()),
		RequestID:   middleware.RequestIDFrom(r.Context()),
		Request:     req,
	})
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to process submission")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.IsDuplicate {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	event, err := h.service.GetEvent(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch submission")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}
