package patient

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/patients", h.ListPatients)
	r.Post("/patients", h.CreatePatient)
	r.Get("/patients/search", h.SearchPatients)
	r.Get("/patients/{id}", h.GetPatient)
	r.Put("/patients/{id}", h.UpdatePatient)
	r.Delete("/patients/{id}", h.DeletePatient)
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	h.logger.InfoContext(r.Context(), "creating patient", "last_name", req.LastName)
	patient, err := h.service.CreatePatient(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordPatientRegistration(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, patient)
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	patients, total, err := h.service.ListPatients(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, pagination.NewResponse(patients, total, params))
}

func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query().Get("q")

	h.logger.InfoContext(r.Context(), "searching patients", "page", params.Page)
	patients, total, err := h.service.SearchPatients(r.Context(), q, params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordPatientSearch(r.Context(), total)

	httputil.RespondWithJSON(w, http.StatusOK, pagination.NewResponse(patients, total, params))
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	patient, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, patient)
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	h.logger.InfoContext(r.Context(), "updating patient", "patient_id", id)
	patient, err := h.service.UpdatePatient(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, patient)
}

func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting patient", "patient_id", id)
	if err := h.service.DeletePatient(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrIDNumberExists), errors.Is(err, ErrEmailExists):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathID parses a positive integer route parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}
	return id, nil
}
