package doctor

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/doctors/me", h.GetMe)
	r.Put("/doctors/me", h.UpdateMe)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := session.DoctorID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doctor, err := h.service.GetDoctor(r.Context(), doctorID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, doctor)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := session.DoctorID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	h.logger.InfoContext(r.Context(), "updating doctor profile", "doctor_id", doctorID)
	doctor, err := h.service.UpdateProfile(r.Context(), doctorID, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, doctor)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Doctor not found")
	case errors.Is(err, ErrEmailExists), errors.Is(err, ErrRegistrationNumberExists):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
