package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service   *Service
	cookies   CookiePolicy
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(service *Service, cookies CookiePolicy, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		cookies:   cookies,
		logger:    logger,
		validator: validator.New(),
	}
}

// RegisterRoutes mounts the public auth endpoints
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/reset-password/request", h.RequestPasswordReset)
	r.Post("/auth/reset-password", h.ResetPassword)
}

// RegisterProtectedRoutes mounts endpoints that need an authenticated doctor
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/auth/logout-all", h.LogoutAll)
}

// Register creates a new doctor account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, "registration failed", err)
		return
	}

	h.logger.InfoContext(r.Context(), "doctor registered", "doctor_id", resp.Doctor.ID)

	h.cookies.SetAuthCookie(w, resp.AccessToken, h.service.tokens.AccessTTL())
	httputil.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, "login failed", err)
		return
	}

	h.logger.InfoContext(r.Context(), "doctor logged in", "doctor_id", resp.Doctor.ID)

	h.cookies.SetAuthCookie(w, resp.AccessToken, h.service.tokens.AccessTTL())
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleServiceError(w, r, "token refresh failed", err)
		return
	}

	h.cookies.SetAuthCookie(w, resp.AccessToken, h.service.tokens.AccessTTL())
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.handleServiceError(w, r, "logout failed", err)
		return
	}

	h.cookies.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := session.DoctorID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.LogoutAll(r.Context(), doctorID); err != nil {
		h.handleServiceError(w, r, "logout all failed", err)
		return
	}

	h.cookies.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset always answers 202 so callers cannot probe for registered emails
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.logger.ErrorContext(r.Context(), "password reset request failed", "error", err)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.handleServiceError(w, r, "password reset failed", err)
		return
	}

	h.cookies.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validator.Struct(v); err != nil {
		h.logger.WarnContext(r.Context(), "validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, doctor.ErrEmailExists), errors.Is(err, doctor.ErrRegistrationNumberExists):
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidRefreshToken):
		httputil.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidResetToken):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
