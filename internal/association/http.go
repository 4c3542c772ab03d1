package association

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Flopsa/digital-doc/common/httputil"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/patient"
	"github.com/Flopsa/digital-doc/internal/session"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	manager Manager
	logger  *slog.Logger
}

func NewHandler(manager Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/doctors/me/patients", h.ListMyPatients)
	r.Get("/doctors/me/patients/{patientID}", h.GetLink)
	r.Put("/doctors/me/patients/{patientID}", h.AddPatient)
	r.Delete("/doctors/me/patients/{patientID}", h.RemovePatient)
	r.Get("/patients/{id}/doctors", h.ListDoctorsOfPatient)
}

func (h *Handler) ListMyPatients(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := session.DoctorID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	params := pagination.FromRequest(r)

	patients, total, err := h.manager.PatientsOf(r.Context(), doctorID, params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, pagination.NewResponse(patients, total, params))
}

func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	doctorID, patientID, ok := h.pair(w, r)
	if !ok {
		return
	}

	linked, err := h.manager.HasPatient(r.Context(), doctorID, patientID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, Link{DoctorID: doctorID, PatientID: patientID, Linked: linked})
}

func (h *Handler) AddPatient(w http.ResponseWriter, r *http.Request) {
	doctorID, patientID, ok := h.pair(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "linking patient", "doctor_id", doctorID, "patient_id", patientID)
	if err := h.manager.AddPatient(r.Context(), doctorID, patientID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, Link{DoctorID: doctorID, PatientID: patientID, Linked: true})
}

func (h *Handler) RemovePatient(w http.ResponseWriter, r *http.Request) {
	doctorID, patientID, ok := h.pair(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "unlinking patient", "doctor_id", doctorID, "patient_id", patientID)
	if err := h.manager.RemovePatient(r.Context(), doctorID, patientID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListDoctorsOfPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := patient.PathID(r, "id")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}
	params := pagination.FromRequest(r)

	doctors, total, err := h.manager.DoctorsOf(r.Context(), patientID, params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, pagination.NewResponse(doctors, total, params))
}

func (h *Handler) pair(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	doctorID, ok := session.DoctorID(r.Context())
	if !ok {
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}

	patientID, err := patient.PathID(r, "patientID")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid patient ID")
		return 0, 0, false
	}
	return doctorID, patientID, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, doctor.ErrDoctorNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Doctor not found")
	case errors.Is(err, patient.ErrPatientNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "Patient not found")
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
