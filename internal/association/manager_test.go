package association_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	commonmetrics "github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/association"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/metrics"
	"github.com/Flopsa/digital-doc/internal/patient"
	"github.com/Flopsa/digital-doc/internal/session"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
	"github.com/Flopsa/digital-doc/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockMetrics := commonmetrics.NewMock()
	uow := unitofwork.New(pgContainer.DB, logger, mockMetrics)

	doctorRepo := doctor.NewRepository(uow, mockMetrics)
	patientRepo := patient.NewRepository(uow, mockMetrics)
	repo := association.NewRepository(uow, mockMetrics)
	manager := association.NewManager(repo, doctorRepo, patientRepo, metrics.NewMock())

	seed := func(t *testing.T) (*doctor.Doctor, *patient.Patient) {
		t.Helper()
		testdb.CleanupTables(t, pgContainer.DB, "doctors", "patients", "doctors_patients")

		d := &doctor.Doctor{Name: "Lisa Cuddy", Email: "cuddy@ppth.org", RegistrationNumber: "MD-0100"}
		require.NoError(t, d.SetPassword("password123"))
		require.NoError(t, doctorRepo.Create(ctx, d))

		p := &patient.Patient{FirstName: "John", LastName: "Doe", IDNumber: "8001015009087"}
		require.NoError(t, patientRepo.Create(ctx, p))
		return d, p
	}

	linkRows := func(t *testing.T) int {
		t.Helper()
		n, err := pgContainer.DB.NewSelect().Model((*association.DoctorPatient)(nil)).Count(ctx)
		require.NoError(t, err)
		return n
	}

	t.Run("AddPatient_Twice_OneRow", func(t *testing.T) {
		d, p := seed(t)

		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))
		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))

		assert.Equal(t, 1, linkRows(t))

		has, err := manager.HasPatient(ctx, d.ID, p.ID)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("AddDoctor_IsSymmetric", func(t *testing.T) {
		d, p := seed(t)

		require.NoError(t, manager.AddDoctor(ctx, p.ID, d.ID))
		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))

		assert.Equal(t, 1, linkRows(t))

		has, err := manager.HasDoctor(ctx, p.ID, d.ID)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("RemovePatient_NotLinked_NoOp", func(t *testing.T) {
		d, p := seed(t)

		require.NoError(t, manager.RemovePatient(ctx, d.ID, p.ID))
		assert.Equal(t, 0, linkRows(t))

		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))
		require.NoError(t, manager.RemoveDoctor(ctx, p.ID, d.ID))
		require.NoError(t, manager.RemovePatient(ctx, d.ID, p.ID))
		assert.Equal(t, 0, linkRows(t))

		has, err := manager.HasPatient(ctx, d.ID, p.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("UnknownIDs", func(t *testing.T) {
		d, p := seed(t)

		err := manager.AddPatient(ctx, d.ID, p.ID+1000)
		assert.ErrorIs(t, err, patient.ErrPatientNotFound)

		err = manager.AddPatient(ctx, d.ID+1000, p.ID)
		assert.ErrorIs(t, err, doctor.ErrDoctorNotFound)

		_, _, err = manager.DoctorsOf(ctx, p.ID+1000, pagination.New(1, 10))
		assert.ErrorIs(t, err, patient.ErrPatientNotFound)
	})

	t.Run("PatientsOf_DoctorsOf_Paginate", func(t *testing.T) {
		d, p := seed(t)

		second := &doctor.Doctor{Name: "James Wilson", Email: "wilson@ppth.org", RegistrationNumber: "MD-0101"}
		require.NoError(t, second.SetPassword("password123"))
		require.NoError(t, doctorRepo.Create(ctx, second))

		others := []*patient.Patient{
			{FirstName: "Alice", LastName: "Adams"},
			{FirstName: "Bob", LastName: "Brown"},
		}
		for _, o := range others {
			require.NoError(t, patientRepo.Create(ctx, o))
			require.NoError(t, manager.AddPatient(ctx, d.ID, o.ID))
		}
		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))
		require.NoError(t, manager.AddPatient(ctx, second.ID, p.ID))

		patients, total, err := manager.PatientsOf(ctx, d.ID, pagination.New(1, 2))
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, patients, 2)
		assert.Equal(t, "Adams", patients[0].LastName)
		assert.Equal(t, "Brown", patients[1].LastName)

		patients, _, err = manager.PatientsOf(ctx, d.ID, pagination.New(2, 2))
		require.NoError(t, err)
		require.Len(t, patients, 1)
		assert.Equal(t, "Doe", patients[0].LastName)

		doctors, total, err := manager.DoctorsOf(ctx, p.ID, pagination.New(1, 10))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, doctors, 2)
		assert.Equal(t, "James Wilson", doctors[0].Name)
		assert.Equal(t, "Lisa Cuddy", doctors[1].Name)
	})

	t.Run("PatientDelete_CascadesLinks", func(t *testing.T) {
		d, p := seed(t)
		require.NoError(t, manager.AddPatient(ctx, d.ID, p.ID))

		require.NoError(t, patientRepo.Delete(ctx, p.ID))
		assert.Equal(t, 0, linkRows(t))
	})

	t.Run("HTTP", func(t *testing.T) {
		d, p := seed(t)

		handler := association.NewHandler(manager, logger)
		router := chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(session.WithDoctor(r.Context(), d.ID, d.Email)))
			})
		})
		handler.RegisterRoutes(router)

		do := func(method, path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w
		}
		linkPath := "/doctors/me/patients/" + strconv.FormatInt(p.ID, 10)

		w := do(http.MethodPut, linkPath)
		require.Equal(t, http.StatusOK, w.Code)
		w = do(http.MethodPut, linkPath)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, linkRows(t))

		w = do(http.MethodGet, linkPath)
		require.Equal(t, http.StatusOK, w.Code)
		var link association.Link
		require.NoError(t, json.NewDecoder(w.Body).Decode(&link))
		assert.True(t, link.Linked)

		w = do(http.MethodGet, "/doctors/me/patients")
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Data  []patient.Patient `json:"data"`
			Total int               `json:"total"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
		assert.Equal(t, 1, page.Total)

		w = do(http.MethodGet, "/patients/"+strconv.FormatInt(p.ID, 10)+"/doctors")
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(http.MethodDelete, linkPath)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = do(http.MethodDelete, linkPath)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(http.MethodPut, "/doctors/me/patients/999999")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(http.MethodPut, "/doctors/me/patients/abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
