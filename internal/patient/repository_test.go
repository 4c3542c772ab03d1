package patient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	commonmetrics "github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/metrics"
	"github.com/Flopsa/digital-doc/internal/patient"
	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
	"github.com/Flopsa/digital-doc/testing/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexCall struct {
	Op string
	ID int64
}

type recordingIndex struct {
	stubIndex
	mu    sync.Mutex
	calls []indexCall
}

func (r *recordingIndex) Add(_ context.Context, _ string, s search.Searchable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, indexCall{"add", s.SearchID()})
	return nil
}

func (r *recordingIndex) Remove(_ context.Context, _ string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, indexCall{"remove", id})
	return nil
}

func (r *recordingIndex) take() []indexCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	return calls
}

func TestPatient_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	index := &recordingIndex{}

	uow := unitofwork.New(pgContainer.DB, logger, commonmetrics.NewMock())
	uow.Register(search.NewIndexer(index, logger))

	repo := patient.NewRepository(uow, commonmetrics.NewMock())
	svc := patient.NewService(repo, index)

	reset := func(t *testing.T) {
		t.Helper()
		testdb.CleanupTables(t, pgContainer.DB, "patients", "doctors_patients")
		index.take()
		index.ids, index.total = nil, 0
	}

	t.Run("CommitHook_AddUpdateDelete", func(t *testing.T) {
		reset(t)

		p, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "Gregory", LastName: "House", Email: "House@PPTH.org"})
		require.NoError(t, err)
		assert.Equal(t, "house@ppth.org", p.Email)
		assert.False(t, p.LastSeen.IsZero())
		assert.Equal(t, []indexCall{{"add", p.ID}}, index.take())

		_, err = svc.UpdatePatient(ctx, p.ID, patient.UpdateRequest{FirstName: "Greg", LastName: "House"})
		require.NoError(t, err)
		assert.Equal(t, []indexCall{{"add", p.ID}}, index.take())

		require.NoError(t, svc.DeletePatient(ctx, p.ID))
		assert.Equal(t, []indexCall{{"remove", p.ID}}, index.take())

		_, err = svc.GetPatient(ctx, p.ID)
		assert.ErrorIs(t, err, patient.ErrPatientNotFound)
	})

	t.Run("FailedWrite_NoIndexCall", func(t *testing.T) {
		reset(t)

		_, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "A", LastName: "One", IDNumber: "8001015009087"})
		require.NoError(t, err)
		index.take()

		_, err = svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "B", LastName: "Two", IDNumber: "8001015009087"})
		assert.ErrorIs(t, err, patient.ErrIDNumberExists)
		assert.Empty(t, index.take())

		err = svc.DeletePatient(ctx, 424242)
		assert.ErrorIs(t, err, patient.ErrPatientNotFound)
		assert.Empty(t, index.take())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		reset(t)

		_, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "A", LastName: "One", Email: "a@example.com"})
		require.NoError(t, err)
		_, err = svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "B", LastName: "Two", Email: "A@example.com"})
		assert.ErrorIs(t, err, patient.ErrEmailExists)
	})

	t.Run("GetByIDs_PreservesOrder", func(t *testing.T) {
		reset(t)

		var ids []int64
		for _, name := range []string{"Adams", "Brown", "Clark"} {
			p, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "X", LastName: name})
			require.NoError(t, err)
			ids = append(ids, p.ID)
		}

		order := []int64{ids[2], 999999, ids[0], ids[1]}
		patients, err := repo.GetByIDs(ctx, order)
		require.NoError(t, err)
		require.Len(t, patients, 3)
		assert.Equal(t, "Clark", patients[0].LastName)
		assert.Equal(t, "Adams", patients[1].LastName)
		assert.Equal(t, "Brown", patients[2].LastName)

		patients, err = repo.GetByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, patients)
	})

	t.Run("List_Paginates", func(t *testing.T) {
		reset(t)

		for _, name := range []string{"Clark", "Adams", "Brown"} {
			_, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "X", LastName: name})
			require.NoError(t, err)
		}

		patients, total, err := svc.ListPatients(ctx, pagination.New(1, 2))
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, patients, 2)
		assert.Equal(t, "Adams", patients[0].LastName)
		assert.Equal(t, "Brown", patients[1].LastName)
	})

	t.Run("Reindex_FromSource", func(t *testing.T) {
		reset(t)

		for _, name := range []string{"Adams", "Brown"} {
			_, err := svc.CreatePatient(ctx, patient.CreateRequest{FirstName: "X", LastName: name})
			require.NoError(t, err)
		}
		index.take()

		n, err := search.Reindex(ctx, index, patient.NewSearchSource(repo))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, index.take(), 2)

		_, err = patient.NewSearchSource(repo).Load(ctx, 999999)
		assert.ErrorIs(t, err, search.ErrNotFound)
	})

	t.Run("HTTP", func(t *testing.T) {
		reset(t)

		router := chi.NewRouter()
		patient.NewHandler(svc, logger, metrics.NewMock()).RegisterRoutes(router)

		do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
			var buf bytes.Buffer
			if body != nil {
				require.NoError(t, json.NewEncoder(&buf).Encode(body))
			}
			req := httptest.NewRequest(method, path, &buf)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w
		}

		w := do(http.MethodPost, "/patients", patient.CreateRequest{FirstName: "Allison", LastName: "Cameron", Sex: "f", Email: "cameron@ppth.org"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, "F", created["sex"])
		assert.Contains(t, created["avatar"], "https://www.gravatar.com/avatar/")
		id := int64(created["id"].(float64))
		path := "/patients/" + strconv.FormatInt(id, 10)

		w = do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(http.MethodPost, "/patients", map[string]string{"firstName": "No"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(http.MethodPost, "/patients", patient.CreateRequest{FirstName: "A", LastName: "B", Sex: "xy"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(http.MethodGet, "/patients/search?q=nobody", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var empty pagination.Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&empty))
		assert.Equal(t, 0, empty.Total)
		assert.Equal(t, []interface{}{}, empty.Data)

		index.ids, index.total = []int64{id}, 1
		w = do(http.MethodGet, "/patients/search?q=cameron", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var found pagination.Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&found))
		assert.Equal(t, 1, found.Total)
		assert.Len(t, found.Data, 1)

		w = do(http.MethodGet, "/patients?page=9223372036854775807", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var beyond pagination.Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&beyond))
		assert.Equal(t, pagination.MaxPage, beyond.Page)
		assert.Empty(t, beyond.Data)
		assert.False(t, beyond.HasMore)

		w = do(http.MethodPut, path, patient.UpdateRequest{FirstName: "Allison", LastName: "Chase"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(http.MethodGet, "/patients/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
