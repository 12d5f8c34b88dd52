package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/sensing-api/internal/config"
	"example.com/sensing-api/internal/domain"
	spg "example.com/sensing-api/internal/storage/postgres"
)

type fakeIngestor struct {
	batches []domain.Batch
	full    bool
}

func (f *fakeIngestor) Enqueue(b domain.Batch) bool {
	if f.full {
		return false
	}
	f.batches = append(f.batches, b)
	return true
}

type fakeStorage struct {
	readyErr error
	queryErr error
}

func (f *fakeStorage) Ready(ctx context.Context) error { return f.readyErr }

func (f *fakeStorage) LatestVitals(ctx context.Context) ([]spg.VitalRow, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []spg.VitalRow{{Time: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), DeviceID: "dev-1", MetricType: 1, Val: 72}}, nil
}

func (f *fakeStorage) LatestLocations(ctx context.Context) ([]spg.LocationRow, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []spg.LocationRow{{Time: time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC), DeviceID: "dev-1", Coords: "POINT(-118.2437 34.0522)"}}, nil
}

func (f *fakeStorage) LatestEvents(ctx context.Context) ([]spg.EventRow, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []spg.EventRow{{Time: time.Date(2024, 5, 1, 10, 0, 2, 0, time.UTC), DeviceID: "dev-1", EventType: "motion_state"}}, nil
}

func newDeps(ing *fakeIngestor, store *fakeStorage, apiKey string) *ServerDeps {
	return &ServerDeps{
		Cfg: config.Config{
			IngestAPIKey: apiKey,
			MaxBodyBytes: 1 << 20,
		},
		Ingestor: ing,
		DB:       store,
	}
}

func postIngest(t *testing.T, deps *ServerDeps, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	return rec
}

const validBatch = `{
	"metadata": {"device_id": "dev-1"},
	"data": [
		{"type": "vital", "t": "2024-05-01T10:00:00Z", "code": 1, "val": 72},
		{"type": "gps", "t": "2024-05-01T10:00:01Z", "lat": 34.0522, "lon": -118.2437, "acc": 5.0},
		{"type": "event", "t": "2024-05-01T10:00:02Z", "label": "motion_state", "val_text": "walking"}
	]
}`

func TestIngestAccepted(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "secret")

	rec := postIngest(t, deps, "secret", validBatch)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"accepted","records":3}`, rec.Body.String())

	require.Len(t, ing.batches, 1)
	assert.Equal(t, "dev-1", ing.batches[0].Metadata.DeviceID)
	assert.Len(t, ing.batches[0].Data, 3)
}

func TestIngestIgnoresUnknownFields(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "secret")

	// older clients send fields the server does not know about
	body := `{
		"metadata": {"device_id": "dev-1", "battery": 0.8},
		"data": [{"type": "vital", "t": "2024-05-01T10:00:00Z", "code": 1, "val": 72, "unit": "bpm"}],
		"schema_rev": 2
	}`
	rec := postIngest(t, deps, "secret", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ing.batches, 1)
	assert.Len(t, ing.batches[0].Data, 1)
}

func TestIngestNoServerKeyConfigured(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "")

	rec := postIngest(t, deps, "anything", validBatch)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, ing.batches)
}

func TestIngestWrongKey(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "secret")

	for _, key := range []string{"", "wrong"} {
		rec := postIngest(t, deps, key, validBatch)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Empty(t, ing.batches)
}

func TestIngestSchemaErrorRejectsWholeBatch(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "secret")

	body := `{
		"metadata": {"device_id": "dev-1"},
		"data": [
			{"type": "vital", "t": "2024-05-01T10:00:00Z", "code": 1, "val": 72},
			{"type": "gps", "t": "2024-05-01T10:00:01Z", "lat": 1, "lon": 2, "acc": -1}
		]
	}`
	rec := postIngest(t, deps, "secret", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "data[1].acc")
	assert.Empty(t, ing.batches, "nothing scheduled for an invalid batch")
}

func TestIngestUnknownKindRejected(t *testing.T) {
	ing := &fakeIngestor{}
	deps := newDeps(ing, &fakeStorage{}, "secret")

	body := `{
		"metadata": {"device_id": "dev-1"},
		"data": [{"type": "pressure", "t": "2024-05-01T10:00:00Z"}]
	}`
	rec := postIngest(t, deps, "secret", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "data[0].type")
	assert.Empty(t, ing.batches)
}

func TestIngestMalformedJSON(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{}, "secret")
	rec := postIngest(t, deps, "secret", `{"metadata": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestQueueFull(t *testing.T) {
	deps := newDeps(&fakeIngestor{full: true}, &fakeStorage{}, "secret")
	rec := postIngest(t, deps, "secret", validBatch)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestRequiresJSONContentType(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(validBatch))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHealth(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthStorageDown(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{readyErr: errors.New("refused")}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboard(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{}, "secret")

	t.Run("token auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard?token=secret", nil)
		rec := httptest.NewRecorder()
		deps.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "dev-1")
		assert.Contains(t, rec.Body.String(), "POINT(-118.2437 34.0522)")
		assert.Contains(t, rec.Body.String(), "motion_state")
	})

	t.Run("header auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		deps.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard?token=nope", nil)
		rec := httptest.NewRecorder()
		deps.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no server key", func(t *testing.T) {
		unset := newDeps(&fakeIngestor{}, &fakeStorage{}, "")
		req := httptest.NewRequest(http.MethodGet, "/dashboard?token=secret", nil)
		rec := httptest.NewRecorder()
		unset.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("storage down", func(t *testing.T) {
		down := newDeps(&fakeIngestor{}, &fakeStorage{queryErr: errors.New("refused")}, "secret")
		req := httptest.NewRequest(http.MethodGet, "/dashboard?token=secret", nil)
		rec := httptest.NewRecorder()
		down.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRequestIDHeader(t *testing.T) {
	deps := newDeps(&fakeIngestor{}, &fakeStorage{}, "secret")
	deps.Log = newNullAccessLogger()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	deps.Router().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
