package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"example.com/sensing-api/internal/config"
	"example.com/sensing-api/internal/domain"
	spg "example.com/sensing-api/internal/storage/postgres"
)

// Ingestor schedules a validated batch as a deferred unit of work. False
// means the queue is full.
type Ingestor interface {
	Enqueue(b domain.Batch) bool
}

// Storage is the read-only slice of the storage layer the handlers touch.
type Storage interface {
	Ready(ctx context.Context) error
	LatestVitals(ctx context.Context) ([]spg.VitalRow, error)
	LatestLocations(ctx context.Context) ([]spg.LocationRow, error)
	LatestEvents(ctx context.Context) ([]spg.EventRow, error)
}

type ServerDeps struct {
	Cfg      config.Config
	Ingestor Ingestor
	DB       Storage
	Log      *logrus.Logger
}

// --- Ingest ---

// HandleIngest validates the payload synchronously, acknowledges, and hands
// the batch to the deferred pipeline. The acknowledged record count is the
// input reading count; what actually persists is visible only in the audit
// log.
func (d *ServerDeps) HandleIngest(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Decoding is lenient about unknown fields, same as the clients expect;
	// the Batch unmarshaler does all schema checking.
	var batch domain.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			WriteProblem(w, http.StatusBadRequest, "validation failed", "one or more fields are invalid",
				map[string][]string{schemaErr.Field: {schemaErr.Msg}})
			return
		}
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}

	if ok := d.Ingestor.Enqueue(batch); !ok {
		WriteProblem(w, http.StatusServiceUnavailable, "overloaded", "ingest queue is full, please retry", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"accepted","records":` + strconv.Itoa(len(batch.Data)) + `}`))
}

// --- Health ---

func (d *ServerDeps) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := d.DB.Ready(r.Context()); err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "database unavailable", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// --- Dashboard ---

// HandleDashboard renders the latest rows per table. It accepts the shared
// secret either as X-API-Key or as a token query parameter so the page works
// in a browser.
func (d *ServerDeps) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	expected := d.Cfg.IngestAPIKey
	if expected == "" {
		WriteProblem(w, http.StatusInternalServerError, "server misconfigured", "server API key not configured", nil)
		return
	}
	if r.Header.Get("X-API-Key") != expected && r.URL.Query().Get("token") != expected {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key", nil)
		return
	}

	ctx := r.Context()
	vitals, err := d.DB.LatestVitals(ctx)
	if err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "dashboard unavailable", nil)
		return
	}
	locations, err := d.DB.LatestLocations(ctx)
	if err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "dashboard unavailable", nil)
		return
	}
	events, err := d.DB.LatestEvents(ctx)
	if err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "dashboard unavailable", nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = dashboardTmpl.Execute(w, dashboardData{
		Vitals:    vitals,
		Locations: locations,
		Events:    events,
	})
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", d.HandleHealth)
	mux.HandleFunc("/dashboard", d.HandleDashboard)

	var postIngest http.Handler = http.HandlerFunc(d.HandleIngest)
	postIngest = BodyLimit(d.Cfg.MaxBodyBytes)(postIngest)
	postIngest = RequireJSON(postIngest)
	postIngest = APIKeyAuth(d.Cfg.IngestAPIKey)(postIngest)
	mux.Handle("/ingest", postIngest)

	var h http.Handler = mux
	if d.Log != nil {
		h = RequestLog(d.Log)(h)
	}
	return h
}
