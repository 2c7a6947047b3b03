package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vitalmesh/telemetryd/internal/config"
	"github.com/vitalmesh/telemetryd/internal/models"
	"github.com/vitalmesh/telemetryd/internal/sync"
)

// stubStore satisfies store.Store for router tests; only the observable
// paths matter here.
type stubStore struct{}

func (stubStore) Append(ctx context.Context, rec models.Record) error          { return nil }
func (stubStore) AppendBatch(ctx context.Context, recs []models.Record) error  { return nil }
func (stubStore) MarkSynced(ctx context.Context, category string, ids []string) error { return nil }
func (stubStore) Unsynced(ctx context.Context, category string, limit int) ([]models.Record, error) {
	return nil, nil
}
func (stubStore) PurgeOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (stubStore) UnsyncedCount(ctx context.Context, category string) (int64, error) {
	return 3, nil
}

func newTestRouter() *Router {
	cfg := &config.Config{
		Device: config.DeviceConfig{ID: "dev-test", Source: "test"},
		Server: config.ServerConfig{
			BaseURL:            "http://ingest.example.com",
			RealtimePath:       "/realtime",
			HeartbeatInterval:  time.Second,
			LivenessInterval:   time.Second,
			LivenessTimeout:    15 * time.Second,
			SettleDelay:        time.Second,
			InitialBackoffBase: time.Second,
			InitialBackoffCap:  time.Minute,
			ReconnectInterval:  15 * time.Minute,
		},
		Sync: config.SyncConfig{
			Categories:    models.Categories,
			BatchSize:     50,
			PacingDelay:   time.Millisecond,
			SyncInterval:  time.Hour,
			RetentionDays: 7,
			SweepInterval: time.Hour,
		},
	}
	engine := sync.NewEngine(cfg, stubStore{})
	return NewRouter(engine, "dev-test")
}

func doRequest(r *Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter()
	rec := doRequest(r, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter()
	rec := doRequest(r, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var status struct {
		State          string           `json:"state"`
		UnsyncedCounts map[string]int64 `json:"unsyncedCounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.State != "disconnected" {
		t.Errorf("state: got %q, want disconnected", status.State)
	}
	if status.UnsyncedCounts["gps"] != 3 {
		t.Errorf("gps count: got %d, want 3", status.UnsyncedCounts["gps"])
	}
}

func TestIngestRecord(t *testing.T) {
	r := newTestRouter()

	rec := doRequest(r, "POST", "/api/records/heart_rate", `{"bpm":72,"confidence":0.95}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("heart_rate ingest: got %d, want 202 (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["id"] == "" {
		t.Error("expected an assigned record id")
	}
}

func TestIngestRecord_Validation(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown category", "/api/records/brainwaves", `{}`},
		{"malformed json", "/api/records/gps", `{`},
		{"zero bpm", "/api/records/heart_rate", `{"bpm":0}`},
		{"missing sleep state", "/api/records/sleep_state", `{"confidence":0.5}`},
		{"blank generic type", "/api/records/generic", `{"messageTypeId":"","payload":{}}`},
		{"unknown generic type", "/api/records/generic", `{"messageTypeId":"bogus","payload":{}}`},
	}

	for _, tt := range tests {
		rec := doRequest(r, "POST", tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestForceSync(t *testing.T) {
	r := newTestRouter()
	rec := doRequest(r, "POST", "/api/sync", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("force sync: got %d, want 202", rec.Code)
	}
}
