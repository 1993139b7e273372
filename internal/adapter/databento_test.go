package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"marketscan/internal/models"
)

func databentoJob() models.Job {
	return models.Job{
		Name:       "es-trades",
		API:        "databento",
		Dataset:    "GLBX.MDP3",
		Schema:     "trades",
		Symbols:    []string{"ES.c.0"},
		SymbolType: models.SymbolContinuous,
		StartDate:  "2024-01-02",
		EndDate:    "2024-01-04",
	}
}

func TestDatabentoValidateConfig(t *testing.T) {
	t.Parallel()

	d := NewDatabento(Config{})
	if err := d.ValidateConfig(); err == nil {
		t.Error("missing api key accepted")
	}
	d = NewDatabento(Config{APIKey: "db-test-key"})
	if err := d.ValidateConfig(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestDatabentoFetchStream(t *testing.T) {
	t.Parallel()

	lines := `{"hd":{"ts_event":"1704196800000000000","instrument_id":5602,"publisher_id":1},"price":"4700250000000","size":10,"side":"B","sequence":100}
{"hd":{"ts_event":"1704196860000000000","instrument_id":5602,"publisher_id":1},"price":"4700500000000","size":3,"side":"S","sequence":101}
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _, ok := r.BasicAuth(); !ok || user != "db-test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("dataset") != "GLBX.MDP3" || q.Get("schema") != "trades" || q.Get("symbols") != "ES.c.0" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(lines))
	}))
	defer srv.Close()

	d := NewDatabento(Config{APIKey: "db-test-key", BaseURL: srv.URL})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Disconnect()

	stream, err := d.Fetch(context.Background(), databentoJob(),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer stream.Close()

	recs := drain(t, stream)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Kind != models.KindTrade {
		t.Errorf("kind = %q", recs[0].Kind)
	}
	// Header fields are lifted out of "hd".
	if _, ok := recs[0].Fields["ts_event"]; !ok {
		t.Error("ts_event not lifted from header")
	}
	if _, ok := recs[0].Fields["hd"]; ok {
		t.Error("hd wrapper survived flattening")
	}
	if seq, ok := recs[0].Fields["sequence"].(json.Number); !ok || seq.String() != "100" {
		t.Errorf("sequence = %v (%T)", recs[0].Fields["sequence"], recs[0].Fields["sequence"])
	}
}

func TestDatabentoRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"hd":{"ts_event":"1704196800000000000","instrument_id":1},"price":"1","size":1}` + "\n"))
	}))
	defer srv.Close()

	d := NewDatabento(Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 2})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Disconnect()

	stream, err := d.Fetch(context.Background(), databentoJob(),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch after retry: %v", err)
	}
	defer stream.Close()

	if got := drain(t, stream); len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestDatabentoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDatabento(Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3})
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Disconnect()

	if _, err := d.Fetch(context.Background(), databentoJob(),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected fetch error")
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}
