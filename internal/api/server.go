// Package api exposes a thin read-only HTTP surface over the query layer.
// No auth, no push; ingestion is driven by jobs, not this API.
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"marketscan/internal/pipeline"
	"marketscan/internal/repository"
)

// BuildCommit is set by main to the git commit hash baked in at build time.
var BuildCommit = "dev"

// RunStatus is the last pipeline run's outcome. Updated by main after each
// job, read by the /status endpoint.
type RunStatus struct {
	mu      sync.Mutex
	JobName string          `json:"job_name,omitempty"`
	Result  pipeline.Result `json:"result"`
	EndedAt time.Time       `json:"ended_at,omitempty"`
}

func NewRunStatus() *RunStatus {
	return &RunStatus{}
}

func (rs *RunStatus) Record(job string, res pipeline.Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.JobName = job
	rs.Result = res
	rs.EndedAt = time.Now()
}

func (rs *RunStatus) Snapshot() map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.JobName == "" {
		return nil
	}
	return map[string]any{
		"job_name": rs.JobName,
		"status":   rs.Result.Status,
		"stats":    rs.Result.Stats,
		"duration": rs.Result.Duration.String(),
		"ended_at": rs.EndedAt,
	}
}

type Server struct {
	repo    *repository.Repository
	lastRun *RunStatus
}

func NewServer(repo *repository.Repository, lastRun *RunStatus) *Server {
	return &Server{repo: repo, lastRun: lastRun}
}

// Router wires the read endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/ohlcv", s.handleOhlcv).Methods("GET", "OPTIONS")
	v1.HandleFunc("/trades", s.handleTrades).Methods("GET", "OPTIONS")
	v1.HandleFunc("/tbbo", s.handleTbbo).Methods("GET", "OPTIONS")
	v1.HandleFunc("/statistics", s.handleStatistics).Methods("GET", "OPTIONS")
	v1.HandleFunc("/definitions", s.handleDefinitions).Methods("GET", "OPTIONS")
	v1.HandleFunc("/symbols", s.handleSymbols).Methods("GET", "OPTIONS")
	return r
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv.ListenAndServe()
}
