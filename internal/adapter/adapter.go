// Package adapter holds the extract-side clients the pipeline pulls records
// from. An adapter owns its vendor lifecycle including retry and backoff; the
// pipeline never retries vendor calls.
package adapter

import (
	"context"
	"fmt"
	"time"

	"marketscan/internal/models"
)

// Adapter is the contract every extractor implements.
type Adapter interface {
	// ValidateConfig checks credentials and settings without touching the
	// network.
	ValidateConfig() error

	// Connect prepares the vendor client. Idempotent.
	Connect(ctx context.Context) error

	// Disconnect releases the vendor client. Idempotent, safe after a failed
	// Connect.
	Disconnect() error

	// Fetch opens a finite lazy record stream for one date chunk of a job.
	// Chunk bounds are half-open [start, end). Records of different kinds are
	// never interleaved within a stream.
	Fetch(ctx context.Context, job models.Job, start, end time.Time) (Stream, error)
}

// Stream is a pull iterator over raw records. Next returns io.EOF when the
// sequence is exhausted.
type Stream interface {
	Next(ctx context.Context) (models.RawRecord, error)
	Close() error
}

// Config carries the vendor settings adapters need. The pipeline threads it
// through from process config; adapters pick the fields they use.
type Config struct {
	APIKey     string
	BaseURL    string
	RateLimit  float64 // requests per second, 0 = vendor default
	MaxRetries int     // 0 = default
}

// New constructs the adapter named by a job's api field.
func New(api string, cfg Config) (Adapter, error) {
	switch api {
	case "databento":
		return NewDatabento(cfg), nil
	case "replay":
		return NewReplay(nil), nil
	}
	return nil, fmt.Errorf("unknown adapter api %q", api)
}
