package adapter

import (
	"context"
	"io"
	"time"

	"marketscan/internal/models"
)

// Replay serves records from memory. It backs tests and file-driven backfills
// where the records were already pulled from the vendor.
type Replay struct {
	records []models.RawRecord

	// FetchErr, when set, is returned by Fetch. Lets tests exercise the
	// pipeline's fatal extract path.
	FetchErr error
}

// NewReplay returns a replay adapter over the given records.
func NewReplay(records []models.RawRecord) *Replay {
	return &Replay{records: records}
}

func (r *Replay) ValidateConfig() error            { return nil }
func (r *Replay) Connect(ctx context.Context) error { return nil }
func (r *Replay) Disconnect() error                 { return nil }

// Fetch yields the records whose event time falls in [start, end). Records
// without a readable ts_event are yielded in every chunk that starts at the
// job's start date, so untimed fixtures surface exactly once.
func (r *Replay) Fetch(ctx context.Context, job models.Job, start, end time.Time) (Stream, error) {
	if r.FetchErr != nil {
		return nil, r.FetchErr
	}

	jobStart, err := job.Start()
	if err != nil {
		return nil, err
	}
	firstChunk := start.Equal(jobStart)

	var chunk []models.RawRecord
	for _, rec := range r.records {
		ts, ok := recordTime(rec)
		if !ok {
			if firstChunk {
				chunk = append(chunk, rec)
			}
			continue
		}
		if !ts.Before(start) && ts.Before(end) {
			chunk = append(chunk, rec)
		}
	}
	return &sliceStream{records: chunk}, nil
}

// recordTime reads a record's event time from its loose field map, tolerating
// the shapes records have before transformation.
func recordTime(rec models.RawRecord) (time.Time, bool) {
	v, ok := rec.Fields["ts_event"]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

type sliceStream struct {
	records []models.RawRecord
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) (models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.RawRecord{}, err
	}
	if s.pos >= len(s.records) {
		return models.RawRecord{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *sliceStream) Close() error { return nil }
