// Package pipeline runs one ingestion job end to end: pull records from an
// adapter in date chunks, normalize them through the transform rules,
// validate and repair, then bulk-upsert into the store. A failed chunk is
// counted and skipped; the run keeps going.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"marketscan/internal/adapter"
	"marketscan/internal/models"
	"marketscan/internal/repository"
	"marketscan/internal/transform"
	"marketscan/internal/validate"
)

// Store is the loader surface the pipeline writes to.
type Store interface {
	InsertOhlcv(ctx context.Context, records []models.Ohlcv, dataSource string) (repository.InsertResult, error)
	InsertTrades(ctx context.Context, records []models.Trade, dataSource string) (repository.InsertResult, error)
	InsertTbbo(ctx context.Context, records []models.Tbbo, dataSource string) (repository.InsertResult, error)
	InsertStatistics(ctx context.Context, records []models.Statistic, dataSource string) (repository.InsertResult, error)
	InsertDefinitions(ctx context.Context, records []models.Definition, dataSource string) (repository.InsertResult, error)
}

// ProgressFunc is invoked at chunk boundaries and stage transitions. total
// grows monotonically until the adapter signals end of stream.
type ProgressFunc func(description string, completed, total int, stage string)

// Stats are the counters of one run. At every observation point
// RecordsFetched >= RecordsTransformed >= RecordsValidated >= RecordsStored.
type Stats struct {
	RecordsFetched     int `json:"records_fetched"`
	RecordsTransformed int `json:"records_transformed"`
	RecordsValidated   int `json:"records_validated"`
	RecordsStored      int `json:"records_stored"`
	RecordsQuarantined int `json:"records_quarantined"`
	RecordsRepaired    int `json:"records_repaired"`
	FailedRepair       int `json:"failed_repair"`
	ErrorsEncountered  int `json:"errors_encountered"`
	ChunksProcessed    int `json:"chunks_processed"`
	ChunksFailed       int `json:"chunks_failed"`
}

// Result is the envelope Execute returns. Execute never returns an error;
// fatal conditions surface here as status failed.
type Result struct {
	Status     Status                 `json:"status"`
	Stats      Stats                  `json:"stats"`
	Duration   time.Duration          `json:"duration"`
	Warnings   []string               `json:"warnings,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ErrKind    ErrKind                `json:"error_kind,omitempty"`
	Quarantine []validate.Quarantined `json:"-"`
}

// Pipeline wires the stages for one job at a time. Instances are not shared
// between concurrently executing jobs.
type Pipeline struct {
	adapter   adapter.Adapter
	engine    *transform.Engine
	validator *validate.Validator
	store     Store

	Progress ProgressFunc
}

func New(a adapter.Adapter, engine *transform.Engine, store Store) *Pipeline {
	return &Pipeline{
		adapter:   a,
		engine:    engine,
		validator: validate.NewValidator(),
		store:     store,
	}
}

// run carries the mutable state of a single Execute call.
type run struct {
	job         models.Job
	kind        models.RecordKind
	granularity models.Granularity
	stats       Stats
	warnings    []string
	quarantine  []validate.Quarantined
	cancelled   bool
}

// Execute runs the job and reports the outcome in a result envelope.
func (p *Pipeline) Execute(ctx context.Context, job models.Job) Result {
	started := time.Now()
	res := p.execute(ctx, job)
	res.Duration = time.Since(started)
	log.Printf("[pipeline] job %s finished: status=%s fetched=%d stored=%d quarantined=%d errors=%d duration=%s",
		job.Name, res.Status, res.Stats.RecordsFetched, res.Stats.RecordsStored,
		res.Stats.RecordsQuarantined, res.Stats.ErrorsEncountered, res.Duration.Round(time.Millisecond))
	return res
}

func (p *Pipeline) execute(ctx context.Context, job models.Job) Result {
	if err := job.Validate(); err != nil {
		return failure(ErrConfig, err, Stats{}, nil)
	}
	kind, granularity, err := models.KindForSchema(job.Schema)
	if err != nil {
		return failure(ErrConfig, err, Stats{}, nil)
	}

	if err := p.adapter.ValidateConfig(); err != nil {
		return failure(ErrAdapter, err, Stats{}, nil)
	}
	if err := p.adapter.Connect(ctx); err != nil {
		return failure(ErrAdapter, fmt.Errorf("adapter connect: %w", err), Stats{}, nil)
	}
	defer func() {
		if err := p.adapter.Disconnect(); err != nil {
			log.Printf("[pipeline] job %s: adapter disconnect: %v", job.Name, err)
		}
	}()

	r := &run{job: job, kind: kind, granularity: granularity}

	start, _ := job.Start()
	end, _ := job.End()
	endExclusive := end.AddDate(0, 0, 1)
	chunkDays := job.EffectiveChunkDays()

	for cur := start; cur.Before(endExclusive); cur = cur.AddDate(0, 0, chunkDays) {
		if ctx.Err() != nil {
			r.cancelled = true
			break
		}

		chunkEnd := cur.AddDate(0, 0, chunkDays)
		if chunkEnd.After(endExclusive) {
			chunkEnd = endExclusive
		}
		if job.EnableCalendarFiltering && !hasTradingDay(cur, chunkEnd) {
			continue
		}

		if fatal := p.runChunk(ctx, r, cur, chunkEnd); fatal != nil {
			return failure(fatal.Kind, fatal.Err, r.stats, r.warnings)
		}

		r.stats.ChunksProcessed++
		p.progress(fmt.Sprintf("job %s chunk %s", job.Name, cur.Format("2006-01-02")),
			r.stats.RecordsStored, r.stats.RecordsFetched, "chunk")
	}

	return r.finish()
}

// runChunk extracts one date chunk and pushes its batches through the
// remaining stages. Non-fatal chunk failures are absorbed here.
func (p *Pipeline) runChunk(ctx context.Context, r *run, start, end time.Time) *Error {
	stream, err := p.adapter.Fetch(ctx, r.job, start, end)
	if err != nil {
		// Failure to open the record stream means the vendor is unreachable
		// or rejecting us. That is fatal for the job.
		return wrap(ErrAdapter, fmt.Errorf("fetch chunk %s: %w", start.Format("2006-01-02"), err))
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Printf("[pipeline] job %s: close stream: %v", r.job.Name, err)
		}
	}()

	batchSize := r.job.EffectiveBatchSize()
	batch := make([]models.RawRecord, 0, batchSize)
	for {
		if ctx.Err() != nil {
			r.cancelled = true
			break
		}
		rec, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.cancelled = true
			break
		}
		if err != nil {
			// Mid-stream read failure loses the rest of the chunk only.
			log.Printf("[pipeline] job %s: chunk %s read failed: %v", r.job.Name, start.Format("2006-01-02"), err)
			r.stats.ErrorsEncountered++
			r.stats.ChunksFailed++
			r.warn("chunk %s: %v", start.Format("2006-01-02"), err)
			break
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if fatal := p.processBatch(ctx, r, batch); fatal != nil {
				return fatal
			}
			batch = batch[:0]
		}
	}

	// The in-flight batch completes STORE even on cancellation so the
	// counters stay consistent.
	if len(batch) > 0 {
		if fatal := p.processBatch(ctx, r, batch); fatal != nil {
			return fatal
		}
	}
	return nil
}

// processBatch runs TRANSFORM, VALIDATE and STORE over one batch. Only a
// store-unavailable condition is fatal.
func (p *Pipeline) processBatch(ctx context.Context, r *run, batch []models.RawRecord) *Error {
	r.stats.RecordsFetched += len(batch)
	desc := fmt.Sprintf("job %s", r.job.Name)
	p.progress(desc, r.stats.RecordsFetched, r.stats.RecordsFetched, "extract")

	// errs is positional: nil for every record that transformed cleanly.
	transformed, errs := p.engine.TransformBatch(batch, r.kind)
	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		log.Printf("[pipeline] job %s: transform: %v", r.job.Name, err)
	}
	r.stats.ErrorsEncountered += failed
	r.stats.RecordsTransformed += len(transformed) - failed
	p.progress(desc, r.stats.RecordsTransformed, r.stats.RecordsFetched, "transform")

	if r.kind == models.KindOhlcv {
		for _, rec := range transformed {
			rec.Fields["granularity"] = string(r.granularity)
		}
	}

	vr := p.validator.ValidateBatch(transformed, r.kind, r.job)
	r.stats.RecordsValidated += vr.Good()
	r.stats.RecordsQuarantined += len(vr.Quarantined)
	r.stats.RecordsRepaired += vr.Repaired
	r.stats.FailedRepair += vr.FailedRepair
	r.quarantine = append(r.quarantine, vr.Quarantined...)
	p.progress(desc, r.stats.RecordsValidated, r.stats.RecordsFetched, "validate")

	var (
		ir  repository.InsertResult
		err error
	)
	dataSource := r.job.API
	switch r.kind {
	case models.KindOhlcv:
		ir, err = p.store.InsertOhlcv(ctx, vr.Ohlcv, dataSource)
	case models.KindTrade:
		ir, err = p.store.InsertTrades(ctx, vr.Trades, dataSource)
	case models.KindTbbo:
		ir, err = p.store.InsertTbbo(ctx, vr.Tbbos, dataSource)
	case models.KindStatistics:
		ir, err = p.store.InsertStatistics(ctx, vr.Statistics, dataSource)
	case models.KindDefinition:
		ir, err = p.store.InsertDefinitions(ctx, vr.Definitions, dataSource)
	}
	if err != nil {
		return wrap(ErrStorage, fmt.Errorf("store batch: %w", err))
	}
	r.stats.RecordsStored += ir.Inserted
	p.progress(desc, r.stats.RecordsStored, r.stats.RecordsFetched, "store")
	if ir.Errors > 0 {
		r.stats.ErrorsEncountered++
		r.warn("batch store: %d rows failed", ir.Errors)
	}
	return nil
}

func (r *run) finish() Result {
	res := Result{
		Status:     StatusSuccess,
		Stats:      r.stats,
		Warnings:   r.warnings,
		Quarantine: r.quarantine,
	}
	switch {
	case r.cancelled:
		res.Status = StatusCancelled
		res.Error = "cancelled"
	case r.stats.RecordsQuarantined > 0 || r.stats.ErrorsEncountered > 0 || r.stats.ChunksFailed > 0:
		res.Status = StatusPartial
		res.Error = fmt.Sprintf("%d quarantined, %d errors", r.stats.RecordsQuarantined, r.stats.ErrorsEncountered)
	}
	return res
}

func (r *run) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (p *Pipeline) progress(description string, completed, total int, stage string) {
	if p.Progress != nil {
		p.Progress(description, completed, total, stage)
	}
}

func failure(kind ErrKind, err error, stats Stats, warnings []string) Result {
	return Result{
		Status:   StatusFailed,
		Stats:    stats,
		Warnings: warnings,
		Error:    err.Error(),
		ErrKind:  kind,
	}
}

// hasTradingDay reports whether [start, end) contains at least one weekday.
// Exchange holidays are not modeled; weekends are the dominant dead interval
// for the daily schemas this filter exists for.
func hasTradingDay(start, end time.Time) bool {
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return true
		}
	}
	return false
}
