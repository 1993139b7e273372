package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketscan/internal/models"
)

const (
	databentoBaseURL   = "https://hist.databento.com"
	databentoRangePath = "/v0/timeseries.get_range"

	defaultRateLimit  = 5 // requests per second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// Databento pulls historical records from the vendor's range API as JSON
// lines. One Fetch call covers one date chunk.
type Databento struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewDatabento builds the adapter. Connect must still be called before Fetch.
func NewDatabento(cfg Config) *Databento {
	if cfg.BaseURL == "" {
		cfg.BaseURL = databentoBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Databento{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

func (d *Databento) ValidateConfig() error {
	if d.cfg.APIKey == "" {
		return fmt.Errorf("databento: api key is required")
	}
	if _, err := url.Parse(d.cfg.BaseURL); err != nil {
		return fmt.Errorf("databento: invalid base url: %w", err)
	}
	return nil
}

func (d *Databento) Connect(ctx context.Context) error {
	if d.client == nil {
		d.client = &http.Client{Timeout: 10 * time.Minute}
	}
	return nil
}

func (d *Databento) Disconnect() error {
	if d.client != nil {
		d.client.CloseIdleConnections()
		d.client = nil
	}
	return nil
}

// Fetch opens the range request for [start, end) and streams records back.
// Transient vendor failures (429, 5xx, network) are retried here with
// exponential backoff; callers never retry.
func (d *Databento) Fetch(ctx context.Context, job models.Job, start, end time.Time) (Stream, error) {
	if d.client == nil {
		return nil, fmt.Errorf("databento: fetch before connect")
	}

	kind, _, err := models.KindForSchema(job.Schema)
	if err != nil {
		return nil, fmt.Errorf("databento: %w", err)
	}

	q := url.Values{}
	q.Set("dataset", job.Dataset)
	q.Set("schema", models.NormalizeSchema(job.Schema))
	q.Set("symbols", strings.Join(job.Symbols, ","))
	q.Set("stype_in", string(job.SymbolType))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("encoding", "json")
	reqURL := d.cfg.BaseURL + databentoRangePath + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			log.Printf("[databento] retrying range request in %s (attempt %d/%d): %v",
				delay, attempt, d.cfg.MaxRetries, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("databento: build request: %w", err)
		}
		req.SetBasicAuth(d.cfg.APIKey, "")

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("databento: range request: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			sc := bufio.NewScanner(resp.Body)
			// Definition lines run long; the default 64K token cap is too small.
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			return &jsonLineStream{kind: kind, body: resp.Body, scanner: sc}, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = fmt.Errorf("databento: range request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if !retryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// jsonLineStream decodes one record per line. The vendor nests the common
// header under "hd"; those fields are lifted to the top level so the
// transform rules see one flat map.
type jsonLineStream struct {
	kind    models.RecordKind
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (s *jsonLineStream) Next(ctx context.Context) (models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.RawRecord{}, err
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		fields := make(map[string]any)
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return models.RawRecord{}, fmt.Errorf("databento: decode record: %w", err)
		}
		if hd, ok := fields["hd"].(map[string]any); ok {
			delete(fields, "hd")
			for k, v := range hd {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}
		return models.RawRecord{Kind: s.kind, Fields: fields}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return models.RawRecord{}, fmt.Errorf("databento: read stream: %w", err)
	}
	return models.RawRecord{}, io.EOF
}

func (s *jsonLineStream) Close() error { return s.body.Close() }
