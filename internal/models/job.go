package models

import (
	"fmt"
	"regexp"
	"time"
)

// Job describes one ingestion run: which vendor dataset to pull, over which
// symbols and date range, and how to chunk the work.
type Job struct {
	Name              string     `yaml:"name" json:"name"`
	API               string     `yaml:"api" json:"api"`
	Dataset           string     `yaml:"dataset" json:"dataset"`
	Schema            string     `yaml:"schema" json:"schema"`
	Symbols           []string   `yaml:"symbols" json:"symbols"`
	SymbolType        SymbolType `yaml:"stype_in" json:"stype_in"`
	StartDate         string     `yaml:"start_date" json:"start_date"`
	EndDate           string     `yaml:"end_date" json:"end_date"`
	ChunkIntervalDays int        `yaml:"chunk_interval_days,omitempty" json:"chunk_interval_days,omitempty"`
	BatchSize         int        `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	EnableCalendarFiltering bool   `yaml:"enable_market_calendar_filtering,omitempty" json:"enable_market_calendar_filtering,omitempty"`
	ExchangeName            string `yaml:"exchange_name,omitempty" json:"exchange_name,omitempty"`
}

const (
	DefaultBatchSize         = 1000
	DefaultChunkIntervalDays = 1
	dateLayout               = "2006-01-02"
)

var (
	continuousSymbolRe = regexp.MustCompile(`^[A-Z0-9]+\.(c|n)\.\d+$`)
	parentSymbolRe     = regexp.MustCompile(`^[A-Z0-9]+\.(FUT|OPT|IVX|MLP)$`)
	nativeSymbolRe     = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// Validate checks the job document at submission time. Dates are inclusive
// calendar dates and the range must span at least two days.
func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if j.API == "" {
		return fmt.Errorf("job %s: api is required", j.Name)
	}
	if j.Dataset == "" {
		return fmt.Errorf("job %s: dataset is required", j.Name)
	}
	if j.Schema == "" {
		return fmt.Errorf("job %s: schema is required", j.Name)
	}
	if len(j.Symbols) == 0 {
		return fmt.Errorf("job %s: at least one symbol is required", j.Name)
	}
	if !j.SymbolType.Valid() {
		return fmt.Errorf("job %s: invalid stype_in %q", j.Name, j.SymbolType)
	}
	for _, s := range j.Symbols {
		if err := ValidateSymbol(s, j.SymbolType); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}

	start, err := j.Start()
	if err != nil {
		return fmt.Errorf("job %s: invalid start_date: %w", j.Name, err)
	}
	end, err := j.End()
	if err != nil {
		return fmt.Errorf("job %s: invalid end_date: %w", j.Name, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("job %s: start_date %s must be before end_date %s", j.Name, j.StartDate, j.EndDate)
	}
	if j.ChunkIntervalDays < 0 {
		return fmt.Errorf("job %s: chunk_interval_days must be >= 0", j.Name)
	}
	if j.BatchSize < 0 {
		return fmt.Errorf("job %s: batch_size must be >= 0", j.Name)
	}
	return nil
}

// ValidateSymbol checks a symbol against the syntax for its symbology.
// The reserved ALL_SYMBOLS literal is accepted with any symbology.
func ValidateSymbol(symbol string, stype SymbolType) error {
	if symbol == AllSymbols {
		return nil
	}
	var re *regexp.Regexp
	switch stype {
	case SymbolContinuous:
		re = continuousSymbolRe
	case SymbolParent:
		re = parentSymbolRe
	case SymbolNative:
		re = nativeSymbolRe
	default:
		return fmt.Errorf("invalid symbol type %q", stype)
	}
	if !re.MatchString(symbol) {
		return fmt.Errorf("symbol %q does not match %s syntax", symbol, stype)
	}
	return nil
}

// Start parses the inclusive start date.
func (j Job) Start() (time.Time, error) {
	return time.Parse(dateLayout, j.StartDate)
}

// End parses the inclusive end date.
func (j Job) End() (time.Time, error) {
	return time.Parse(dateLayout, j.EndDate)
}

// EffectiveBatchSize returns the configured batch size or the default.
func (j Job) EffectiveBatchSize() int {
	if j.BatchSize > 0 {
		return j.BatchSize
	}
	return DefaultBatchSize
}

// EffectiveChunkDays returns the configured chunk interval or the default.
func (j Job) EffectiveChunkDays() int {
	if j.ChunkIntervalDays > 0 {
		return j.ChunkIntervalDays
	}
	return DefaultChunkIntervalDays
}
