package models

import (
	"testing"
)

func validJob() Job {
	return Job{
		Name:       "es-daily",
		API:        "databento",
		Dataset:    "GLBX.MDP3",
		Schema:     "ohlcv-1d",
		Symbols:    []string{"ES.c.0"},
		SymbolType: SymbolContinuous,
		StartDate:  "2024-01-02",
		EndDate:    "2024-01-04",
	}
}

func TestJobValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Job)
		wantErr bool
	}{
		{"valid", func(j *Job) {}, false},
		{"missing name", func(j *Job) { j.Name = "" }, true},
		{"missing api", func(j *Job) { j.API = "" }, true},
		{"missing dataset", func(j *Job) { j.Dataset = "" }, true},
		{"missing schema", func(j *Job) { j.Schema = "" }, true},
		{"no symbols", func(j *Job) { j.Symbols = nil }, true},
		{"bad stype", func(j *Job) { j.SymbolType = "weird" }, true},
		{"symbol wrong syntax", func(j *Job) { j.Symbols = []string{"es.c.0"} }, true},
		{"all symbols literal", func(j *Job) { j.Symbols = []string{AllSymbols} }, false},
		{"bad start date", func(j *Job) { j.StartDate = "02-01-2024" }, true},
		{"bad end date", func(j *Job) { j.EndDate = "" }, true},
		{"start equals end", func(j *Job) { j.EndDate = j.StartDate }, true},
		{"start after end", func(j *Job) { j.StartDate = "2024-02-01" }, true},
		{"negative chunk days", func(j *Job) { j.ChunkIntervalDays = -1 }, true},
		{"negative batch size", func(j *Job) { j.BatchSize = -5 }, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			job := validJob()
			tc.mutate(&job)
			err := job.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol  string
		stype   SymbolType
		wantErr bool
	}{
		{"ES.c.0", SymbolContinuous, false},
		{"NG.n.12", SymbolContinuous, false},
		{"ES.FUT", SymbolContinuous, true},
		{"ES.FUT", SymbolParent, false},
		{"VX.IVX", SymbolParent, false},
		{"ES.c.0", SymbolParent, true},
		{"SPY", SymbolNative, false},
		{"BRK4", SymbolNative, false},
		{"spy", SymbolNative, true},
		{"SPY.US", SymbolNative, true},
		{AllSymbols, SymbolNative, false},
		{AllSymbols, SymbolContinuous, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.symbol+"/"+string(tc.stype), func(t *testing.T) {
			t.Parallel()
			err := ValidateSymbol(tc.symbol, tc.stype)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateSymbol(%q, %q) error = %v, wantErr %v", tc.symbol, tc.stype, err, tc.wantErr)
			}
		})
	}
}

func TestEffectiveDefaults(t *testing.T) {
	t.Parallel()

	job := validJob()
	if got := job.EffectiveBatchSize(); got != DefaultBatchSize {
		t.Errorf("EffectiveBatchSize() = %d, want %d", got, DefaultBatchSize)
	}
	if got := job.EffectiveChunkDays(); got != DefaultChunkIntervalDays {
		t.Errorf("EffectiveChunkDays() = %d, want %d", got, DefaultChunkIntervalDays)
	}

	job.BatchSize = 250
	job.ChunkIntervalDays = 7
	if got := job.EffectiveBatchSize(); got != 250 {
		t.Errorf("EffectiveBatchSize() = %d, want 250", got)
	}
	if got := job.EffectiveChunkDays(); got != 7 {
		t.Errorf("EffectiveChunkDays() = %d, want 7", got)
	}
}
