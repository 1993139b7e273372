package validate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketscan/internal/models"
)

var testDay = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func singleSymbolJob() models.Job {
	return models.Job{
		Name:       "es-daily",
		API:        "databento",
		Dataset:    "GLBX.MDP3",
		Schema:     "ohlcv-1d",
		Symbols:    []string{"ES.c.0"},
		SymbolType: models.SymbolContinuous,
		StartDate:  "2024-01-02",
		EndDate:    "2024-01-04",
	}
}

func ohlcvFields() map[string]any {
	return map[string]any{
		"ts_event":      testDay,
		"instrument_id": uint32(12345),
		"symbol":        "ES.c.0",
		"open":          decimal.RequireFromString("4700.25"),
		"high":          decimal.RequireFromString("4712.00"),
		"low":           decimal.RequireFromString("4695.50"),
		"close":         decimal.RequireFromString("4710.50"),
		"volume":        uint64(150000),
		"granularity":   "1d",
	}
}

func TestValidateBatchPartitionInvariant(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	bad := models.RawRecord{Kind: models.KindOhlcv, Fields: map[string]any{
		"ts_event": testDay, "instrument_id": uint32(1),
	}}
	records := []models.RawRecord{
		{Kind: models.KindOhlcv, Fields: ohlcvFields()},
		bad,
		{Kind: models.KindTrade, Fields: map[string]any{}},
	}

	res := v.ValidateBatch(records, models.KindOhlcv, singleSymbolJob())
	if got := res.Good() + len(res.Quarantined); got != len(records) {
		t.Fatalf("good+quarantined = %d, want %d", got, len(records))
	}
	if len(res.Ohlcv) != 1 {
		t.Errorf("good ohlcv = %d, want 1", len(res.Ohlcv))
	}
	if len(res.Quarantined) != 2 {
		t.Errorf("quarantined = %d, want 2", len(res.Quarantined))
	}
}

func TestKindMismatchQuarantined(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	res := v.ValidateBatch(
		[]models.RawRecord{{Kind: models.KindTrade, Fields: map[string]any{}}},
		models.KindOhlcv, singleSymbolJob(),
	)
	if len(res.Quarantined) != 1 {
		t.Fatalf("quarantined = %d, want 1", len(res.Quarantined))
	}
	if res.Quarantined[0].ErrKind != ErrKindMismatch {
		t.Errorf("err kind = %q, want %q", res.Quarantined[0].ErrKind, ErrKindMismatch)
	}
}

func TestRepairSymbolFromJob(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	fields := ohlcvFields()
	delete(fields, "symbol")
	res := v.ValidateBatch(
		[]models.RawRecord{{Kind: models.KindOhlcv, Fields: fields}},
		models.KindOhlcv, singleSymbolJob(),
	)
	if res.Repaired != 1 {
		t.Fatalf("repaired = %d, want 1", res.Repaired)
	}
	if len(res.Ohlcv) != 1 || res.Ohlcv[0].Symbol != "ES.c.0" {
		t.Fatalf("symbol not filled from job: %+v", res.Ohlcv)
	}
}

func TestRepairSymbolPlaceholder(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	job := singleSymbolJob()
	job.Symbols = []string{"ES.c.0", "NQ.c.0"}

	fields := ohlcvFields()
	delete(fields, "symbol")
	res := v.ValidateBatch(
		[]models.RawRecord{{Kind: models.KindOhlcv, Fields: fields}},
		models.KindOhlcv, job,
	)
	if len(res.Ohlcv) != 1 || res.Ohlcv[0].Symbol != "INSTRUMENT_12345" {
		t.Fatalf("placeholder symbol not applied: %+v", res.Ohlcv)
	}
}

func TestRepairStatisticsPriceRename(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	res := v.ValidateBatch([]models.RawRecord{{
		Kind: models.KindStatistics,
		Fields: map[string]any{
			"ts_event":      testDay,
			"instrument_id": uint32(9),
			"symbol":        "ES.c.0",
			"stat_type":     int64(3),
			"price":         decimal.RequireFromString("4701.00"),
		},
	}}, models.KindStatistics, singleSymbolJob())

	if res.Repaired != 1 {
		t.Fatalf("repaired = %d, want 1", res.Repaired)
	}
	if len(res.Statistics) != 1 {
		t.Fatalf("statistics = %d, want 1", len(res.Statistics))
	}
	row := res.Statistics[0]
	if row.StatValue == nil || !row.StatValue.Equal(decimal.RequireFromString("4701.00")) {
		t.Fatalf("stat_value = %v", row.StatValue)
	}
	if row.StatType != models.StatSettlementPrice {
		t.Errorf("stat_type = %d", row.StatType)
	}
}

func TestRepairDefinitionDefaults(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	res := v.ValidateBatch([]models.RawRecord{{
		Kind: models.KindDefinition,
		Fields: map[string]any{
			"ts_event":      testDay,
			"instrument_id": uint32(42),
			"raw_symbol":    "ESH4",
		},
	}}, models.KindDefinition, singleSymbolJob())

	if res.Repaired != 1 {
		t.Fatalf("repaired = %d, want 1", res.Repaired)
	}
	if len(res.Definitions) != 1 {
		t.Fatalf("definitions = %d, want 1: %+v", len(res.Definitions), res.Quarantined)
	}
	def := res.Definitions[0]
	if def.RType != 19 {
		t.Errorf("rtype default = %d, want 19", def.RType)
	}
	if def.SecurityUpdateAction != "A" {
		t.Errorf("security_update_action default = %q, want A", def.SecurityUpdateAction)
	}
	if def.InstAttribValue != 0 || def.MinLotSize != 0 || def.Group != "" || def.Asset != "" {
		t.Errorf("zero defaults not applied: %+v", def)
	}
}

func TestQuarantineMissingRequired(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	fields := ohlcvFields()
	delete(fields, "close")
	res := v.ValidateBatch(
		[]models.RawRecord{{Kind: models.KindOhlcv, Fields: fields}},
		models.KindOhlcv, singleSymbolJob(),
	)
	if len(res.Quarantined) != 1 || res.FailedRepair != 1 {
		t.Fatalf("quarantined=%d failedRepair=%d, want 1/1", len(res.Quarantined), res.FailedRepair)
	}
	if res.Quarantined[0].ErrKind != ErrMissingField {
		t.Errorf("err kind = %q, want %q", res.Quarantined[0].ErrKind, ErrMissingField)
	}
}

func TestOhlcvPriceRelationInvariant(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		wantOK bool
	}{
		{"valid", func(f map[string]any) {}, true},
		{"low above open", func(f map[string]any) { f["low"] = decimal.RequireFromString("4705.00") }, false},
		{"high below close", func(f map[string]any) { f["high"] = decimal.RequireFromString("4700.00") }, false},
		{"vwap below low", func(f map[string]any) { f["vwap"] = decimal.RequireFromString("4000") }, false},
		{"vwap in range", func(f map[string]any) { f["vwap"] = decimal.RequireFromString("4701") }, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fields := ohlcvFields()
			tc.mutate(fields)
			res := v.ValidateBatch(
				[]models.RawRecord{{Kind: models.KindOhlcv, Fields: fields}},
				models.KindOhlcv, singleSymbolJob(),
			)
			if tc.wantOK && len(res.Ohlcv) != 1 {
				t.Fatalf("expected good record, quarantined: %+v", res.Quarantined)
			}
			if !tc.wantOK {
				if len(res.Quarantined) != 1 {
					t.Fatal("expected quarantine")
				}
				if res.Quarantined[0].ErrKind != ErrInvariantViolated {
					t.Errorf("err kind = %q, want %q", res.Quarantined[0].ErrKind, ErrInvariantViolated)
				}
			}
		})
	}
}

func TestOhlcvRType(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	t.Run("derived from granularity", func(t *testing.T) {
		t.Parallel()
		res := v.ValidateBatch(
			[]models.RawRecord{{Kind: models.KindOhlcv, Fields: ohlcvFields()}},
			models.KindOhlcv, singleSymbolJob(),
		)
		if len(res.Ohlcv) != 1 {
			t.Fatalf("quarantined: %+v", res.Quarantined)
		}
		if res.Ohlcv[0].RType != 35 {
			t.Errorf("rtype = %d, want 35", res.Ohlcv[0].RType)
		}
	})

	t.Run("explicit rtype wins", func(t *testing.T) {
		t.Parallel()
		fields := ohlcvFields()
		fields["granularity"] = "1h"
		fields["rtype"] = int64(34)
		res := v.ValidateBatch(
			[]models.RawRecord{{Kind: models.KindOhlcv, Fields: fields}},
			models.KindOhlcv, singleSymbolJob(),
		)
		if len(res.Ohlcv) != 1 {
			t.Fatalf("quarantined: %+v", res.Quarantined)
		}
		if res.Ohlcv[0].RType != 34 {
			t.Errorf("rtype = %d, want 34", res.Ohlcv[0].RType)
		}
	})
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	v := NewValidator()

	fields := map[string]any{
		"ts_event":      testDay,
		"instrument_id": uint32(42),
		"raw_symbol":    "ESH4",
	}
	rec := models.RawRecord{Kind: models.KindDefinition, Fields: fields}
	v.ValidateBatch([]models.RawRecord{rec}, models.KindDefinition, singleSymbolJob())

	if _, ok := fields["rtype"]; ok {
		t.Error("repair wrote defaults into the caller's record")
	}
}
