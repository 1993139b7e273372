package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketscan/internal/models"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	m, err := LoadDefaultMapping()
	if err != nil {
		t.Fatalf("LoadDefaultMapping: %v", err)
	}
	return NewEngine(m)
}

func TestTransformOhlcv(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	in := []models.RawRecord{{
		Kind: models.KindOhlcv,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("12345"),
			"symbol":        "ES.c.0",
			"open":          "4700.25",
			"high":          "4712.00",
			"low":           "4695.50",
			"close":         "4710.50",
			"volume":        json.Number("150000"),
			"vwap":          "",
		},
	}}

	out, errs := e.TransformBatch(in, models.KindOhlcv)
	if len(out) != 1 || errs[0] != nil {
		t.Fatalf("TransformBatch: out=%d errs=%v", len(out), errs)
	}
	f := out[0].Fields

	ts, ok := f["ts_event"].(time.Time)
	if !ok || !ts.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ts_event = %v", f["ts_event"])
	}
	if id, ok := f["instrument_id"].(uint32); !ok || id != 12345 {
		t.Errorf("instrument_id = %v", f["instrument_id"])
	}
	if open, ok := f["open"].(decimal.Decimal); !ok || !open.Equal(decimal.RequireFromString("4700.25")) {
		t.Errorf("open = %v", f["open"])
	}
	if vol, ok := f["volume"].(uint64); !ok || vol != 150000 {
		t.Errorf("volume = %v", f["volume"])
	}
	if _, present := f["vwap"]; present {
		t.Errorf("empty optional vwap should be absent, got %v", f["vwap"])
	}
}

func TestTransformDefaults(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	in := []models.RawRecord{{
		Kind: models.KindTrade,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("7"),
			"price":         "101.5",
			"size":          json.Number("10"),
		},
	}}

	out, errs := e.TransformBatch(in, models.KindTrade)
	if errs[0] != nil {
		t.Fatalf("TransformBatch: %v", errs[0])
	}
	f := out[0].Fields
	if side, _ := f["side"].(string); side != "N" {
		t.Errorf("side default = %v, want N", f["side"])
	}
	if seq, _ := f["sequence"].(uint64); seq != 0 {
		t.Errorf("sequence default = %v, want 0", f["sequence"])
	}
}

func TestTransformAliases(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	in := []models.RawRecord{{
		Kind: models.KindDefinition,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("42"),
			"symbol_raw":    "ESH4",
			"record_type":   json.Number("19"),
			"update_action": "a",
		},
	}}

	out, errs := e.TransformBatch(in, models.KindDefinition)
	if errs[0] != nil {
		t.Fatalf("TransformBatch: %v", errs[0])
	}
	f := out[0].Fields
	if got, _ := f["raw_symbol"].(string); got != "ESH4" {
		t.Errorf("symbol_raw alias: raw_symbol = %v", f["raw_symbol"])
	}
	if got, _ := f["rtype"].(int64); got != 19 {
		t.Errorf("record_type alias: rtype = %v", f["rtype"])
	}
	if got, _ := f["security_update_action"].(string); got != "A" {
		t.Errorf("update_action alias: security_update_action = %v", f["security_update_action"])
	}
}

func TestTransformPassThroughOnError(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	bad := models.RawRecord{
		Kind: models.KindOhlcv,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("1"),
			"open":          "not-a-price",
			"high":          "1",
			"low":           "1",
			"close":         "1",
		},
	}
	good := models.RawRecord{
		Kind: models.KindOhlcv,
		Fields: map[string]any{
			"ts_event":      json.Number("1704240000000000000"),
			"instrument_id": json.Number("2"),
			"open":          "2",
			"high":          "3",
			"low":           "1",
			"close":         "2.5",
		},
	}

	out, errs := e.TransformBatch([]models.RawRecord{bad, good}, models.KindOhlcv)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if errs[0] == nil {
		t.Error("expected error for bad record")
	}
	if errs[1] != nil {
		t.Errorf("good record errored: %v", errs[1])
	}
	// The failed record passes through untouched in its original position.
	if got, _ := out[0].Fields["open"].(string); got != "not-a-price" {
		t.Errorf("failed record was mutated: open = %v", out[0].Fields["open"])
	}
	if _, ok := out[1].Fields["open"].(decimal.Decimal); !ok {
		t.Errorf("good record not transformed: open = %T", out[1].Fields["open"])
	}
}

func TestTransformUnmappedFieldsRideAlong(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	// Statistics arriving with a bare 'price' field keep it through the
	// transform so the repair step can rename it to stat_value.
	in := []models.RawRecord{{
		Kind: models.KindStatistics,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("9"),
			"symbol":        "ES.c.0",
			"stat_type":     json.Number("3"),
			"price":         "4701.00",
		},
	}}

	out, errs := e.TransformBatch(in, models.KindStatistics)
	if errs[0] != nil {
		t.Fatalf("TransformBatch: %v", errs[0])
	}
	if _, ok := out[0].Fields["price"]; !ok {
		t.Error("unmapped price field was dropped")
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	e := defaultEngine(t)

	in := []models.RawRecord{{
		Kind: models.KindTrade,
		Fields: map[string]any{
			"ts_event":      json.Number("1704153600000000000"),
			"instrument_id": json.Number("7"),
			"price":         "101.5",
			"size":          json.Number("10"),
		},
	}}

	if _, errs := e.TransformBatch(in, models.KindTrade); errs[0] != nil {
		t.Fatalf("TransformBatch: %v", errs[0])
	}
	if _, ok := in[0].Fields["price"].(string); !ok {
		t.Errorf("input record mutated: price = %T", in[0].Fields["price"])
	}
	if _, present := in[0].Fields["side"]; present {
		t.Error("input record mutated: side default written to input")
	}
}
