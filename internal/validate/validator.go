package validate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketscan/internal/models"
)

// Error kinds attached to quarantined records.
const (
	ErrKindMismatch      = "kind_mismatch"
	ErrMissingField      = "missing_required_field"
	ErrBadFieldType      = "bad_field_type"
	ErrInvariantViolated = "invariant_violated"
)

// Quarantined is a rejected record plus why it was rejected. The loader
// never sees these rows.
type Quarantined struct {
	Record  models.RawRecord
	ErrKind string
	Message string
}

// Result partitions one validated batch. Exactly one of the typed slices is
// populated (the batch's kind); Quarantined collects the rest.
type Result struct {
	Ohlcv       []models.Ohlcv
	Trades      []models.Trade
	Tbbos       []models.Tbbo
	Statistics  []models.Statistic
	Definitions []models.Definition
	Quarantined []Quarantined
	Repaired    int
	FailedRepair int
}

// Good returns how many records survived validation.
func (r Result) Good() int {
	return len(r.Ohlcv) + len(r.Trades) + len(r.Tbbos) + len(r.Statistics) + len(r.Definitions)
}

// Validator performs structural validation with bounded auto-repair of
// recoverable defects.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var requiredFields = map[models.RecordKind][]string{
	models.KindOhlcv:      {"ts_event", "instrument_id", "symbol", "open", "high", "low", "close"},
	models.KindTrade:      {"ts_event", "instrument_id", "price", "size", "symbol"},
	models.KindTbbo:       {"ts_event", "instrument_id", "symbol"},
	models.KindStatistics: {"ts_event", "instrument_id", "symbol", "stat_type"},
	models.KindDefinition: {"ts_event", "instrument_id", "raw_symbol"},
}

// ValidateBatch checks every record against the target kind's required-field
// floor, repairing what it can, and builds typed records for the loaders.
// Records of a different kind than the batch target are quarantined.
func (v *Validator) ValidateBatch(records []models.RawRecord, kind models.RecordKind, job models.Job) Result {
	var res Result
	for _, rec := range records {
		if rec.Kind != kind {
			res.quarantine(rec, ErrKindMismatch, fmt.Sprintf("record kind %q in a %q batch", rec.Kind, kind))
			continue
		}

		rec = rec.Clone()
		if v.repair(&rec, job) {
			res.Repaired++
		}

		if field, ok := missingRequired(rec, kind); !ok {
			res.FailedRepair++
			res.quarantine(rec, ErrMissingField, fmt.Sprintf("missing required field %q", field))
			continue
		}

		if err := v.build(&res, rec); err != nil {
			res.FailedRepair++
			res.quarantine(rec, err.kind, err.msg)
		}
	}
	return res
}

func (r *Result) quarantine(rec models.RawRecord, kind, msg string) {
	r.Quarantined = append(r.Quarantined, Quarantined{Record: rec, ErrKind: kind, Message: msg})
}

// repair applies the bounded auto-repairs. Returns true when any field was
// touched.
func (v *Validator) repair(rec *models.RawRecord, job models.Job) bool {
	repaired := false

	if _, ok := stringField(rec.Fields, "symbol"); !ok {
		if len(job.Symbols) == 1 && job.Symbols[0] != models.AllSymbols {
			rec.Fields["symbol"] = job.Symbols[0]
			repaired = true
		} else if id, ok := uint32Field(rec.Fields, "instrument_id"); ok {
			rec.Fields["symbol"] = fmt.Sprintf("INSTRUMENT_%d", id)
			repaired = true
		}
	}

	if rec.Kind == models.KindStatistics {
		if _, ok := rec.Fields["stat_value"]; !ok {
			if price, ok := rec.Fields["price"]; ok {
				if d, err := toDecimal(price); err == nil {
					rec.Fields["stat_value"] = d
					delete(rec.Fields, "price")
					repaired = true
				}
			}
		}
	}

	if rec.Kind == models.KindDefinition {
		for field, def := range definitionDefaults {
			if _, ok := rec.Fields[field]; !ok {
				rec.Fields[field] = def
				repaired = true
			}
		}
	}

	return repaired
}

var definitionDefaults = map[string]any{
	"rtype":                  int64(19),
	"security_update_action": "A",
	"inst_attrib_value":      int64(0),
	"min_lot_size":           int64(0),
	"min_lot_size_block":     int64(0),
	"min_lot_size_round_lot": int64(0),
	"min_trade_vol":          uint32(0),
	"group":                  "",
	"asset":                  "",
}

func missingRequired(rec models.RawRecord, kind models.RecordKind) (string, bool) {
	for _, field := range requiredFields[kind] {
		if val, ok := rec.Fields[field]; !ok || val == nil {
			return field, false
		}
		if s, isStr := rec.Fields[field].(string); isStr && s == "" && field != "group" && field != "asset" {
			return field, false
		}
	}
	return "", true
}

type buildError struct {
	kind string
	msg  string
}

func (e *buildError) Error() string { return e.msg }

func badType(field string) *buildError {
	return &buildError{kind: ErrBadFieldType, msg: fmt.Sprintf("field %q has wrong type after transformation", field)}
}

func (v *Validator) build(res *Result, rec models.RawRecord) *buildError {
	switch rec.Kind {
	case models.KindOhlcv:
		return res.buildOhlcv(rec)
	case models.KindTrade:
		return res.buildTrade(rec)
	case models.KindTbbo:
		return res.buildTbbo(rec)
	case models.KindStatistics:
		return res.buildStatistic(rec)
	case models.KindDefinition:
		return res.buildDefinition(rec)
	}
	return &buildError{kind: ErrKindMismatch, msg: fmt.Sprintf("unknown record kind %q", rec.Kind)}
}

func buildHeader(f map[string]any) (models.Header, *buildError) {
	var h models.Header
	ts, ok := timeField(f, "ts_event")
	if !ok {
		return h, badType("ts_event")
	}
	h.TsEvent = ts
	if recv, ok := timeField(f, "ts_recv"); ok {
		h.TsRecv = recv
	}
	id, ok := uint32Field(f, "instrument_id")
	if !ok {
		return h, badType("instrument_id")
	}
	h.InstrumentID = id
	if pub, ok := uint16Field(f, "publisher_id"); ok {
		h.PublisherID = pub
	}
	if sym, ok := stringField(f, "symbol"); ok {
		if len(sym) > 64 {
			sym = sym[:64]
		}
		h.Symbol = sym
	}
	return h, nil
}

func (r *Result) buildOhlcv(rec models.RawRecord) *buildError {
	h, berr := buildHeader(rec.Fields)
	if berr != nil {
		return berr
	}
	row := models.Ohlcv{Header: h}

	for _, pf := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &row.Open}, {"high", &row.High}, {"low", &row.Low}, {"close", &row.Close},
	} {
		d, ok := decimalField(rec.Fields, pf.name)
		if !ok {
			return badType(pf.name)
		}
		*pf.dst = d
	}

	if vol, ok := uint64Field(rec.Fields, "volume"); ok {
		row.Volume = vol
	}
	if tc, ok := uint64Field(rec.Fields, "trade_count"); ok {
		row.TradeCount = &tc
	}
	if vwap, ok := decimalField(rec.Fields, "vwap"); ok {
		row.Vwap = &vwap
	}
	if g, ok := stringField(rec.Fields, "granularity"); ok {
		gran, err := models.ParseGranularity(g)
		if err != nil {
			return badType("granularity")
		}
		row.Granularity = gran
	}
	if rt, ok := int64Field(rec.Fields, "rtype"); ok {
		row.RType = int16(rt)
	} else {
		row.RType = row.Granularity.RType()
	}

	minOC := decimal.Min(row.Open, row.Close)
	maxOC := decimal.Max(row.Open, row.Close)
	if row.Low.GreaterThan(minOC) || row.High.LessThan(maxOC) {
		return &buildError{kind: ErrInvariantViolated,
			msg: fmt.Sprintf("ohlcv price relation violated: low=%s open=%s close=%s high=%s", row.Low, row.Open, row.Close, row.High)}
	}
	if row.Vwap != nil && (row.Vwap.LessThan(row.Low) || row.Vwap.GreaterThan(row.High)) {
		return &buildError{kind: ErrInvariantViolated,
			msg: fmt.Sprintf("ohlcv vwap %s outside [%s, %s]", row.Vwap, row.Low, row.High)}
	}

	r.Ohlcv = append(r.Ohlcv, row)
	return nil
}

func (r *Result) buildTrade(rec models.RawRecord) *buildError {
	h, berr := buildHeader(rec.Fields)
	if berr != nil {
		return berr
	}
	row := models.Trade{Header: h, Side: models.SideNone}

	price, ok := decimalField(rec.Fields, "price")
	if !ok {
		return badType("price")
	}
	row.Price = price

	size, ok := uint32Field(rec.Fields, "size")
	if !ok {
		return badType("size")
	}
	row.Size = size

	if s, ok := stringField(rec.Fields, "side"); ok {
		side := models.Side(s)
		if !side.Valid() {
			return badType("side")
		}
		row.Side = side
	}
	if a, ok := stringField(rec.Fields, "action"); ok {
		row.Action = a
	}
	if seq, ok := uint64Field(rec.Fields, "sequence"); ok {
		row.Sequence = seq
	}

	r.Trades = append(r.Trades, row)
	return nil
}

func (r *Result) buildTbbo(rec models.RawRecord) *buildError {
	h, berr := buildHeader(rec.Fields)
	if berr != nil {
		return berr
	}
	row := models.Tbbo{Header: h}

	if px, ok := decimalField(rec.Fields, "bid_px"); ok {
		row.BidPx = &px
	}
	if px, ok := decimalField(rec.Fields, "ask_px"); ok {
		row.AskPx = &px
	}
	if sz, ok := uint32Field(rec.Fields, "bid_sz"); ok {
		row.BidSz = &sz
	}
	if sz, ok := uint32Field(rec.Fields, "ask_sz"); ok {
		row.AskSz = &sz
	}
	if ct, ok := uint32Field(rec.Fields, "bid_ct"); ok {
		row.BidCt = &ct
	}
	if ct, ok := uint32Field(rec.Fields, "ask_ct"); ok {
		row.AskCt = &ct
	}
	if seq, ok := uint64Field(rec.Fields, "sequence"); ok {
		row.Sequence = seq
	}

	r.Tbbos = append(r.Tbbos, row)
	return nil
}

func (r *Result) buildStatistic(rec models.RawRecord) *buildError {
	h, berr := buildHeader(rec.Fields)
	if berr != nil {
		return berr
	}
	row := models.Statistic{Header: h}

	st, ok := int64Field(rec.Fields, "stat_type")
	if !ok {
		return badType("stat_type")
	}
	row.StatType = models.StatType(st)

	if sv, ok := decimalField(rec.Fields, "stat_value"); ok {
		row.StatValue = &sv
	}
	if oi, ok := uint64Field(rec.Fields, "open_interest"); ok {
		row.OpenInterest = &oi
	}
	if sp, ok := decimalField(rec.Fields, "settlement_price"); ok {
		row.SettlementPrice = &sp
	}
	if hl, ok := decimalField(rec.Fields, "high_limit"); ok {
		row.HighLimit = &hl
	}
	if ll, ok := decimalField(rec.Fields, "low_limit"); ok {
		row.LowLimit = &ll
	}
	if seq, ok := uint64Field(rec.Fields, "sequence"); ok {
		row.Sequence = seq
	}
	if fl, ok := uint16Field(rec.Fields, "flags"); ok {
		row.Flags = fl
	}

	r.Statistics = append(r.Statistics, row)
	return nil
}

func (r *Result) buildDefinition(rec models.RawRecord) *buildError {
	h, berr := buildHeader(rec.Fields)
	if berr != nil {
		return berr
	}
	row := models.Definition{Header: h}

	raw, ok := stringField(rec.Fields, "raw_symbol")
	if !ok {
		return badType("raw_symbol")
	}
	row.RawSymbol = raw

	if rt, ok := int64Field(rec.Fields, "rtype"); ok {
		row.RType = int16(rt)
	}
	if ua, ok := stringField(rec.Fields, "security_update_action"); ok {
		row.SecurityUpdateAction = ua
	}
	if ic, ok := stringField(rec.Fields, "instrument_class"); ok {
		row.InstrumentClass = ic
	}
	if iv, ok := int64Field(rec.Fields, "inst_attrib_value"); ok {
		row.InstAttribValue = int32(iv)
	}
	if n, ok := int64Field(rec.Fields, "min_lot_size"); ok {
		row.MinLotSize = int32(n)
	}
	if n, ok := int64Field(rec.Fields, "min_lot_size_block"); ok {
		row.MinLotSizeBlock = int32(n)
	}
	if n, ok := int64Field(rec.Fields, "min_lot_size_round_lot"); ok {
		row.MinLotSizeRoundLot = int32(n)
	}
	if n, ok := uint32Field(rec.Fields, "min_trade_vol"); ok {
		row.MinTradeVol = n
	}
	if g, ok := stringField(rec.Fields, "group"); ok {
		row.Group = g
	}
	if a, ok := stringField(rec.Fields, "asset"); ok {
		row.Asset = a
	}
	if e, ok := stringField(rec.Fields, "exchange"); ok {
		row.Exchange = e
	}
	if c, ok := stringField(rec.Fields, "currency"); ok {
		row.Currency = c
	}
	if c, ok := stringField(rec.Fields, "settl_currency"); ok {
		row.SettlCurrency = c
	}
	if s, ok := stringField(rec.Fields, "secsubtype"); ok {
		row.SecSubType = s
	}
	if s, ok := stringField(rec.Fields, "cfi"); ok {
		row.Cfi = s
	}
	if s, ok := stringField(rec.Fields, "security_type"); ok {
		row.SecurityType = s
	}
	if s, ok := stringField(rec.Fields, "unit_of_measure"); ok {
		row.UnitOfMeasure = s
	}
	if s, ok := stringField(rec.Fields, "underlying"); ok {
		row.Underlying = s
	}
	if s, ok := stringField(rec.Fields, "match_algorithm"); ok {
		row.MatchAlgorithm = s
	}
	if s, ok := stringField(rec.Fields, "user_defined_instrument"); ok {
		row.UserDefinedInstrument = s
	}
	if s, ok := stringField(rec.Fields, "leg_raw_symbol"); ok {
		row.LegRawSymbol = s
	}
	if s, ok := stringField(rec.Fields, "leg_side"); ok {
		row.LegSide = s
	}
	if s, ok := stringField(rec.Fields, "strike_price_currency"); ok {
		row.StrikePriceCurrency = s
	}

	if d, ok := decimalField(rec.Fields, "min_price_increment"); ok {
		row.MinPriceIncrement = &d
	}
	if d, ok := decimalField(rec.Fields, "display_factor"); ok {
		row.DisplayFactor = &d
	}
	if d, ok := decimalField(rec.Fields, "high_limit_price"); ok {
		row.HighLimitPrice = &d
	}
	if d, ok := decimalField(rec.Fields, "low_limit_price"); ok {
		row.LowLimitPrice = &d
	}
	if d, ok := decimalField(rec.Fields, "max_price_variation"); ok {
		row.MaxPriceVariation = &d
	}
	if d, ok := decimalField(rec.Fields, "unit_of_measure_qty"); ok {
		row.UnitOfMeasureQty = &d
	}
	if d, ok := decimalField(rec.Fields, "min_price_increment_amount"); ok {
		row.MinPriceIncrementAmt = &d
	}
	if d, ok := decimalField(rec.Fields, "price_ratio"); ok {
		row.PriceRatio = &d
	}
	if d, ok := decimalField(rec.Fields, "strike_price"); ok {
		row.StrikePrice = &d
	}

	if ts, ok := timeField(rec.Fields, "expiration"); ok {
		row.Expiration = &ts
	}
	if ts, ok := timeField(rec.Fields, "activation"); ok {
		row.Activation = &ts
	}

	if n, ok := uint32Field(rec.Fields, "underlying_id"); ok {
		row.UnderlyingID = &n
	}
	if n, ok := uint64Field(rec.Fields, "raw_instrument_id"); ok {
		row.RawInstrumentID = &n
	}
	if n, ok := int64Field(rec.Fields, "market_depth_implied"); ok {
		v := int32(n)
		row.MarketDepthImplied = &v
	}
	if n, ok := int64Field(rec.Fields, "market_depth"); ok {
		v := int32(n)
		row.MarketDepth = &v
	}
	if n, ok := uint32Field(rec.Fields, "market_segment_id"); ok {
		row.MarketSegmentID = &n
	}
	if n, ok := uint32Field(rec.Fields, "max_trade_vol"); ok {
		row.MaxTradeVol = &n
	}
	if n, ok := int64Field(rec.Fields, "contract_multiplier"); ok {
		v := int32(n)
		row.ContractMultiplier = &v
	}
	if n, ok := int64Field(rec.Fields, "maturity_year"); ok {
		v := uint16(n)
		row.MaturityYear = &v
	}
	if n, ok := int64Field(rec.Fields, "maturity_month"); ok {
		v := uint8(n)
		row.MaturityMonth = &v
	}
	if n, ok := int64Field(rec.Fields, "maturity_day"); ok {
		v := uint8(n)
		row.MaturityDay = &v
	}
	if n, ok := int64Field(rec.Fields, "leg_count"); ok {
		v := uint8(n)
		row.LegCount = &v
	}
	if n, ok := int64Field(rec.Fields, "leg_index"); ok {
		v := uint8(n)
		row.LegIndex = &v
	}
	if n, ok := uint32Field(rec.Fields, "leg_instrument_id"); ok {
		row.LegInstrumentID = &n
	}
	if n, ok := int64Field(rec.Fields, "leg_ratio_qty_numerator"); ok {
		v := int32(n)
		row.LegRatioQtyNumerator = &v
	}
	if n, ok := int64Field(rec.Fields, "leg_ratio_qty_denominator"); ok {
		v := int32(n)
		row.LegRatioQtyDenominator = &v
	}
	if n, ok := uint32Field(rec.Fields, "leg_underlying_id"); ok {
		row.LegUnderlyingID = &n
	}

	r.Definitions = append(r.Definitions, row)
	return nil
}

// --- typed field accessors ---
//
// Transformed records carry well-typed values, but transform failures pass
// the original record through, so every accessor tolerates near-miss types
// instead of panicking.

func stringField(f map[string]any, name string) (string, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func timeField(f map[string]any, name string) (time.Time, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return time.Time{}, false
	}
	ts, ok := v.(time.Time)
	if !ok || ts.IsZero() {
		return time.Time{}, false
	}
	return ts, true
}

func decimalField(f map[string]any, name string) (decimal.Decimal, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return decimal.Decimal{}, false
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case uint64:
		return decimal.NewFromUint64(t), nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot convert %T to decimal", v)
}

func int64Field(f map[string]any, name string) (int64, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	}
	return 0, false
}

func uint64Field(f map[string]any, name string) (uint64, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case uint64:
		return t, true
	case uint32:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	}
	return 0, false
}

func uint32Field(f map[string]any, name string) (uint32, bool) {
	n, ok := uint64Field(f, name)
	if !ok || n > 1<<32-1 {
		return 0, false
	}
	return uint32(n), true
}

func uint16Field(f map[string]any, name string) (uint16, bool) {
	n, ok := uint64Field(f, name)
	if !ok || n > 1<<16-1 {
		return 0, false
	}
	return uint16(n), true
}
