package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is a vendor-shaped record as the adapter yields it: a kind tag
// plus loosely typed fields. The transform engine coerces Fields into
// canonical names and types; the validator turns the result into one of the
// typed record structs below.
type RawRecord struct {
	Kind   RecordKind
	Fields map[string]any
}

// Clone returns a shallow copy with an independent field map, so pipeline
// stages never mutate their input.
func (r RawRecord) Clone() RawRecord {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return RawRecord{Kind: r.Kind, Fields: fields}
}

// Header carries the fields common to every record kind.
type Header struct {
	TsEvent      time.Time `json:"ts_event"`
	TsRecv       time.Time `json:"ts_recv,omitempty"`
	InstrumentID uint32    `json:"instrument_id"`
	PublisherID  uint16    `json:"publisher_id,omitempty"`
	Symbol       string    `json:"symbol"`
}

// Ohlcv represents a row of the 'daily_ohlcv_data' table.
type Ohlcv struct {
	Header
	RType       int16            `json:"rtype,omitempty"`
	Open        decimal.Decimal  `json:"open"`
	High        decimal.Decimal  `json:"high"`
	Low         decimal.Decimal  `json:"low"`
	Close       decimal.Decimal  `json:"close"`
	Volume      uint64           `json:"volume"`
	TradeCount  *uint64          `json:"trade_count,omitempty"`
	Vwap        *decimal.Decimal `json:"vwap,omitempty"`
	Granularity Granularity      `json:"granularity"`
	DataSource  string           `json:"data_source,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitempty"`
}

// Trade represents a row of the 'trades_data' table.
type Trade struct {
	Header
	Price      decimal.Decimal `json:"price"`
	Size       uint32          `json:"size"`
	Side       Side            `json:"side"`
	Action     string          `json:"action,omitempty"`
	Sequence   uint64          `json:"sequence"`
	DataSource string          `json:"data_source,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

// Tbbo represents a row of the 'tbbo_data' table. Either side of the book
// may be absent.
type Tbbo struct {
	Header
	BidPx      *decimal.Decimal `json:"bid_px,omitempty"`
	AskPx      *decimal.Decimal `json:"ask_px,omitempty"`
	BidSz      *uint32          `json:"bid_sz,omitempty"`
	AskSz      *uint32          `json:"ask_sz,omitempty"`
	BidCt      *uint32          `json:"bid_ct,omitempty"`
	AskCt      *uint32          `json:"ask_ct,omitempty"`
	Sequence   uint64           `json:"sequence"`
	IsCrossed  bool             `json:"is_crossed"`
	DataSource string           `json:"data_source,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at,omitempty"`
}

// Statistic represents a row of the 'statistics_data' table.
type Statistic struct {
	Header
	StatType        StatType         `json:"stat_type"`
	StatValue       *decimal.Decimal `json:"stat_value,omitempty"`
	OpenInterest    *uint64          `json:"open_interest,omitempty"`
	SettlementPrice *decimal.Decimal `json:"settlement_price,omitempty"`
	HighLimit       *decimal.Decimal `json:"high_limit,omitempty"`
	LowLimit        *decimal.Decimal `json:"low_limit,omitempty"`
	Sequence        uint64           `json:"sequence"`
	Flags           uint16           `json:"flags,omitempty"`
	DataSource      string           `json:"data_source,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at,omitempty"`
}

// Definition represents a row of the 'definitions_data' table: reference
// data for an instrument.
type Definition struct {
	Header
	RawSymbol             string           `json:"raw_symbol"`
	RType                 int16            `json:"rtype"`
	SecurityUpdateAction  string           `json:"security_update_action"`
	InstrumentClass       string           `json:"instrument_class,omitempty"`
	MinPriceIncrement     *decimal.Decimal `json:"min_price_increment,omitempty"`
	DisplayFactor         *decimal.Decimal `json:"display_factor,omitempty"`
	Expiration            *time.Time       `json:"expiration,omitempty"`
	Activation            *time.Time       `json:"activation,omitempty"`
	HighLimitPrice        *decimal.Decimal `json:"high_limit_price,omitempty"`
	LowLimitPrice         *decimal.Decimal `json:"low_limit_price,omitempty"`
	MaxPriceVariation     *decimal.Decimal `json:"max_price_variation,omitempty"`
	UnitOfMeasureQty      *decimal.Decimal `json:"unit_of_measure_qty,omitempty"`
	MinPriceIncrementAmt  *decimal.Decimal `json:"min_price_increment_amount,omitempty"`
	PriceRatio            *decimal.Decimal `json:"price_ratio,omitempty"`
	InstAttribValue       int32            `json:"inst_attrib_value"`
	UnderlyingID          *uint32          `json:"underlying_id,omitempty"`
	RawInstrumentID       *uint64          `json:"raw_instrument_id,omitempty"`
	MarketDepthImplied    *int32           `json:"market_depth_implied,omitempty"`
	MarketDepth           *int32           `json:"market_depth,omitempty"`
	MarketSegmentID       *uint32          `json:"market_segment_id,omitempty"`
	MaxTradeVol           *uint32          `json:"max_trade_vol,omitempty"`
	MinLotSize            int32            `json:"min_lot_size"`
	MinLotSizeBlock       int32            `json:"min_lot_size_block"`
	MinLotSizeRoundLot    int32            `json:"min_lot_size_round_lot"`
	MinTradeVol           uint32           `json:"min_trade_vol"`
	ContractMultiplier    *int32           `json:"contract_multiplier,omitempty"`
	DecayQuantity         *int32           `json:"decay_quantity,omitempty"`
	OriginalContractSize  *int32           `json:"original_contract_size,omitempty"`
	ApplID                *int16           `json:"appl_id,omitempty"`
	MaturityYear          *uint16          `json:"maturity_year,omitempty"`
	MaturityMonth         *uint8           `json:"maturity_month,omitempty"`
	MaturityDay           *uint8           `json:"maturity_day,omitempty"`
	MaturityWeek          *uint8           `json:"maturity_week,omitempty"`
	Currency              string           `json:"currency,omitempty"`
	SettlCurrency         string           `json:"settl_currency,omitempty"`
	SecSubType            string           `json:"secsubtype,omitempty"`
	Group                 string           `json:"group"`
	Exchange              string           `json:"exchange,omitempty"`
	Asset                 string           `json:"asset"`
	Cfi                   string           `json:"cfi,omitempty"`
	SecurityType          string           `json:"security_type,omitempty"`
	UnitOfMeasure         string           `json:"unit_of_measure,omitempty"`
	Underlying            string           `json:"underlying,omitempty"`
	StrikePriceCurrency   string           `json:"strike_price_currency,omitempty"`
	StrikePrice           *decimal.Decimal `json:"strike_price,omitempty"`
	MatchAlgorithm        string           `json:"match_algorithm,omitempty"`
	MainFraction          *uint8           `json:"main_fraction,omitempty"`
	PriceDisplayFormat    *uint8           `json:"price_display_format,omitempty"`
	SubFraction           *uint8           `json:"sub_fraction,omitempty"`
	UnderlyingProduct     *uint8           `json:"underlying_product,omitempty"`
	TickRule              *uint8           `json:"tick_rule,omitempty"`
	LegCount              *uint8           `json:"leg_count,omitempty"`
	LegIndex              *uint8           `json:"leg_index,omitempty"`
	LegInstrumentID       *uint32          `json:"leg_instrument_id,omitempty"`
	LegRawSymbol          string           `json:"leg_raw_symbol,omitempty"`
	LegSide               string           `json:"leg_side,omitempty"`
	LegRatioQtyNumerator  *int32           `json:"leg_ratio_qty_numerator,omitempty"`
	LegRatioQtyDenominator *int32          `json:"leg_ratio_qty_denominator,omitempty"`
	LegUnderlyingID       *uint32          `json:"leg_underlying_id,omitempty"`
	UserDefinedInstrument string           `json:"user_defined_instrument,omitempty"`
	ContractMultiplierUnit *int8           `json:"contract_multiplier_unit,omitempty"`
	FlowScheduleType      *int8            `json:"flow_schedule_type,omitempty"`
	TickSizeDenominator   *uint8           `json:"tick_size_denominator,omitempty"`
	DataSource            string           `json:"data_source,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at,omitempty"`
}
