package models

import "fmt"

// RecordKind tags the five record variants flowing through the pipeline.
type RecordKind string

const (
	KindOhlcv      RecordKind = "ohlcv"
	KindTrade      RecordKind = "trade"
	KindTbbo       RecordKind = "tbbo"
	KindStatistics RecordKind = "statistics"
	KindDefinition RecordKind = "definition"
)

func (k RecordKind) Valid() bool {
	switch k {
	case KindOhlcv, KindTrade, KindTbbo, KindStatistics, KindDefinition:
		return true
	}
	return false
}

// Granularity is the bucket width of an OHLCV aggregate.
type Granularity string

const (
	Granularity1S Granularity = "1s"
	Granularity1M Granularity = "1m"
	Granularity1H Granularity = "1h"
	Granularity1D Granularity = "1d"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Granularity1S, Granularity1M, Granularity1H, Granularity1D:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown ohlcv granularity %q", s)
}

// RType returns the vendor record-type code for an OHLCV aggregate of this
// granularity.
func (g Granularity) RType() int16 {
	switch g {
	case Granularity1S:
		return 32
	case Granularity1M:
		return 33
	case Granularity1H:
		return 34
	case Granularity1D:
		return 35
	}
	return 0
}

// Side of the aggressing order in a trade. Values follow the vendor encoding.
type Side string

const (
	SideBid  Side = "B"
	SideAsk  Side = "S"
	SideNone Side = "N"
)

func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk || s == SideNone
}

// StatType identifies what a statistics record carries. Numeric values follow
// the vendor's statistics feed.
type StatType int16

const (
	StatOpeningPrice      StatType = 1
	StatIndicativePrice   StatType = 2
	StatSettlementPrice   StatType = 3
	StatTradingSessionLow StatType = 4
	StatTradingSessionHi  StatType = 5
	StatClearedVolume     StatType = 6
	StatLowestOffer       StatType = 7
	StatHighestBid        StatType = 8
	StatOpenInterest      StatType = 9
	StatFixingPrice       StatType = 10
	StatClosePrice        StatType = 11
	StatNetChange         StatType = 12
	StatVwap              StatType = 13
)

// SymbolType is the symbology of the job's input symbols.
type SymbolType string

const (
	SymbolContinuous SymbolType = "continuous"
	SymbolParent     SymbolType = "parent"
	SymbolNative     SymbolType = "native"
)

func (t SymbolType) Valid() bool {
	return t == SymbolContinuous || t == SymbolParent || t == SymbolNative
}

// AllSymbols is the reserved literal accepted with any symbol type.
const AllSymbols = "ALL_SYMBOLS"
