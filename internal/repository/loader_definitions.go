package repository

import (
	"context"
	"time"

	"marketscan/internal/models"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func u8Ptr(v *uint8) *int16 {
	if v == nil {
		return nil
	}
	n := int16(*v)
	return &n
}

func i8Ptr(v *int8) *int16 {
	if v == nil {
		return nil
	}
	n := int16(*v)
	return &n
}

func u16Ptr(v *uint16) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

// defArrays holds one column array per definitions column. The definition
// record is wide enough that parallel local slices stop being readable.
type defArrays struct {
	instrumentID         []int64
	tsEvent              []time.Time
	tsRecv               []*time.Time
	publisherID          []int32
	symbol               []string
	rawSymbol            []string
	rtype                []int16
	updateAction         []string
	instrumentClass      []*string
	minPriceIncrement    []*string
	displayFactor        []*string
	expiration           []*time.Time
	activation           []*time.Time
	highLimitPrice       []*string
	lowLimitPrice        []*string
	maxPriceVariation    []*string
	unitOfMeasureQty     []*string
	minPriceIncrementAmt []*string
	priceRatio           []*string
	instAttribValue      []int32
	underlyingID         []*int64
	rawInstrumentID      []*int64
	marketDepthImplied   []*int32
	marketDepth          []*int32
	marketSegmentID      []*int64
	maxTradeVol          []*int64
	minLotSize           []int32
	minLotSizeBlock      []int32
	minLotSizeRoundLot   []int32
	minTradeVol          []int64
	contractMultiplier   []*int32
	decayQuantity        []*int32
	originalContractSize []*int32
	applID               []*int16
	maturityYear         []*int32
	maturityMonth        []*int16
	maturityDay          []*int16
	maturityWeek         []*int16
	currency             []*string
	settlCurrency        []*string
	secSubType           []*string
	group                []string
	exchange             []*string
	asset                []string
	cfi                  []*string
	securityType         []*string
	unitOfMeasure        []*string
	underlying           []*string
	strikePriceCurrency  []*string
	strikePrice          []*string
	matchAlgorithm       []*string
	mainFraction         []*int16
	priceDisplayFormat   []*int16
	subFraction          []*int16
	underlyingProduct    []*int16
	tickRule             []*int16
	legCount             []*int16
	legIndex             []*int16
	legInstrumentID      []*int64
	legRawSymbol         []*string
	legSide              []*string
	legRatioNum          []*int32
	legRatioDen          []*int32
	legUnderlyingID      []*int64
	userDefined          []*string
	contractMultUnit     []*int16
	flowScheduleType     []*int16
	tickSizeDenominator  []*int16
}

func buildDefArrays(chunk []models.Definition) *defArrays {
	a := &defArrays{}
	for _, rec := range chunk {
		a.instrumentID = append(a.instrumentID, int64(rec.InstrumentID))
		a.tsEvent = append(a.tsEvent, rec.TsEvent)
		a.tsRecv = append(a.tsRecv, timePtr(rec.TsRecv))
		a.publisherID = append(a.publisherID, int32(rec.PublisherID))
		a.symbol = append(a.symbol, rec.Symbol)
		a.rawSymbol = append(a.rawSymbol, rec.RawSymbol)
		a.rtype = append(a.rtype, rec.RType)
		a.updateAction = append(a.updateAction, rec.SecurityUpdateAction)
		a.instrumentClass = append(a.instrumentClass, strPtr(rec.InstrumentClass))
		a.minPriceIncrement = append(a.minPriceIncrement, decPtrText(rec.MinPriceIncrement))
		a.displayFactor = append(a.displayFactor, decPtrText(rec.DisplayFactor))
		a.expiration = append(a.expiration, rec.Expiration)
		a.activation = append(a.activation, rec.Activation)
		a.highLimitPrice = append(a.highLimitPrice, decPtrText(rec.HighLimitPrice))
		a.lowLimitPrice = append(a.lowLimitPrice, decPtrText(rec.LowLimitPrice))
		a.maxPriceVariation = append(a.maxPriceVariation, decPtrText(rec.MaxPriceVariation))
		a.unitOfMeasureQty = append(a.unitOfMeasureQty, decPtrText(rec.UnitOfMeasureQty))
		a.minPriceIncrementAmt = append(a.minPriceIncrementAmt, decPtrText(rec.MinPriceIncrementAmt))
		a.priceRatio = append(a.priceRatio, decPtrText(rec.PriceRatio))
		a.instAttribValue = append(a.instAttribValue, rec.InstAttribValue)
		a.underlyingID = append(a.underlyingID, u32Ptr(rec.UnderlyingID))
		a.rawInstrumentID = append(a.rawInstrumentID, u64Ptr(rec.RawInstrumentID))
		a.marketDepthImplied = append(a.marketDepthImplied, rec.MarketDepthImplied)
		a.marketDepth = append(a.marketDepth, rec.MarketDepth)
		a.marketSegmentID = append(a.marketSegmentID, u32Ptr(rec.MarketSegmentID))
		a.maxTradeVol = append(a.maxTradeVol, u32Ptr(rec.MaxTradeVol))
		a.minLotSize = append(a.minLotSize, rec.MinLotSize)
		a.minLotSizeBlock = append(a.minLotSizeBlock, rec.MinLotSizeBlock)
		a.minLotSizeRoundLot = append(a.minLotSizeRoundLot, rec.MinLotSizeRoundLot)
		a.minTradeVol = append(a.minTradeVol, int64(rec.MinTradeVol))
		a.contractMultiplier = append(a.contractMultiplier, rec.ContractMultiplier)
		a.decayQuantity = append(a.decayQuantity, rec.DecayQuantity)
		a.originalContractSize = append(a.originalContractSize, rec.OriginalContractSize)
		a.applID = append(a.applID, rec.ApplID)
		a.maturityYear = append(a.maturityYear, u16Ptr(rec.MaturityYear))
		a.maturityMonth = append(a.maturityMonth, u8Ptr(rec.MaturityMonth))
		a.maturityDay = append(a.maturityDay, u8Ptr(rec.MaturityDay))
		a.maturityWeek = append(a.maturityWeek, u8Ptr(rec.MaturityWeek))
		a.currency = append(a.currency, strPtr(rec.Currency))
		a.settlCurrency = append(a.settlCurrency, strPtr(rec.SettlCurrency))
		a.secSubType = append(a.secSubType, strPtr(rec.SecSubType))
		a.group = append(a.group, rec.Group)
		a.exchange = append(a.exchange, strPtr(rec.Exchange))
		a.asset = append(a.asset, rec.Asset)
		a.cfi = append(a.cfi, strPtr(rec.Cfi))
		a.securityType = append(a.securityType, strPtr(rec.SecurityType))
		a.unitOfMeasure = append(a.unitOfMeasure, strPtr(rec.UnitOfMeasure))
		a.underlying = append(a.underlying, strPtr(rec.Underlying))
		a.strikePriceCurrency = append(a.strikePriceCurrency, strPtr(rec.StrikePriceCurrency))
		a.strikePrice = append(a.strikePrice, decPtrText(rec.StrikePrice))
		a.matchAlgorithm = append(a.matchAlgorithm, strPtr(rec.MatchAlgorithm))
		a.mainFraction = append(a.mainFraction, u8Ptr(rec.MainFraction))
		a.priceDisplayFormat = append(a.priceDisplayFormat, u8Ptr(rec.PriceDisplayFormat))
		a.subFraction = append(a.subFraction, u8Ptr(rec.SubFraction))
		a.underlyingProduct = append(a.underlyingProduct, u8Ptr(rec.UnderlyingProduct))
		a.tickRule = append(a.tickRule, u8Ptr(rec.TickRule))
		a.legCount = append(a.legCount, u8Ptr(rec.LegCount))
		a.legIndex = append(a.legIndex, u8Ptr(rec.LegIndex))
		a.legInstrumentID = append(a.legInstrumentID, u32Ptr(rec.LegInstrumentID))
		a.legRawSymbol = append(a.legRawSymbol, strPtr(rec.LegRawSymbol))
		a.legSide = append(a.legSide, strPtr(rec.LegSide))
		a.legRatioNum = append(a.legRatioNum, rec.LegRatioQtyNumerator)
		a.legRatioDen = append(a.legRatioDen, rec.LegRatioQtyDenominator)
		a.legUnderlyingID = append(a.legUnderlyingID, u32Ptr(rec.LegUnderlyingID))
		a.userDefined = append(a.userDefined, strPtr(rec.UserDefinedInstrument))
		a.contractMultUnit = append(a.contractMultUnit, i8Ptr(rec.ContractMultiplierUnit))
		a.flowScheduleType = append(a.flowScheduleType, i8Ptr(rec.FlowScheduleType))
		a.tickSizeDenominator = append(a.tickSizeDenominator, u8Ptr(rec.TickSizeDenominator))
	}
	return a
}

// InsertDefinitions upserts instrument reference data on (instrument_id,
// ts_event). A later load for the same key overwrites the whole row; reference
// data is corrected at the vendor and re-pulled, never merged.
func (r *Repository) InsertDefinitions(ctx context.Context, records []models.Definition, dataSource string) (InsertResult, error) {
	var res InsertResult
	if len(records) == 0 {
		return res, nil
	}

	ts := make([]time.Time, len(records))
	for i, rec := range records {
		ts[i] = rec.TsEvent
	}
	minTs, maxTs := timeBounds(ts)
	if err := r.EnsureDayPartitions(ctx, TableDefinitions, minTs, maxTs); err != nil {
		return res, err
	}

	for _, sb := range r.subBatches(len(records)) {
		chunk := records[sb[0]:sb[1]]
		a := buildDefArrays(chunk)

		ok, err := r.execSubBatch(ctx, TableDefinitions, len(chunk), `
			INSERT INTO definitions_data (
				instrument_id, ts_event, ts_recv, publisher_id, symbol, raw_symbol,
				rtype, security_update_action, instrument_class,
				min_price_increment, display_factor, expiration, activation,
				high_limit_price, low_limit_price, max_price_variation,
				unit_of_measure_qty, min_price_increment_amount, price_ratio,
				inst_attrib_value, underlying_id, raw_instrument_id,
				market_depth_implied, market_depth, market_segment_id, max_trade_vol,
				min_lot_size, min_lot_size_block, min_lot_size_round_lot, min_trade_vol,
				contract_multiplier, decay_quantity, original_contract_size, appl_id,
				maturity_year, maturity_month, maturity_day, maturity_week,
				currency, settl_currency, secsubtype, "group", exchange, asset,
				cfi, security_type, unit_of_measure, underlying,
				strike_price_currency, strike_price, match_algorithm,
				main_fraction, price_display_format, sub_fraction, underlying_product, tick_rule,
				leg_count, leg_index, leg_instrument_id, leg_raw_symbol, leg_side,
				leg_ratio_qty_numerator, leg_ratio_qty_denominator, leg_underlying_id,
				user_defined_instrument, contract_multiplier_unit, flow_schedule_type,
				tick_size_denominator, data_source
			)
			SELECT DISTINCT ON (u.instrument_id, u.ts_event)
				u.*, $69
			FROM UNNEST(
				$1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::int[], $5::text[], $6::text[],
				$7::smallint[], $8::text[], $9::text[],
				$10::numeric[], $11::numeric[], $12::timestamptz[], $13::timestamptz[],
				$14::numeric[], $15::numeric[], $16::numeric[],
				$17::numeric[], $18::numeric[], $19::numeric[],
				$20::int[], $21::bigint[], $22::bigint[],
				$23::int[], $24::int[], $25::bigint[], $26::bigint[],
				$27::int[], $28::int[], $29::int[], $30::bigint[],
				$31::int[], $32::int[], $33::int[], $34::smallint[],
				$35::int[], $36::smallint[], $37::smallint[], $38::smallint[],
				$39::text[], $40::text[], $41::text[], $42::text[], $43::text[], $44::text[],
				$45::text[], $46::text[], $47::text[], $48::text[],
				$49::text[], $50::numeric[], $51::text[],
				$52::smallint[], $53::smallint[], $54::smallint[], $55::smallint[], $56::smallint[],
				$57::smallint[], $58::smallint[], $59::bigint[], $60::text[], $61::text[],
				$62::int[], $63::int[], $64::bigint[],
				$65::text[], $66::smallint[], $67::smallint[],
				$68::smallint[]
			) AS u(
				instrument_id, ts_event, ts_recv, publisher_id, symbol, raw_symbol,
				rtype, security_update_action, instrument_class,
				min_price_increment, display_factor, expiration, activation,
				high_limit_price, low_limit_price, max_price_variation,
				unit_of_measure_qty, min_price_increment_amount, price_ratio,
				inst_attrib_value, underlying_id, raw_instrument_id,
				market_depth_implied, market_depth, market_segment_id, max_trade_vol,
				min_lot_size, min_lot_size_block, min_lot_size_round_lot, min_trade_vol,
				contract_multiplier, decay_quantity, original_contract_size, appl_id,
				maturity_year, maturity_month, maturity_day, maturity_week,
				currency, settl_currency, secsubtype, grp, exchange, asset,
				cfi, security_type, unit_of_measure, underlying,
				strike_price_currency, strike_price, match_algorithm,
				main_fraction, price_display_format, sub_fraction, underlying_product, tick_rule,
				leg_count, leg_index, leg_instrument_id, leg_raw_symbol, leg_side,
				leg_ratio_qty_numerator, leg_ratio_qty_denominator, leg_underlying_id,
				user_defined_instrument, contract_multiplier_unit, flow_schedule_type,
				tick_size_denominator
			)
			ON CONFLICT (instrument_id, ts_event) DO UPDATE SET
				ts_recv = EXCLUDED.ts_recv,
				publisher_id = EXCLUDED.publisher_id,
				symbol = EXCLUDED.symbol,
				raw_symbol = EXCLUDED.raw_symbol,
				rtype = EXCLUDED.rtype,
				security_update_action = EXCLUDED.security_update_action,
				instrument_class = EXCLUDED.instrument_class,
				min_price_increment = EXCLUDED.min_price_increment,
				display_factor = EXCLUDED.display_factor,
				expiration = EXCLUDED.expiration,
				activation = EXCLUDED.activation,
				high_limit_price = EXCLUDED.high_limit_price,
				low_limit_price = EXCLUDED.low_limit_price,
				max_price_variation = EXCLUDED.max_price_variation,
				unit_of_measure_qty = EXCLUDED.unit_of_measure_qty,
				min_price_increment_amount = EXCLUDED.min_price_increment_amount,
				price_ratio = EXCLUDED.price_ratio,
				inst_attrib_value = EXCLUDED.inst_attrib_value,
				underlying_id = EXCLUDED.underlying_id,
				raw_instrument_id = EXCLUDED.raw_instrument_id,
				market_depth_implied = EXCLUDED.market_depth_implied,
				market_depth = EXCLUDED.market_depth,
				market_segment_id = EXCLUDED.market_segment_id,
				max_trade_vol = EXCLUDED.max_trade_vol,
				min_lot_size = EXCLUDED.min_lot_size,
				min_lot_size_block = EXCLUDED.min_lot_size_block,
				min_lot_size_round_lot = EXCLUDED.min_lot_size_round_lot,
				min_trade_vol = EXCLUDED.min_trade_vol,
				contract_multiplier = EXCLUDED.contract_multiplier,
				decay_quantity = EXCLUDED.decay_quantity,
				original_contract_size = EXCLUDED.original_contract_size,
				appl_id = EXCLUDED.appl_id,
				maturity_year = EXCLUDED.maturity_year,
				maturity_month = EXCLUDED.maturity_month,
				maturity_day = EXCLUDED.maturity_day,
				maturity_week = EXCLUDED.maturity_week,
				currency = EXCLUDED.currency,
				settl_currency = EXCLUDED.settl_currency,
				secsubtype = EXCLUDED.secsubtype,
				"group" = EXCLUDED."group",
				exchange = EXCLUDED.exchange,
				asset = EXCLUDED.asset,
				cfi = EXCLUDED.cfi,
				security_type = EXCLUDED.security_type,
				unit_of_measure = EXCLUDED.unit_of_measure,
				underlying = EXCLUDED.underlying,
				strike_price_currency = EXCLUDED.strike_price_currency,
				strike_price = EXCLUDED.strike_price,
				match_algorithm = EXCLUDED.match_algorithm,
				main_fraction = EXCLUDED.main_fraction,
				price_display_format = EXCLUDED.price_display_format,
				sub_fraction = EXCLUDED.sub_fraction,
				underlying_product = EXCLUDED.underlying_product,
				tick_rule = EXCLUDED.tick_rule,
				leg_count = EXCLUDED.leg_count,
				leg_index = EXCLUDED.leg_index,
				leg_instrument_id = EXCLUDED.leg_instrument_id,
				leg_raw_symbol = EXCLUDED.leg_raw_symbol,
				leg_side = EXCLUDED.leg_side,
				leg_ratio_qty_numerator = EXCLUDED.leg_ratio_qty_numerator,
				leg_ratio_qty_denominator = EXCLUDED.leg_ratio_qty_denominator,
				leg_underlying_id = EXCLUDED.leg_underlying_id,
				user_defined_instrument = EXCLUDED.user_defined_instrument,
				contract_multiplier_unit = EXCLUDED.contract_multiplier_unit,
				flow_schedule_type = EXCLUDED.flow_schedule_type,
				tick_size_denominator = EXCLUDED.tick_size_denominator,
				data_source = EXCLUDED.data_source,
				updated_at = NOW()`,
			a.instrumentID, a.tsEvent, a.tsRecv, a.publisherID, a.symbol, a.rawSymbol,
			a.rtype, a.updateAction, a.instrumentClass,
			a.minPriceIncrement, a.displayFactor, a.expiration, a.activation,
			a.highLimitPrice, a.lowLimitPrice, a.maxPriceVariation,
			a.unitOfMeasureQty, a.minPriceIncrementAmt, a.priceRatio,
			a.instAttribValue, a.underlyingID, a.rawInstrumentID,
			a.marketDepthImplied, a.marketDepth, a.marketSegmentID, a.maxTradeVol,
			a.minLotSize, a.minLotSizeBlock, a.minLotSizeRoundLot, a.minTradeVol,
			a.contractMultiplier, a.decayQuantity, a.originalContractSize, a.applID,
			a.maturityYear, a.maturityMonth, a.maturityDay, a.maturityWeek,
			a.currency, a.settlCurrency, a.secSubType, a.group, a.exchange, a.asset,
			a.cfi, a.securityType, a.unitOfMeasure, a.underlying,
			a.strikePriceCurrency, a.strikePrice, a.matchAlgorithm,
			a.mainFraction, a.priceDisplayFormat, a.subFraction, a.underlyingProduct, a.tickRule,
			a.legCount, a.legIndex, a.legInstrumentID, a.legRawSymbol, a.legSide,
			a.legRatioNum, a.legRatioDen, a.legUnderlyingID,
			a.userDefined, a.contractMultUnit, a.flowScheduleType,
			a.tickSizeDenominator, dataSource,
		)
		if err != nil {
			return res, err
		}
		if ok {
			res.Inserted += len(chunk)
		} else {
			res.Errors += len(chunk)
		}
	}
	return res, nil
}
