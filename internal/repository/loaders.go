package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"marketscan/internal/models"
)

// InsertResult reports how many rows a loader call upserted and how many it
// gave up on (whole failed sub-batches).
type InsertResult struct {
	Inserted int
	Errors   int
}

// subBatches yields [start, end) index pairs of at most SubBatchSize rows.
func (r *Repository) subBatches(n int) [][2]int {
	size := r.SubBatchSize
	if size <= 0 {
		size = defaultSubBatchSize
	}
	var out [][2]int
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
	}
	return out
}

// execSubBatch runs one multi-row upsert in its own transaction so a failure
// rolls back exactly that sub-batch. Connection-level failures abort the
// whole call.
func (r *Repository) execSubBatch(ctx context.Context, table string, n int, sql string, args ...any) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin upsert tx for %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		log.Printf("[loader] %s: sub-batch of %d failed: %v", table, n, err)
		return false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		log.Printf("[loader] %s: sub-batch of %d failed on commit: %v", table, n, err)
		return false, nil
	}
	return true, nil
}

// --- nullable-array helpers for UNNEST upserts ---
//
// Decimals travel as text and are cast to numeric[] server-side; that keeps
// exact scale without a numeric codec dependency.

func decText(d decimal.Decimal) string { return d.String() }

func decPtrText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func u32Ptr(v *uint32) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func u64Ptr(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// InsertOhlcv upserts OHLCV rows on (instrument_id, ts_event, granularity,
// data_source). On conflict all price/volume/count columns are overwritten
// and updated_at is stamped; ts_recv, publisher_id and symbol are refreshed
// too.
func (r *Repository) InsertOhlcv(ctx context.Context, records []models.Ohlcv, dataSource string) (InsertResult, error) {
	var res InsertResult
	if len(records) == 0 {
		return res, nil
	}

	ts := make([]time.Time, len(records))
	for i, rec := range records {
		ts[i] = rec.TsEvent
	}
	minTs, maxTs := timeBounds(ts)
	if err := r.EnsureDayPartitions(ctx, TableOhlcv, minTs, maxTs); err != nil {
		return res, err
	}

	for _, sb := range r.subBatches(len(records)) {
		chunk := records[sb[0]:sb[1]]

		instrumentIDs := make([]int64, len(chunk))
		tsEvents := make([]time.Time, len(chunk))
		tsRecvs := make([]*time.Time, len(chunk))
		rtypes := make([]int16, len(chunk))
		publisherIDs := make([]int32, len(chunk))
		symbols := make([]string, len(chunk))
		opens := make([]string, len(chunk))
		highs := make([]string, len(chunk))
		lows := make([]string, len(chunk))
		closes := make([]string, len(chunk))
		volumes := make([]int64, len(chunk))
		tradeCounts := make([]*int64, len(chunk))
		vwaps := make([]*string, len(chunk))
		granularities := make([]string, len(chunk))

		for i, rec := range chunk {
			instrumentIDs[i] = int64(rec.InstrumentID)
			tsEvents[i] = rec.TsEvent
			tsRecvs[i] = timePtr(rec.TsRecv)
			rtypes[i] = rec.RType
			publisherIDs[i] = int32(rec.PublisherID)
			symbols[i] = rec.Symbol
			opens[i] = decText(rec.Open)
			highs[i] = decText(rec.High)
			lows[i] = decText(rec.Low)
			closes[i] = decText(rec.Close)
			volumes[i] = int64(rec.Volume)
			tradeCounts[i] = u64Ptr(rec.TradeCount)
			vwaps[i] = decPtrText(rec.Vwap)
			granularities[i] = string(rec.Granularity)
		}

		ok, err := r.execSubBatch(ctx, TableOhlcv, len(chunk), `
			INSERT INTO daily_ohlcv_data (
				instrument_id, ts_event, ts_recv, rtype, publisher_id, symbol,
				open_price, high_price, low_price, close_price,
				volume, trade_count, vwap, granularity, data_source
			)
			SELECT DISTINCT ON (u.instrument_id, u.ts_event, u.granularity)
				u.instrument_id, u.ts_event, u.ts_recv, u.rtype, u.publisher_id, u.symbol,
				u.open_price, u.high_price, u.low_price, u.close_price,
				u.volume, u.trade_count, u.vwap, u.granularity, $15
			FROM UNNEST(
				$1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::smallint[], $5::int[], $6::text[],
				$7::numeric[], $8::numeric[], $9::numeric[], $10::numeric[],
				$11::bigint[], $12::bigint[], $13::numeric[], $14::text[]
			) WITH ORDINALITY AS u(
				instrument_id, ts_event, ts_recv, rtype, publisher_id, symbol,
				open_price, high_price, low_price, close_price,
				volume, trade_count, vwap, granularity, ord
			)
			ORDER BY u.instrument_id, u.ts_event, u.granularity, u.ord DESC
			ON CONFLICT (instrument_id, ts_event, granularity, data_source) DO UPDATE SET
				ts_recv = EXCLUDED.ts_recv,
				rtype = EXCLUDED.rtype,
				publisher_id = EXCLUDED.publisher_id,
				symbol = EXCLUDED.symbol,
				open_price = EXCLUDED.open_price,
				high_price = EXCLUDED.high_price,
				low_price = EXCLUDED.low_price,
				close_price = EXCLUDED.close_price,
				volume = EXCLUDED.volume,
				trade_count = EXCLUDED.trade_count,
				vwap = EXCLUDED.vwap,
				updated_at = NOW()`,
			instrumentIDs, tsEvents, tsRecvs, rtypes, publisherIDs, symbols,
			opens, highs, lows, closes,
			volumes, tradeCounts, vwaps, granularities, dataSource,
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

// InsertTrades upserts trade rows on the full trade identity tuple. Conflicts
// only refresh mutable metadata and stamp updated_at.
func (r *Repository) InsertTrades(ctx context.Context, records []models.Trade, dataSource string) (InsertResult, error) {
	var res InsertResult
	if len(records) == 0 {
		return res, nil
	}

	ts := make([]time.Time, len(records))
	for i, rec := range records {
		ts[i] = rec.TsEvent
	}
	minTs, maxTs := timeBounds(ts)
	if err := r.EnsureDayPartitions(ctx, TableTrades, minTs, maxTs); err != nil {
		return res, err
	}

	for _, sb := range r.subBatches(len(records)) {
		chunk := records[sb[0]:sb[1]]

		instrumentIDs := make([]int64, len(chunk))
		tsEvents := make([]time.Time, len(chunk))
		tsRecvs := make([]*time.Time, len(chunk))
		publisherIDs := make([]int32, len(chunk))
		symbols := make([]string, len(chunk))
		prices := make([]string, len(chunk))
		sizes := make([]int64, len(chunk))
		sides := make([]string, len(chunk))
		actions := make([]*string, len(chunk))
		sequences := make([]int64, len(chunk))

		for i, rec := range chunk {
			instrumentIDs[i] = int64(rec.InstrumentID)
			tsEvents[i] = rec.TsEvent
			tsRecvs[i] = timePtr(rec.TsRecv)
			publisherIDs[i] = int32(rec.PublisherID)
			symbols[i] = rec.Symbol
			prices[i] = decText(rec.Price)
			sizes[i] = int64(rec.Size)
			sides[i] = string(rec.Side)
			if rec.Action != "" {
				a := rec.Action
				actions[i] = &a
			}
			sequences[i] = int64(rec.Sequence)
		}

		ok, err := r.execSubBatch(ctx, TableTrades, len(chunk), `
			INSERT INTO trades_data (
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				price, size, side, action, sequence, data_source
			)
			SELECT DISTINCT ON (u.instrument_id, u.ts_event, u.sequence, u.price, u.size, u.side)
				u.instrument_id, u.ts_event, u.ts_recv, u.publisher_id, u.symbol,
				u.price, u.size, u.side, u.action, u.sequence, $11
			FROM UNNEST(
				$1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::int[], $5::text[],
				$6::numeric[], $7::bigint[], $8::text[], $9::text[], $10::bigint[]
			) AS u(
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				price, size, side, action, sequence
			)
			ON CONFLICT (instrument_id, ts_event, sequence, price, size, side) DO UPDATE SET
				ts_recv = EXCLUDED.ts_recv,
				publisher_id = EXCLUDED.publisher_id,
				symbol = EXCLUDED.symbol,
				action = EXCLUDED.action,
				updated_at = NOW()`,
			instrumentIDs, tsEvents, tsRecvs, publisherIDs, symbols,
			prices, sizes, sides, actions, sequences, dataSource,
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

// InsertTbbo upserts top-of-book rows. The is_crossed flag is derived here:
// bid above ask when both sides are present.
func (r *Repository) InsertTbbo(ctx context.Context, records []models.Tbbo, dataSource string) (InsertResult, error) {
	var res InsertResult
	if len(records) == 0 {
		return res, nil
	}

	ts := make([]time.Time, len(records))
	for i, rec := range records {
		ts[i] = rec.TsEvent
	}
	minTs, maxTs := timeBounds(ts)
	if err := r.EnsureDayPartitions(ctx, TableTbbo, minTs, maxTs); err != nil {
		return res, err
	}

	for _, sb := range r.subBatches(len(records)) {
		chunk := records[sb[0]:sb[1]]

		instrumentIDs := make([]int64, len(chunk))
		tsEvents := make([]time.Time, len(chunk))
		tsRecvs := make([]*time.Time, len(chunk))
		publisherIDs := make([]int32, len(chunk))
		symbols := make([]string, len(chunk))
		bidPxs := make([]*string, len(chunk))
		askPxs := make([]*string, len(chunk))
		bidSzs := make([]*int64, len(chunk))
		askSzs := make([]*int64, len(chunk))
		bidCts := make([]*int64, len(chunk))
		askCts := make([]*int64, len(chunk))
		sequences := make([]int64, len(chunk))
		crossed := make([]bool, len(chunk))

		for i, rec := range chunk {
			instrumentIDs[i] = int64(rec.InstrumentID)
			tsEvents[i] = rec.TsEvent
			tsRecvs[i] = timePtr(rec.TsRecv)
			publisherIDs[i] = int32(rec.PublisherID)
			symbols[i] = rec.Symbol
			bidPxs[i] = decPtrText(rec.BidPx)
			askPxs[i] = decPtrText(rec.AskPx)
			bidSzs[i] = u32Ptr(rec.BidSz)
			askSzs[i] = u32Ptr(rec.AskSz)
			bidCts[i] = u32Ptr(rec.BidCt)
			askCts[i] = u32Ptr(rec.AskCt)
			sequences[i] = int64(rec.Sequence)
			crossed[i] = rec.BidPx != nil && rec.AskPx != nil && rec.BidPx.GreaterThan(*rec.AskPx)
		}

		ok, err := r.execSubBatch(ctx, TableTbbo, len(chunk), `
			INSERT INTO tbbo_data (
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				bid_px, ask_px, bid_sz, ask_sz, bid_ct, ask_ct,
				sequence, is_crossed, data_source
			)
			SELECT DISTINCT ON (u.instrument_id, u.ts_event, u.sequence)
				u.instrument_id, u.ts_event, u.ts_recv, u.publisher_id, u.symbol,
				u.bid_px, u.ask_px, u.bid_sz, u.ask_sz, u.bid_ct, u.ask_ct,
				u.sequence, u.is_crossed, $14
			FROM UNNEST(
				$1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::int[], $5::text[],
				$6::numeric[], $7::numeric[], $8::bigint[], $9::bigint[], $10::bigint[], $11::bigint[],
				$12::bigint[], $13::bool[]
			) AS u(
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				bid_px, ask_px, bid_sz, ask_sz, bid_ct, ask_ct,
				sequence, is_crossed
			)
			ON CONFLICT (instrument_id, ts_event, sequence) DO UPDATE SET
				ts_recv = EXCLUDED.ts_recv,
				publisher_id = EXCLUDED.publisher_id,
				symbol = EXCLUDED.symbol,
				bid_px = EXCLUDED.bid_px,
				ask_px = EXCLUDED.ask_px,
				bid_sz = EXCLUDED.bid_sz,
				ask_sz = EXCLUDED.ask_sz,
				bid_ct = EXCLUDED.bid_ct,
				ask_ct = EXCLUDED.ask_ct,
				is_crossed = EXCLUDED.is_crossed,
				updated_at = NOW()`,
			instrumentIDs, tsEvents, tsRecvs, publisherIDs, symbols,
			bidPxs, askPxs, bidSzs, askSzs, bidCts, askCts,
			sequences, crossed, dataSource,
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

// InsertStatistics upserts statistics rows on (instrument_id, ts_event,
// stat_type, sequence).
func (r *Repository) InsertStatistics(ctx context.Context, records []models.Statistic, dataSource string) (InsertResult, error) {
	var res InsertResult
	if len(records) == 0 {
		return res, nil
	}

	ts := make([]time.Time, len(records))
	for i, rec := range records {
		ts[i] = rec.TsEvent
	}
	minTs, maxTs := timeBounds(ts)
	if err := r.EnsureDayPartitions(ctx, TableStatistics, minTs, maxTs); err != nil {
		return res, err
	}

	for _, sb := range r.subBatches(len(records)) {
		chunk := records[sb[0]:sb[1]]

		instrumentIDs := make([]int64, len(chunk))
		tsEvents := make([]time.Time, len(chunk))
		tsRecvs := make([]*time.Time, len(chunk))
		publisherIDs := make([]int32, len(chunk))
		symbols := make([]string, len(chunk))
		statTypes := make([]int16, len(chunk))
		statValues := make([]*string, len(chunk))
		openInterests := make([]*int64, len(chunk))
		settlements := make([]*string, len(chunk))
		highLimits := make([]*string, len(chunk))
		lowLimits := make([]*string, len(chunk))
		sequences := make([]int64, len(chunk))
		flags := make([]int32, len(chunk))

		for i, rec := range chunk {
			instrumentIDs[i] = int64(rec.InstrumentID)
			tsEvents[i] = rec.TsEvent
			tsRecvs[i] = timePtr(rec.TsRecv)
			publisherIDs[i] = int32(rec.PublisherID)
			symbols[i] = rec.Symbol
			statTypes[i] = int16(rec.StatType)
			statValues[i] = decPtrText(rec.StatValue)
			openInterests[i] = u64Ptr(rec.OpenInterest)
			settlements[i] = decPtrText(rec.SettlementPrice)
			highLimits[i] = decPtrText(rec.HighLimit)
			lowLimits[i] = decPtrText(rec.LowLimit)
			sequences[i] = int64(rec.Sequence)
			flags[i] = int32(rec.Flags)
		}

		ok, err := r.execSubBatch(ctx, TableStatistics, len(chunk), `
			INSERT INTO statistics_data (
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				stat_type, stat_value, open_interest, settlement_price,
				high_limit, low_limit, sequence, flags, data_source
			)
			SELECT DISTINCT ON (u.instrument_id, u.ts_event, u.stat_type, u.sequence)
				u.instrument_id, u.ts_event, u.ts_recv, u.publisher_id, u.symbol,
				u.stat_type, u.stat_value, u.open_interest, u.settlement_price,
				u.high_limit, u.low_limit, u.sequence, u.flags, $14
			FROM UNNEST(
				$1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::int[], $5::text[],
				$6::smallint[], $7::numeric[], $8::bigint[], $9::numeric[],
				$10::numeric[], $11::numeric[], $12::bigint[], $13::int[]
			) AS u(
				instrument_id, ts_event, ts_recv, publisher_id, symbol,
				stat_type, stat_value, open_interest, settlement_price,
				high_limit, low_limit, sequence, flags
			)
			ON CONFLICT (instrument_id, ts_event, stat_type, sequence) DO UPDATE SET
				ts_recv = EXCLUDED.ts_recv,
				publisher_id = EXCLUDED.publisher_id,
				symbol = EXCLUDED.symbol,
				stat_value = EXCLUDED.stat_value,
				open_interest = EXCLUDED.open_interest,
				settlement_price = EXCLUDED.settlement_price,
				high_limit = EXCLUDED.high_limit,
				low_limit = EXCLUDED.low_limit,
				flags = EXCLUDED.flags,
				updated_at = NOW()`,
			instrumentIDs, tsEvents, tsRecvs, publisherIDs, symbols,
			statTypes, statValues, openInterests, settlements,
			highLimits, lowLimits, sequences, flags, dataSource,
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
