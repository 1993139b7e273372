package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketscan/internal/models"
)

// DefaultTradeLimit caps results for the two highest-volume kinds unless the
// caller overrides it. Other kinds default to unlimited.
const DefaultTradeLimit = 10000

// RangeFilter is the common shape of a point-in-time range query. Both date
// bounds are inclusive and either may be nil.
type RangeFilter struct {
	Symbols []string
	Start   *time.Time
	End     *time.Time
	Limit   int
}

// TradeFilter adds the trade-specific side filter (B or S).
type TradeFilter struct {
	RangeFilter
	Side string
}

// StatisticsFilter adds the stat_type filter.
type StatisticsFilter struct {
	RangeFilter
	StatType *int16
}

// DefinitionFilter adds reference-data filters.
type DefinitionFilter struct {
	RangeFilter
	Asset           string
	Exchange        string
	InstrumentClass string
}

// symbolClause resolves the filter's symbols to either an instrument_id
// predicate (definitions path) or a denormalized-symbol predicate (fallback).
// resolvedIDs is non-nil only on the definitions path, where results are
// enriched with looked-up symbols afterwards.
func (r *Repository) symbolClause(ctx context.Context, symbols []string, arg *int, args *[]any) (clause string, resolvedIDs []int64) {
	if len(symbols) == 0 {
		return "", nil
	}

	if ids, ok := r.ResolveSymbols(ctx, symbols); ok {
		clause = fmt.Sprintf("instrument_id = ANY($%d)", *arg)
		*args = append(*args, ids)
		*arg++
		return clause, ids
	}

	// Fallback: filter fact tables by the denormalized symbol column. This
	// keeps queries working before the definitions table is populated.
	clause = fmt.Sprintf("symbol = ANY($%d)", *arg)
	*args = append(*args, symbols)
	*arg++
	return clause, nil
}

func rangeClauses(start, end *time.Time, arg *int, args *[]any) []string {
	var clauses []string
	if start != nil {
		clauses = append(clauses, fmt.Sprintf("ts_event >= $%d", *arg))
		*args = append(*args, *start)
		*arg++
	}
	if end != nil {
		// Inclusive calendar dates: anything before the next midnight counts.
		clauses = append(clauses, fmt.Sprintf("ts_event < $%d", *arg))
		*args = append(*args, end.AddDate(0, 0, 1))
		*arg++
	}
	return clauses
}

func whereSQL(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

func limitSQL(limit int, arg *int, args *[]any) string {
	if limit <= 0 {
		return ""
	}
	s := fmt.Sprintf("LIMIT $%d", *arg)
	*args = append(*args, limit)
	*arg++
	return s
}

// enrich overwrites the denormalized symbol with the definitions-resolved
// one when resolution went through instrument ids. Lookup misses label the
// row UNKNOWN rather than failing the query.
func enrichSymbol(symbol *string, id int64, lookup map[int64]string) {
	if lookup == nil {
		return
	}
	if s, ok := lookup[id]; ok {
		*symbol = s
	} else {
		*symbol = "UNKNOWN"
	}
}

// QueryDailyOhlcv returns OHLCV rows for the given symbols and range,
// ordered by (instrument_id, ts_event DESC).
func (r *Repository) QueryDailyOhlcv(ctx context.Context, f RangeFilter) ([]models.Ohlcv, error) {
	args := []any{}
	arg := 1

	var clauses []string
	symClause, resolvedIDs := r.symbolClause(ctx, f.Symbols, &arg, &args)
	if symClause != "" {
		clauses = append(clauses, symClause)
	}
	clauses = append(clauses, rangeClauses(f.Start, f.End, &arg, &args)...)

	query := fmt.Sprintf(`
		SELECT instrument_id, ts_event, ts_recv, rtype, publisher_id, symbol,
		       open_price::text, high_price::text, low_price::text, close_price::text,
		       volume, trade_count, vwap::text, granularity, data_source, updated_at
		FROM daily_ohlcv_data
		%s
		ORDER BY instrument_id, ts_event DESC
		%s`, whereSQL(clauses), limitSQL(f.Limit, &arg, &args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ohlcv: %w", err)
	}
	defer rows.Close()

	var lookup map[int64]string
	if resolvedIDs != nil {
		lookup = r.symbolByInstrument(ctx, resolvedIDs)
	}

	var out []models.Ohlcv
	for rows.Next() {
		var (
			rec                     models.Ohlcv
			id                      int64
			tsRecv                  *time.Time
			rtype                   *int16
			pub                     *int32
			open, high, low, closeP string
			tradeCount              *int64
			vwap                    *string
			gran                    string
		)
		if err := rows.Scan(&id, &rec.TsEvent, &tsRecv, &rtype, &pub, &rec.Symbol,
			&open, &high, &low, &closeP,
			&rec.Volume, &tradeCount, &vwap, &gran, &rec.DataSource, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.InstrumentID = uint32(id)
		if tsRecv != nil {
			rec.TsRecv = *tsRecv
		}
		if rtype != nil {
			rec.RType = *rtype
		}
		if pub != nil {
			rec.PublisherID = uint16(*pub)
		}
		if rec.Open, err = decimal.NewFromString(open); err != nil {
			return nil, fmt.Errorf("scan open: %w", err)
		}
		if rec.High, err = decimal.NewFromString(high); err != nil {
			return nil, fmt.Errorf("scan high: %w", err)
		}
		if rec.Low, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("scan low: %w", err)
		}
		if rec.Close, err = decimal.NewFromString(closeP); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		if tradeCount != nil {
			tc := uint64(*tradeCount)
			rec.TradeCount = &tc
		}
		if vwap != nil {
			d, err := decimal.NewFromString(*vwap)
			if err != nil {
				return nil, fmt.Errorf("scan vwap: %w", err)
			}
			rec.Vwap = &d
		}
		rec.Granularity = models.Granularity(gran)
		enrichSymbol(&rec.Symbol, id, lookup)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryTrades returns trade rows, newest first per instrument, capped at
// DefaultTradeLimit unless overridden.
func (r *Repository) QueryTrades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	if f.Limit == 0 {
		f.Limit = DefaultTradeLimit
	}

	args := []any{}
	arg := 1

	var clauses []string
	symClause, resolvedIDs := r.symbolClause(ctx, f.Symbols, &arg, &args)
	if symClause != "" {
		clauses = append(clauses, symClause)
	}
	clauses = append(clauses, rangeClauses(f.Start, f.End, &arg, &args)...)
	if f.Side == "B" || f.Side == "S" {
		clauses = append(clauses, fmt.Sprintf("side = $%d", arg))
		args = append(args, f.Side)
		arg++
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, ts_event, ts_recv, publisher_id, symbol,
		       price::text, size, side, COALESCE(action, ''), sequence, data_source, updated_at
		FROM trades_data
		%s
		ORDER BY instrument_id, ts_event DESC
		%s`, whereSQL(clauses), limitSQL(f.Limit, &arg, &args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var lookup map[int64]string
	if resolvedIDs != nil {
		lookup = r.symbolByInstrument(ctx, resolvedIDs)
	}

	var out []models.Trade
	for rows.Next() {
		var (
			rec    models.Trade
			id     int64
			tsRecv *time.Time
			pub    *int32
			price  string
			size   int64
			side   string
			seq    int64
		)
		if err := rows.Scan(&id, &rec.TsEvent, &tsRecv, &pub, &rec.Symbol,
			&price, &size, &side, &rec.Action, &seq, &rec.DataSource, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.InstrumentID = uint32(id)
		if tsRecv != nil {
			rec.TsRecv = *tsRecv
		}
		if pub != nil {
			rec.PublisherID = uint16(*pub)
		}
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		rec.Size = uint32(size)
		rec.Side = models.Side(strings.TrimSpace(side))
		rec.Sequence = uint64(seq)
		enrichSymbol(&rec.Symbol, id, lookup)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryTbbo returns top-of-book rows, newest first per instrument, capped at
// DefaultTradeLimit unless overridden.
func (r *Repository) QueryTbbo(ctx context.Context, f RangeFilter) ([]models.Tbbo, error) {
	if f.Limit == 0 {
		f.Limit = DefaultTradeLimit
	}

	args := []any{}
	arg := 1

	var clauses []string
	symClause, resolvedIDs := r.symbolClause(ctx, f.Symbols, &arg, &args)
	if symClause != "" {
		clauses = append(clauses, symClause)
	}
	clauses = append(clauses, rangeClauses(f.Start, f.End, &arg, &args)...)

	query := fmt.Sprintf(`
		SELECT instrument_id, ts_event, ts_recv, publisher_id, symbol,
		       bid_px::text, ask_px::text, bid_sz, ask_sz, bid_ct, ask_ct,
		       sequence, is_crossed, data_source, updated_at
		FROM tbbo_data
		%s
		ORDER BY instrument_id, ts_event DESC
		%s`, whereSQL(clauses), limitSQL(f.Limit, &arg, &args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tbbo: %w", err)
	}
	defer rows.Close()

	var lookup map[int64]string
	if resolvedIDs != nil {
		lookup = r.symbolByInstrument(ctx, resolvedIDs)
	}

	var out []models.Tbbo
	for rows.Next() {
		var (
			rec            models.Tbbo
			id             int64
			tsRecv         *time.Time
			pub            *int32
			bidPx, askPx   *string
			bidSz, askSz   *int64
			bidCt, askCt   *int64
			seq            int64
		)
		if err := rows.Scan(&id, &rec.TsEvent, &tsRecv, &pub, &rec.Symbol,
			&bidPx, &askPx, &bidSz, &askSz, &bidCt, &askCt,
			&seq, &rec.IsCrossed, &rec.DataSource, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.InstrumentID = uint32(id)
		if tsRecv != nil {
			rec.TsRecv = *tsRecv
		}
		if pub != nil {
			rec.PublisherID = uint16(*pub)
		}
		if bidPx != nil {
			d, err := decimal.NewFromString(*bidPx)
			if err != nil {
				return nil, fmt.Errorf("scan bid_px: %w", err)
			}
			rec.BidPx = &d
		}
		if askPx != nil {
			d, err := decimal.NewFromString(*askPx)
			if err != nil {
				return nil, fmt.Errorf("scan ask_px: %w", err)
			}
			rec.AskPx = &d
		}
		if bidSz != nil {
			v := uint32(*bidSz)
			rec.BidSz = &v
		}
		if askSz != nil {
			v := uint32(*askSz)
			rec.AskSz = &v
		}
		if bidCt != nil {
			v := uint32(*bidCt)
			rec.BidCt = &v
		}
		if askCt != nil {
			v := uint32(*askCt)
			rec.AskCt = &v
		}
		rec.Sequence = uint64(seq)
		enrichSymbol(&rec.Symbol, id, lookup)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryStatistics returns statistics rows, newest first per instrument.
func (r *Repository) QueryStatistics(ctx context.Context, f StatisticsFilter) ([]models.Statistic, error) {
	args := []any{}
	arg := 1

	var clauses []string
	symClause, resolvedIDs := r.symbolClause(ctx, f.Symbols, &arg, &args)
	if symClause != "" {
		clauses = append(clauses, symClause)
	}
	clauses = append(clauses, rangeClauses(f.Start, f.End, &arg, &args)...)
	if f.StatType != nil {
		clauses = append(clauses, fmt.Sprintf("stat_type = $%d", arg))
		args = append(args, *f.StatType)
		arg++
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, ts_event, ts_recv, publisher_id, symbol,
		       stat_type, stat_value::text, open_interest, settlement_price::text,
		       high_limit::text, low_limit::text, sequence, flags, data_source, updated_at
		FROM statistics_data
		%s
		ORDER BY instrument_id, ts_event DESC
		%s`, whereSQL(clauses), limitSQL(f.Limit, &arg, &args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	var lookup map[int64]string
	if resolvedIDs != nil {
		lookup = r.symbolByInstrument(ctx, resolvedIDs)
	}

	var out []models.Statistic
	for rows.Next() {
		var (
			rec       models.Statistic
			id        int64
			tsRecv    *time.Time
			pub       *int32
			statType  int16
			statValue *string
			oi        *int64
			settle    *string
			hi, lo    *string
			seq       int64
			flags     *int32
		)
		if err := rows.Scan(&id, &rec.TsEvent, &tsRecv, &pub, &rec.Symbol,
			&statType, &statValue, &oi, &settle,
			&hi, &lo, &seq, &flags, &rec.DataSource, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.InstrumentID = uint32(id)
		if tsRecv != nil {
			rec.TsRecv = *tsRecv
		}
		if pub != nil {
			rec.PublisherID = uint16(*pub)
		}
		rec.StatType = models.StatType(statType)
		for _, p := range []struct {
			src *string
			dst **decimal.Decimal
		}{{statValue, &rec.StatValue}, {settle, &rec.SettlementPrice}, {hi, &rec.HighLimit}, {lo, &rec.LowLimit}} {
			if p.src != nil {
				d, err := decimal.NewFromString(*p.src)
				if err != nil {
					return nil, fmt.Errorf("scan statistics decimal: %w", err)
				}
				*p.dst = &d
			}
		}
		if oi != nil {
			v := uint64(*oi)
			rec.OpenInterest = &v
		}
		rec.Sequence = uint64(seq)
		if flags != nil {
			rec.Flags = uint16(*flags)
		}
		enrichSymbol(&rec.Symbol, id, lookup)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryDefinitions returns reference-data rows, newest first per instrument.
// The heavy tail of reference fields is left to dedicated lookups; this
// returns the columns dashboards actually page through.
func (r *Repository) QueryDefinitions(ctx context.Context, f DefinitionFilter) ([]models.Definition, error) {
	args := []any{}
	arg := 1

	var clauses []string
	symClause, _ := r.symbolClause(ctx, f.Symbols, &arg, &args)
	if symClause != "" {
		// Definitions are the resolution source themselves; filter raw_symbol
		// alongside the resolved clause so native lookups work either way.
		clauses = append(clauses, fmt.Sprintf("(%s OR raw_symbol = ANY($%d))", symClause, arg))
		args = append(args, f.Symbols)
		arg++
	}
	clauses = append(clauses, rangeClauses(f.Start, f.End, &arg, &args)...)
	if f.Asset != "" {
		clauses = append(clauses, fmt.Sprintf("asset = $%d", arg))
		args = append(args, f.Asset)
		arg++
	}
	if f.Exchange != "" {
		clauses = append(clauses, fmt.Sprintf("exchange = $%d", arg))
		args = append(args, f.Exchange)
		arg++
	}
	if f.InstrumentClass != "" {
		clauses = append(clauses, fmt.Sprintf("instrument_class = $%d", arg))
		args = append(args, f.InstrumentClass)
		arg++
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, ts_event, ts_recv, publisher_id, symbol, raw_symbol,
		       rtype, security_update_action, COALESCE(instrument_class, ''),
		       min_price_increment::text, expiration, activation,
		       "group", COALESCE(exchange, ''), asset,
		       COALESCE(currency, ''), strike_price::text, inst_attrib_value,
		       min_lot_size, min_trade_vol, data_source, updated_at
		FROM definitions_data
		%s
		ORDER BY instrument_id, ts_event DESC
		%s`, whereSQL(clauses), limitSQL(f.Limit, &arg, &args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var out []models.Definition
	for rows.Next() {
		var (
			rec          models.Definition
			id           int64
			tsRecv       *time.Time
			pub          *int32
			updateAction string
			minIncr      *string
			expiration   *time.Time
			activation   *time.Time
			strike       *string
			minTradeVol  int64
		)
		if err := rows.Scan(&id, &rec.TsEvent, &tsRecv, &pub, &rec.Symbol, &rec.RawSymbol,
			&rec.RType, &updateAction, &rec.InstrumentClass,
			&minIncr, &expiration, &activation,
			&rec.Group, &rec.Exchange, &rec.Asset,
			&rec.Currency, &strike, &rec.InstAttribValue,
			&rec.MinLotSize, &minTradeVol, &rec.DataSource, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.InstrumentID = uint32(id)
		if tsRecv != nil {
			rec.TsRecv = *tsRecv
		}
		if pub != nil {
			rec.PublisherID = uint16(*pub)
		}
		rec.SecurityUpdateAction = strings.TrimSpace(updateAction)
		if minIncr != nil {
			d, err := decimal.NewFromString(*minIncr)
			if err != nil {
				return nil, fmt.Errorf("scan min_price_increment: %w", err)
			}
			rec.MinPriceIncrement = &d
		}
		rec.Expiration = expiration
		rec.Activation = activation
		if strike != nil {
			d, err := decimal.NewFromString(*strike)
			if err != nil {
				return nil, fmt.Errorf("scan strike_price: %w", err)
			}
			rec.StrikePrice = &d
		}
		rec.MinTradeVol = uint32(minTradeVol)
		out = append(out, rec)
	}
	return out, rows.Err()
}
