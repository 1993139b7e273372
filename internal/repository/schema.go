package repository

import (
	"context"
	"fmt"
)

// Fact table names. These are load-bearing for compatibility with existing
// deployments; do not rename.
const (
	TableOhlcv       = "daily_ohlcv_data"
	TableTrades      = "trades_data"
	TableTbbo        = "tbbo_data"
	TableStatistics  = "statistics_data"
	TableDefinitions = "definitions_data"
)

// schemaDDL creates the five fact tables, range-partitioned on ts_event with
// one-day partitions created on demand (see partitions.go). Unique keys
// include ts_event because PostgreSQL requires the partition key in every
// unique constraint on a partitioned table.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS daily_ohlcv_data (
		instrument_id BIGINT NOT NULL,
		ts_event TIMESTAMPTZ NOT NULL,
		ts_recv TIMESTAMPTZ,
		rtype SMALLINT,
		publisher_id INTEGER,
		symbol TEXT NOT NULL,
		open_price NUMERIC(20,8) NOT NULL,
		high_price NUMERIC(20,8) NOT NULL,
		low_price NUMERIC(20,8) NOT NULL,
		close_price NUMERIC(20,8) NOT NULL,
		volume BIGINT NOT NULL DEFAULT 0,
		trade_count BIGINT,
		vwap NUMERIC(20,8),
		granularity TEXT NOT NULL,
		data_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, ts_event, granularity, data_source)
	) PARTITION BY RANGE (ts_event)`,

	`CREATE INDEX IF NOT EXISTS idx_ohlcv_instrument_ts ON daily_ohlcv_data (instrument_id, ts_event DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ohlcv_symbol_ts ON daily_ohlcv_data (symbol, ts_event DESC)`,

	`CREATE TABLE IF NOT EXISTS trades_data (
		instrument_id BIGINT NOT NULL,
		ts_event TIMESTAMPTZ NOT NULL,
		ts_recv TIMESTAMPTZ,
		publisher_id INTEGER,
		symbol TEXT NOT NULL,
		price NUMERIC(20,8) NOT NULL,
		size BIGINT NOT NULL,
		side CHAR(1) NOT NULL DEFAULT 'N',
		action CHAR(1),
		sequence BIGINT NOT NULL DEFAULT 0,
		data_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, ts_event, sequence, price, size, side)
	) PARTITION BY RANGE (ts_event)`,

	`CREATE INDEX IF NOT EXISTS idx_trades_instrument_ts ON trades_data (instrument_id, ts_event DESC)`,

	`CREATE TABLE IF NOT EXISTS tbbo_data (
		instrument_id BIGINT NOT NULL,
		ts_event TIMESTAMPTZ NOT NULL,
		ts_recv TIMESTAMPTZ,
		publisher_id INTEGER,
		symbol TEXT NOT NULL,
		bid_px NUMERIC(20,8),
		ask_px NUMERIC(20,8),
		bid_sz BIGINT,
		ask_sz BIGINT,
		bid_ct BIGINT,
		ask_ct BIGINT,
		sequence BIGINT NOT NULL DEFAULT 0,
		is_crossed BOOLEAN NOT NULL DEFAULT FALSE,
		data_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, ts_event, sequence)
	) PARTITION BY RANGE (ts_event)`,

	`CREATE INDEX IF NOT EXISTS idx_tbbo_instrument_ts ON tbbo_data (instrument_id, ts_event DESC)`,

	`CREATE TABLE IF NOT EXISTS statistics_data (
		instrument_id BIGINT NOT NULL,
		ts_event TIMESTAMPTZ NOT NULL,
		ts_recv TIMESTAMPTZ,
		publisher_id INTEGER,
		symbol TEXT NOT NULL,
		stat_type SMALLINT NOT NULL,
		stat_value NUMERIC(20,8),
		open_interest BIGINT,
		settlement_price NUMERIC(20,8),
		high_limit NUMERIC(20,8),
		low_limit NUMERIC(20,8),
		sequence BIGINT NOT NULL DEFAULT 0,
		flags INTEGER,
		data_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, ts_event, stat_type, sequence)
	) PARTITION BY RANGE (ts_event)`,

	`CREATE INDEX IF NOT EXISTS idx_stats_instrument_ts ON statistics_data (instrument_id, ts_event DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_stats_instrument_ts_type ON statistics_data (instrument_id, ts_event, stat_type)`,

	`CREATE TABLE IF NOT EXISTS definitions_data (
		instrument_id BIGINT NOT NULL,
		ts_event TIMESTAMPTZ NOT NULL,
		ts_recv TIMESTAMPTZ,
		publisher_id INTEGER,
		symbol TEXT NOT NULL,
		raw_symbol TEXT NOT NULL,
		rtype SMALLINT NOT NULL DEFAULT 19,
		security_update_action CHAR(1) NOT NULL DEFAULT 'A',
		instrument_class TEXT,
		min_price_increment NUMERIC(20,8),
		display_factor NUMERIC(20,8),
		expiration TIMESTAMPTZ,
		activation TIMESTAMPTZ,
		high_limit_price NUMERIC(20,8),
		low_limit_price NUMERIC(20,8),
		max_price_variation NUMERIC(20,8),
		unit_of_measure_qty NUMERIC(20,8),
		min_price_increment_amount NUMERIC(20,8),
		price_ratio NUMERIC(20,8),
		inst_attrib_value INTEGER NOT NULL DEFAULT 0,
		underlying_id BIGINT,
		raw_instrument_id BIGINT,
		market_depth_implied INTEGER,
		market_depth INTEGER,
		market_segment_id BIGINT,
		max_trade_vol BIGINT,
		min_lot_size INTEGER NOT NULL DEFAULT 0,
		min_lot_size_block INTEGER NOT NULL DEFAULT 0,
		min_lot_size_round_lot INTEGER NOT NULL DEFAULT 0,
		min_trade_vol BIGINT NOT NULL DEFAULT 0,
		contract_multiplier INTEGER,
		decay_quantity INTEGER,
		original_contract_size INTEGER,
		appl_id SMALLINT,
		maturity_year INTEGER,
		maturity_month INTEGER,
		maturity_day INTEGER,
		maturity_week INTEGER,
		currency TEXT,
		settl_currency TEXT,
		secsubtype TEXT,
		"group" TEXT NOT NULL DEFAULT '',
		exchange TEXT,
		asset TEXT NOT NULL DEFAULT '',
		cfi TEXT,
		security_type TEXT,
		unit_of_measure TEXT,
		underlying TEXT,
		strike_price_currency TEXT,
		strike_price NUMERIC(20,8),
		match_algorithm TEXT,
		main_fraction SMALLINT,
		price_display_format SMALLINT,
		sub_fraction SMALLINT,
		underlying_product SMALLINT,
		tick_rule SMALLINT,
		leg_count INTEGER,
		leg_index INTEGER,
		leg_instrument_id BIGINT,
		leg_raw_symbol TEXT,
		leg_side CHAR(1),
		leg_ratio_qty_numerator INTEGER,
		leg_ratio_qty_denominator INTEGER,
		leg_underlying_id BIGINT,
		user_defined_instrument CHAR(1),
		contract_multiplier_unit SMALLINT,
		flow_schedule_type SMALLINT,
		tick_size_denominator SMALLINT,
		data_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (instrument_id, ts_event)
	) PARTITION BY RANGE (ts_event)`,

	`CREATE INDEX IF NOT EXISTS idx_definitions_raw_symbol ON definitions_data (raw_symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_definitions_asset_exchange ON definitions_data (asset, exchange)`,
}

// EnsureSchema creates the fact tables and their indexes if absent. Safe to
// call on every startup; DDL is IF NOT EXISTS throughout.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := r.db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
