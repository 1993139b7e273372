package repository

import (
	"context"
	"fmt"
	"log"
)

// ResolveSymbols maps business symbols to instrument ids via the definitions
// table. The same symbol may have mapped to different ids over time; all are
// returned. ok is false when the definitions table is empty or unreadable,
// in which case callers fall back to the denormalized symbol column.
func (r *Repository) ResolveSymbols(ctx context.Context, symbols []string) (ids []int64, ok bool) {
	if len(symbols) == 0 {
		return nil, false
	}

	populated, err := r.DefinitionsPopulated(ctx)
	if err != nil {
		log.Printf("[query] definitions lookup unavailable, falling back to symbol column: %v", err)
		return nil, false
	}
	if !populated {
		return nil, false
	}

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT instrument_id
		FROM definitions_data
		WHERE raw_symbol = ANY($1) OR symbol = ANY($1)`,
		symbols,
	)
	if err != nil {
		log.Printf("[query] symbol resolution failed, falling back to symbol column: %v", err)
		return nil, false
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Printf("[query] symbol resolution scan failed: %v", err)
			return nil, false
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

// DefinitionsPopulated reports whether the definitions table exists and has
// at least one row.
func (r *Repository) DefinitionsPopulated(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		TableDefinitions,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check definitions table: %w", err)
	}
	if !exists {
		return false, nil
	}

	var hasRows bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM definitions_data)`).Scan(&hasRows); err != nil {
		return false, fmt.Errorf("check definitions rows: %w", err)
	}
	return hasRows, nil
}

// symbolByInstrument fetches the latest known symbol for each instrument id
// in one lookup. Missing ids are simply absent from the map; callers label
// those rows UNKNOWN.
func (r *Repository) symbolByInstrument(ctx context.Context, ids []int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out
	}

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (instrument_id) instrument_id, raw_symbol
		FROM definitions_data
		WHERE instrument_id = ANY($1)
		ORDER BY instrument_id, ts_event DESC`,
		ids,
	)
	if err != nil {
		log.Printf("[query] symbol enrichment lookup failed: %v", err)
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var sym string
		if err := rows.Scan(&id, &sym); err != nil {
			log.Printf("[query] symbol enrichment scan failed: %v", err)
			return out
		}
		out[id] = sym
	}
	return out
}

// AvailableSymbols lists every distinct symbol known to the store: the
// definitions table when populated, otherwise the denormalized symbol column
// of the OHLCV facts.
func (r *Repository) AvailableSymbols(ctx context.Context) ([]string, error) {
	populated, err := r.DefinitionsPopulated(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT DISTINCT symbol FROM daily_ohlcv_data ORDER BY symbol`
	if populated {
		query = `SELECT DISTINCT raw_symbol FROM definitions_data ORDER BY raw_symbol`
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list available symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
