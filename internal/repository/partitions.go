package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const partitionLookaheadDays = 2

// partitionCache tracks which (table, day) partitions have already been
// ensured this process lifetime, avoiding redundant DB round-trips.
var (
	partitionCacheMu sync.Mutex
	partitionCache   = make(map[string]bool)
)

func partitionCacheKey(table string, day time.Time) string {
	return fmt.Sprintf("%s:%s", table, day.Format("20060102"))
}

// EnsureDayPartitions creates one-day partitions covering [minTs, maxTs] for
// a fact table, plus a small lookahead. Cheap when already present.
func (r *Repository) EnsureDayPartitions(ctx context.Context, table string, minTs, maxTs time.Time) error {
	if minTs.IsZero() || maxTs.IsZero() {
		return fmt.Errorf("ensure partitions for %s: zero time bound", table)
	}
	start := minTs.UTC().Truncate(24 * time.Hour)
	end := maxTs.UTC().Truncate(24 * time.Hour).AddDate(0, 0, partitionLookaheadDays)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := partitionCacheKey(table, day)

		partitionCacheMu.Lock()
		cached := partitionCache[key]
		partitionCacheMu.Unlock()
		if cached {
			continue
		}

		next := day.AddDate(0, 0, 1)
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s_p%s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
			table, day.Format("20060102"), table,
			day.Format("2006-01-02"), next.Format("2006-01-02"),
		)
		if _, err := r.db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create partition %s for %s: %w", day.Format("2006-01-02"), table, err)
		}

		partitionCacheMu.Lock()
		partitionCache[key] = true
		partitionCacheMu.Unlock()
	}
	return nil
}

// timeBounds returns the min and max of a ts_event column across rows.
func timeBounds(ts []time.Time) (time.Time, time.Time) {
	if len(ts) == 0 {
		return time.Time{}, time.Time{}
	}
	minTs, maxTs := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(minTs) {
			minTs = t
		}
		if t.After(maxTs) {
			maxTs = t
		}
	}
	return minTs, maxTs
}
