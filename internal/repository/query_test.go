package repository

import (
	"testing"
	"time"
)

func TestRangeClauses(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	arg := 1
	var args []any
	clauses := rangeClauses(&start, &end, &arg, &args)
	if len(clauses) != 2 {
		t.Fatalf("clauses = %v", clauses)
	}
	if clauses[0] != "ts_event >= $1" || clauses[1] != "ts_event < $2" {
		t.Fatalf("clauses = %v", clauses)
	}
	// The end date is an inclusive calendar date.
	if got := args[1].(time.Time); !got.Equal(end.AddDate(0, 0, 1)) {
		t.Fatalf("end bound = %v, want %v", got, end.AddDate(0, 0, 1))
	}
	if arg != 3 {
		t.Fatalf("arg = %d, want 3", arg)
	}

	arg = 1
	args = nil
	if got := rangeClauses(nil, nil, &arg, &args); len(got) != 0 {
		t.Fatalf("open range produced clauses: %v", got)
	}
}

func TestWhereSQL(t *testing.T) {
	t.Parallel()

	if got := whereSQL(nil); got != "" {
		t.Errorf("whereSQL(nil) = %q", got)
	}
	got := whereSQL([]string{"a = $1", "b = $2"})
	if got != "WHERE a = $1 AND b = $2" {
		t.Errorf("whereSQL = %q", got)
	}
}

func TestLimitSQL(t *testing.T) {
	t.Parallel()

	arg := 3
	var args []any
	if got := limitSQL(0, &arg, &args); got != "" || len(args) != 0 {
		t.Fatalf("limitSQL(0) = %q, args=%v", got, args)
	}
	got := limitSQL(500, &arg, &args)
	if got != "LIMIT $3" || args[0] != 500 || arg != 4 {
		t.Fatalf("limitSQL(500) = %q, args=%v, arg=%d", got, args, arg)
	}
}

func TestEnrichSymbol(t *testing.T) {
	t.Parallel()

	lookup := map[int64]string{5602: "ES.c.0"}

	sym := "stale"
	enrichSymbol(&sym, 5602, lookup)
	if sym != "ES.c.0" {
		t.Errorf("resolved symbol = %q", sym)
	}

	sym = "stale"
	enrichSymbol(&sym, 9999, lookup)
	if sym != "UNKNOWN" {
		t.Errorf("miss should become UNKNOWN, got %q", sym)
	}

	// nil lookup means resolution went through the denormalized column; the
	// stored symbol stands.
	sym = "stored"
	enrichSymbol(&sym, 5602, nil)
	if sym != "stored" {
		t.Errorf("symbol overwritten without lookup: %q", sym)
	}
}
