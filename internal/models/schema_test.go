package models

import "testing"

func TestNormalizeSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"ohlcv", "ohlcv-1d"},
		{"ohlcv-1d", "ohlcv-1d"},
		{"OHLCV", "ohlcv-1d"},
		{"stats", "statistics"},
		{"statistics", "statistics"},
		{"definitions", "definition"},
		{"definition", "definition"},
		{" trades ", "trades"},
		{"tbbo", "tbbo"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeSchema(tc.in); got != tc.want {
				t.Fatalf("NormalizeSchema(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestKindForSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		schema   string
		wantKind RecordKind
		wantGran Granularity
		wantErr  bool
	}{
		{"ohlcv-1d", KindOhlcv, Granularity1D, false},
		{"ohlcv-1h", KindOhlcv, Granularity1H, false},
		{"ohlcv", KindOhlcv, Granularity1D, false},
		{"ohlcv-5m", "", "", true},
		{"trades", KindTrade, "", false},
		{"tbbo", KindTbbo, "", false},
		{"stats", KindStatistics, "", false},
		{"definitions", KindDefinition, "", false},
		{"mbo", "", "", true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.schema, func(t *testing.T) {
			t.Parallel()
			kind, gran, err := KindForSchema(tc.schema)
			if (err != nil) != tc.wantErr {
				t.Fatalf("KindForSchema(%q) error = %v, wantErr %v", tc.schema, err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if kind != tc.wantKind || gran != tc.wantGran {
				t.Fatalf("KindForSchema(%q) = (%q, %q), want (%q, %q)", tc.schema, kind, gran, tc.wantKind, tc.wantGran)
			}
		})
	}
}
