package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSubBatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		n    int
		want [][2]int
	}{
		{"empty", 1000, 0, nil},
		{"single partial", 1000, 3, [][2]int{{0, 3}}},
		{"exact fit", 3, 3, [][2]int{{0, 3}}},
		{"one over", 1000, 1001, [][2]int{{0, 1000}, {1000, 1001}}},
		{"several", 2, 5, [][2]int{{0, 2}, {2, 4}, {4, 5}}},
		{"zero size uses default", 0, 1001, [][2]int{{0, 1000}, {1000, 1001}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := &Repository{SubBatchSize: tc.size}
			got := r.subBatches(tc.n)
			if len(got) != len(tc.want) {
				t.Fatalf("subBatches(%d) = %v, want %v", tc.n, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("subBatches(%d)[%d] = %v, want %v", tc.n, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTimeBounds(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	minTs, maxTs := timeBounds([]time.Time{d3, d1, d2})
	if !minTs.Equal(d1) || !maxTs.Equal(d2) {
		t.Fatalf("timeBounds = (%v, %v), want (%v, %v)", minTs, maxTs, d1, d2)
	}

	minTs, maxTs = timeBounds(nil)
	if !minTs.IsZero() || !maxTs.IsZero() {
		t.Fatalf("timeBounds(nil) = (%v, %v), want zero times", minTs, maxTs)
	}
}

func TestNullableHelpers(t *testing.T) {
	t.Parallel()

	if decPtrText(nil) != nil {
		t.Error("decPtrText(nil) != nil")
	}
	d := decimal.RequireFromString("4700.25")
	if got := decPtrText(&d); got == nil || *got != "4700.25" {
		t.Errorf("decPtrText = %v", got)
	}

	if u32Ptr(nil) != nil || u64Ptr(nil) != nil {
		t.Error("uint pointer helpers should map nil to nil")
	}
	v32 := uint32(7)
	if got := u32Ptr(&v32); got == nil || *got != 7 {
		t.Errorf("u32Ptr = %v", got)
	}

	if timePtr(time.Time{}) != nil {
		t.Error("timePtr(zero) != nil")
	}
	now := time.Now()
	if got := timePtr(now); got == nil || !got.Equal(now) {
		t.Errorf("timePtr = %v", got)
	}

	if strPtr("") != nil {
		t.Error("strPtr empty should be nil")
	}
	if got := strPtr("CME"); got == nil || *got != "CME" {
		t.Errorf("strPtr = %v", got)
	}

	u8 := uint8(200)
	if got := u8Ptr(&u8); got == nil || *got != 200 {
		t.Errorf("u8Ptr = %v", got)
	}
	i8 := int8(-3)
	if got := i8Ptr(&i8); got == nil || *got != -3 {
		t.Errorf("i8Ptr = %v", got)
	}
	u16 := uint16(60000)
	if got := u16Ptr(&u16); got == nil || *got != 60000 {
		t.Errorf("u16Ptr = %v", got)
	}
}

func TestPartitionCacheKey(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	if got := partitionCacheKey(TableTrades, day); got != "trades_data:20240102" {
		t.Fatalf("partitionCacheKey = %q", got)
	}
}
