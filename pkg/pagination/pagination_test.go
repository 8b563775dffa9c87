package pagination_test

import (
	"testing"

	"stockledger/pkg/pagination"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		limit      int
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults applied", 0, 0, 1, 20, 0},
		{"negative page clamped", -3, 10, 1, 10, 0},
		{"limit capped", 2, 500, 2, 100, 100},
		{"plain values", 3, 25, 3, 25, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pagination.Normalize(tt.page, tt.limit)
			if got.Page != tt.wantPage || got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("Normalize(%d, %d) = %+v, want page %d limit %d offset %d",
					tt.page, tt.limit, got, tt.wantPage, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
