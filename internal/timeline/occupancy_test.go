package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccupancy(t *testing.T) {
	tests := []struct {
		name      string
		intervals []Interval
		want      []Sample
	}{
		{
			name:      "disjoint",
			intervals: []Interval{{Start: 0, End: 10}, {Start: 20, End: 30}},
			want:      []Sample{{0, 100}, {10, 0}, {20, 100}, {30, 0}},
		},
		{
			name:      "overlapping",
			intervals: []Interval{{Start: 0, End: 10}, {Start: 5, End: 15}},
			want:      []Sample{{0, 100}, {15, 0}},
		},
		{
			name:      "nested and unordered",
			intervals: []Interval{{Start: 5, End: 8}, {Start: 0, End: 20}},
			want:      []Sample{{0, 100}, {20, 0}},
		},
		{
			name:      "touching",
			intervals: []Interval{{Start: 0, End: 10}, {Start: 10, End: 20}},
			want:      []Sample{{0, 100}, {10, 0}, {10, 100}, {20, 0}},
		},
		{
			name:      "empty intervals ignored",
			intervals: []Interval{{Start: 7, End: 7}},
			want:      nil,
		},
		{
			name: "none",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Occupancy(tt.intervals))
		})
	}
}
