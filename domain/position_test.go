package domain

import "testing"

func TestPositionForStepAndCap(t *testing.T) {
	testCases := map[string]struct {
		index int
		want  int
	}{
		"first":        {index: 0, want: 1000},
		"second":       {index: 1, want: 2000},
		"tenth":        {index: 9, want: 10000},
		"last_in_step": {index: 999, want: 1_000_000},
		"saturated":    {index: 1000, want: 1_000_000},
		"deep":         {index: 5000, want: 1_000_000},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := PositionFor(tc.index); got != tc.want {
				t.Fatalf("PositionFor(%d) = %d, want %d", tc.index, got, tc.want)
			}
		})
	}
}

func TestPositionForStrictlyIncreasingUntilCap(t *testing.T) {
	prev := 0
	for i := 0; i < 1000; i++ {
		p := PositionFor(i)
		if p <= prev {
			t.Fatalf("position not increasing at index %d: %d <= %d", i, p, prev)
		}
		prev = p
	}
	if PositionFor(1000) != PositionFor(999) {
		t.Fatalf("expected saturation at index 1000")
	}
}

func TestValidPosition(t *testing.T) {
	for _, p := range []int{1000, 2000, 1_000_000} {
		if !ValidPosition(p) {
			t.Fatalf("expected %d to be valid", p)
		}
	}
	for _, p := range []int{0, 999, -1000, 1_000_001} {
		if ValidPosition(p) {
			t.Fatalf("expected %d to be invalid", p)
		}
	}
}

func TestColumnSaturated(t *testing.T) {
	if ColumnSaturated(1000) {
		t.Fatalf("1000 cards should fit without capping")
	}
	if !ColumnSaturated(1001) {
		t.Fatalf("1001 cards should saturate the position range")
	}
}
