package marketfeed

import (
	"strconv"
	"testing"
)

func makeInstruments(n int) []Instrument {
	out := make([]Instrument, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Instrument{
			ExchangeSegment: SegmentNSEEquity,
			SecurityID:      strconv.Itoa(1000 + i),
		})
	}
	return out
}

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		max        int
		wantCount  int
		wantSizes  []int
	}{
		{"exact multiple", 200, 100, 2, []int{100, 100}},
		{"remainder", 250, 100, 3, []int{100, 100, 50}},
		{"under one batch", 7, 100, 1, []int{7}},
		{"single cap", 3, 1, 3, []int{1, 1, 1}},
		{"depth20 cap", 120, 50, 3, []int{50, 50, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := SplitBatches(makeInstruments(tt.count), tt.max)
			if len(batches) != tt.wantCount {
				t.Fatalf("got %d batches, want %d", len(batches), tt.wantCount)
			}
			for i, want := range tt.wantSizes {
				if len(batches[i]) != want {
					t.Errorf("batch %d: %d instruments, want %d", i, len(batches[i]), want)
				}
			}
		})
	}
}

func TestSplitBatches_PreservesOrder(t *testing.T) {
	instruments := makeInstruments(250)
	batches := SplitBatches(instruments, 100)

	var flat []Instrument
	for _, b := range batches {
		flat = append(flat, b...)
	}

	if len(flat) != len(instruments) {
		t.Fatalf("concatenated %d instruments, want %d", len(flat), len(instruments))
	}
	for i := range instruments {
		if flat[i] != instruments[i] {
			t.Fatalf("instrument %d: got %+v, want %+v", i, flat[i], instruments[i])
		}
	}
}

func TestSplitBatches_Degenerate(t *testing.T) {
	if got := SplitBatches(nil, 100); got != nil {
		t.Errorf("nil input: got %v, want nil", got)
	}
	if got := SplitBatches(makeInstruments(5), 0); got != nil {
		t.Errorf("zero cap: got %v, want nil", got)
	}
	if got := SplitBatches(makeInstruments(5), -1); got != nil {
		t.Errorf("negative cap: got %v, want nil", got)
	}
}
