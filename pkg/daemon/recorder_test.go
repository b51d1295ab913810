package daemon

import (
	"testing"
	"time"
)

func TestReadingLogSince(t *testing.T) {
	now := time.Now()
	type sample struct {
		power float64
		at    time.Time
	}
	all := []sample{
		{0.010, now.Add(-30 * time.Second)},
		{0.020, now.Add(-20 * time.Second)},
		{0.030, now.Add(-10 * time.Second)},
	}
	tests := []struct {
		name    string
		samples []sample
		cutoff  time.Time
		want    []float64
	}{
		{
			name:    "window selects the tail",
			samples: all,
			cutoff:  now.Add(-15 * time.Second),
			want:    []float64{0.030},
		},
		{
			name:    "window covers everything",
			samples: all,
			cutoff:  now.Add(-time.Minute),
			want:    []float64{0.010, 0.020, 0.030},
		},
		{
			name:    "window after the last sample",
			samples: all,
			cutoff:  now,
			want:    nil,
		},
		{
			name:   "empty log",
			cutoff: now.Add(-time.Minute),
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReadingLog(10)
			for _, s := range tt.samples {
				r.add(s.power, s.at)
			}
			got := r.since(tt.cutoff)
			if len(got) != len(tt.want) {
				t.Fatalf("since() returned %d samples, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Power != tt.want[i] {
					t.Errorf("since()[%d].Power = %v, want %v", i, got[i].Power, tt.want[i])
				}
			}
		})
	}
}

func TestReadingLogTrim(t *testing.T) {
	r := newReadingLog(3)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		r.add(float64(i), base.Add(time.Duration(i)*time.Second))
	}

	got := r.since(base.Add(-time.Second))
	if len(got) != 3 {
		t.Fatalf("log kept %d samples, want 3", len(got))
	}
	if got[0].Power != 2 || got[2].Power != 4 {
		t.Fatalf("log kept %v, want the newest three", got)
	}

	last, ok := r.last()
	if !ok || last.Power != 4 {
		t.Fatalf("last() = %v, %v; want newest sample", last, ok)
	}
}

func TestReadingLogLastEmpty(t *testing.T) {
	r := newReadingLog(3)
	if _, ok := r.last(); ok {
		t.Fatalf("last() on empty log reported a sample")
	}
}
