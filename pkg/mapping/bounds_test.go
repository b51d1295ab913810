package mapping

import (
	"errors"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestEffectiveBoundsNoOverride(t *testing.T) {
	b, err := EffectiveBounds(0, 10, Override{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Low != 0 || b.High != 10 {
		t.Fatalf("expected [0, 10], got %v", b)
	}
}

func TestEffectiveBoundsTighterLow(t *testing.T) {
	b, err := EffectiveBounds(0, 10, Override{Low: fptr(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Low != 2 || b.High != 10 {
		t.Fatalf("expected [2, 10], got %v", b)
	}
}

func TestEffectiveBoundsTighterBothSides(t *testing.T) {
	b, err := EffectiveBounds(0, 10, Override{Low: fptr(1), High: fptr(8)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Low != 1 || b.High != 8 {
		t.Fatalf("expected [1, 8], got %v", b)
	}
}

func TestEffectiveBoundsOverrideWiderThanHardware(t *testing.T) {
	// An override cannot widen what the hardware allows.
	b, err := EffectiveBounds(0, 5, Override{Low: fptr(-2), High: fptr(100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Low != 0 || b.High != 5 {
		t.Fatalf("expected hardware limits [0, 5], got %v", b)
	}
}

func TestEffectiveBoundsEmpty(t *testing.T) {
	_, err := EffectiveBounds(0, 10, Override{Low: fptr(8), High: fptr(3)})
	if !errors.Is(err, ErrBoundsEmpty) {
		t.Fatalf("expected ErrBoundsEmpty, got %v", err)
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{Low: 1, High: 3}
	if !b.Contains(1) || !b.Contains(3) || !b.Contains(2) {
		t.Fatalf("endpoints and interior should be contained")
	}
	if b.Contains(0.999) || b.Contains(3.001) {
		t.Fatalf("values outside the interval should not be contained")
	}
}
