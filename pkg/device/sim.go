package device

import (
	"math"
	"sync"
)

// Sim is an in-memory bench standing in for real hardware. The meter reads
// through a fixed sigmoid plant, so calibration sweeps against it produce a
// realistic monotonic curve. The meter models an upstream pickoff and is not
// gated by the shutter.
type Sim struct {
	mu      sync.Mutex
	control float64
	open    bool
	low     float64
	high    float64

	// plant maps control to measured power.
	plant func(control float64) float64
}

var (
	_ ControlSource = (*Sim)(nil)
	_ PowerMeter    = (*Sim)(nil)
	_ Switch        = (*Sim)(nil)
)

// NewSim returns a simulated bench with the given control bounds. The plant
// saturates at 100 mW with its inflection at the middle of the control range.
func NewSim(low, high float64) *Sim {
	sigma := (low + high) / 2
	return &Sim{
		low:  low,
		high: high,
		plant: func(control float64) float64 {
			if control <= 0 {
				return 0
			}
			return 0.1 / (1 + math.Pow(sigma/control, 4))
		},
	}
}

func (s *Sim) Get() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control, nil
}

func (s *Sim) Set(value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.control = value
	return nil
}

func (s *Sim) Bounds() (float64, float64) {
	return s.low, s.high
}

func (s *Sim) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plant(s.control), nil
}

func (s *Sim) State() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open, nil
}

func (s *Sim) SetState(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = on
	return nil
}
