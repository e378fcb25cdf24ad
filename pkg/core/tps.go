package core

import (
	"sync"
	"time"
)

// Rolling windows reported by the TPSMeter.
const (
	WindowShort  = time.Minute
	WindowMedium = 5 * time.Minute
	WindowLong   = 15 * time.Minute
)

// rollingAverage is a time-weighted average over a fixed number of samples.
// It starts filled with the nominal rate so a fresh server does not report
// an artificial slump.
type rollingAverage struct {
	samples []float64
	times   []time.Duration
	idx     int
	sum     float64
	total   time.Duration
}

func newRollingAverage(size int, nominal float64, interval time.Duration) *rollingAverage {
	r := &rollingAverage{
		samples: make([]float64, size),
		times:   make([]time.Duration, size),
	}
	for i := 0; i < size; i++ {
		r.samples[i] = nominal
		r.times[i] = interval
	}
	r.sum = nominal * float64(interval) * float64(size)
	r.total = interval * time.Duration(size)
	return r
}

func (r *rollingAverage) add(x float64, t time.Duration) {
	r.sum += x*float64(t) - r.samples[r.idx]*float64(r.times[r.idx])
	r.total += t - r.times[r.idx]
	r.samples[r.idx] = x
	r.times[r.idx] = t
	r.idx = (r.idx + 1) % len(r.samples)
}

func (r *rollingAverage) average() float64 {
	if r.total <= 0 {
		return 0
	}
	return r.sum / float64(r.total)
}

// TPSMeter turns tick-to-tick gaps into rolling ticks-per-second averages.
// It implements host.MetricSource.
type TPSMeter struct {
	mu      sync.Mutex
	nominal float64
	short   *rollingAverage
	medium  *rollingAverage
	long    *rollingAverage
}

// NewTPSMeter creates a meter for a loop ticking at interval.
func NewTPSMeter(interval time.Duration) *TPSMeter {
	nominal := float64(time.Second) / float64(interval)
	size := func(window time.Duration) int {
		return max(1, int(window/interval))
	}
	return &TPSMeter{
		nominal: nominal,
		short:   newRollingAverage(size(WindowShort), nominal, interval),
		medium:  newRollingAverage(size(WindowMedium), nominal, interval),
		long:    newRollingAverage(size(WindowLong), nominal, interval),
	}
}

// Record adds the wall-clock gap between two consecutive tick starts.
// Samples are kept uncapped: weighted by their gap, each tick contributes
// exactly one, so fast and slow jitter cancel out.
func (m *TPSMeter) Record(gap time.Duration) {
	if gap <= 0 {
		return
	}
	tps := float64(time.Second) / float64(gap)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.short.add(tps, gap)
	m.medium.add(tps, gap)
	m.long.add(tps, gap)
}

// Nominal returns the target tick rate.
func (m *TPSMeter) Nominal() float64 {
	return m.nominal
}

// AverageTPS implements host.MetricSource with the five minute average.
// Reported values never exceed the nominal rate.
func (m *TPSMeter) AverageTPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capped(m.medium)
}

// Averages returns the 1, 5 and 15 minute averages.
func (m *TPSMeter) Averages() [3]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return [3]float64{m.capped(m.short), m.capped(m.medium), m.capped(m.long)}
}

func (m *TPSMeter) capped(r *rollingAverage) float64 {
	return min(r.average(), m.nominal)
}
