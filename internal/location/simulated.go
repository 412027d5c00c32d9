package location

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/clock"
)

// SimulatedOptions configures a SimulatedProvider.
type SimulatedOptions struct {
	Speed   float64 // base speed in m/s
	Jitter  float64 // standard deviation of the noise added to each sample, m/s
	Dropout float64 // probability in [0,1] that a sample is lost
	Seed    int64
}

// SimulatedProvider emits a noisy constant speed on the clock. It stands in
// for a real sensor in demos and tests.
type SimulatedProvider struct {
	clk    clock.Clock
	logger *log.Logger

	mu       sync.Mutex
	speed    float64
	jitter   float64
	dropout  float64
	rng      *rand.Rand
	running  bool
	gen      uint64
	emitted  int
	dropped  int
	onSample func(assessment.SpeedDataPoint)
	onError  func(string)
}

func NewSimulatedProvider(opts SimulatedOptions, clk clock.Clock, logger *log.Logger) *SimulatedProvider {
	if clk == nil {
		panic("SimulatedProvider: clock cannot be nil")
	}
	if logger == nil {
		panic("SimulatedProvider: logger cannot be nil")
	}
	return &SimulatedProvider{
		clk:     clk,
		logger:  logger,
		speed:   opts.Speed,
		jitter:  opts.Jitter,
		dropout: min(1, max(0, opts.Dropout)),
		rng:     rand.New(rand.NewSource(opts.Seed)),
	}
}

// StartCollecting starts emitting one sample per interval, replacing any
// previous run.
func (p *SimulatedProvider) StartCollecting(onSample func(assessment.SpeedDataPoint), onError func(string), interval time.Duration) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.running = true
	p.onSample = onSample
	p.onError = onError
	speed := p.speed
	p.mu.Unlock()

	p.logger.Printf("SimulatedProvider: collecting every %v at %.2f m/s", interval, speed)
	p.schedule(gen, interval)
	return nil
}

func (p *SimulatedProvider) StopCollecting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.gen++
	p.logger.Printf("SimulatedProvider: stopped after %d samples (%d dropped)", p.emitted, p.dropped)
}

// SetSpeed changes the base speed of subsequent samples.
func (p *SimulatedProvider) SetSpeed(speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = speed
}

// Speed returns the current base speed.
func (p *SimulatedProvider) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// InjectError reports a transport failure as a real sensor would.
func (p *SimulatedProvider) InjectError(message string) {
	p.mu.Lock()
	cb := p.onError
	running := p.running
	p.mu.Unlock()
	if running && cb != nil {
		cb(message)
	}
}

func (p *SimulatedProvider) schedule(gen uint64, interval time.Duration) {
	p.clk.AfterFunc(interval, func() { p.tick(gen, interval) })
}

func (p *SimulatedProvider) tick(gen uint64, interval time.Duration) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.dropout > 0 && p.rng.Float64() < p.dropout {
		p.dropped++
		p.mu.Unlock()
		p.schedule(gen, interval)
		return
	}
	speed := p.speed
	if p.jitter > 0 {
		speed += p.rng.NormFloat64() * p.jitter
	}
	speed = max(0, speed)
	p.emitted++
	cb := p.onSample
	p.mu.Unlock()

	cb(assessment.SpeedDataPoint{Speed: speed, Timestamp: p.clk.Now().UnixMilli()})
	p.schedule(gen, interval)
}
