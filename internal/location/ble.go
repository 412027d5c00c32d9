package location

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/bt"
	"github.com/saraylo/assessment-trainer/internal/clock"
	"github.com/saraylo/assessment-trainer/internal/go_func_utils"
)

// staleIntervals is how many sample intervals may pass without a notification
// before the footpod is reported as lost.
const staleIntervals = 5

// BLEOptions configures a BLEProvider.
type BLEOptions struct {
	Address     string // empty connects to the first footpod found
	ScanTimeout time.Duration
}

// BLEProvider reads speed from a Bluetooth running speed and cadence sensor.
// Notifications faster than the sample interval are thinned out.
type BLEProvider struct {
	manager bt.BTManagerInterface
	opts    BLEOptions
	clk     clock.Clock
	logger  *log.Logger

	mu           sync.Mutex
	gen          uint64
	running      bool
	device       bt.BTDevice
	interval     time.Duration
	lastEmit     time.Time
	lastNotify   time.Time
	watchdog     clock.Timer
	onSample     func(assessment.SpeedDataPoint)
	onError      func(string)
	parseErrors  int
	lastDistance float64
}

func NewBLEProvider(manager bt.BTManagerInterface, opts BLEOptions, clk clock.Clock, logger *log.Logger) *BLEProvider {
	if manager == nil {
		panic("BLEProvider: manager cannot be nil")
	}
	if clk == nil {
		panic("BLEProvider: clock cannot be nil")
	}
	if logger == nil {
		panic("BLEProvider: logger cannot be nil")
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 30 * time.Second
	}
	return &BLEProvider{manager: manager, opts: opts, clk: clk, logger: logger}
}

// StartCollecting connects in the background. Connection failures are
// reported through onError.
func (p *BLEProvider) StartCollecting(onSample func(assessment.SpeedDataPoint), onError func(string), interval time.Duration) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.running = true
	p.interval = interval
	p.onSample = onSample
	p.onError = onError
	p.lastEmit = time.Time{}
	device := p.device
	p.mu.Unlock()

	if device != nil && device.IsConnected() {
		return p.subscribe(gen, device)
	}
	go_func_utils.SafeGo(p.logger, "ble connect", func() { p.connect(gen) })
	return nil
}

// StopCollecting unsubscribes without waiting for the radio.
func (p *BLEProvider) StopCollecting() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.gen++
	if p.watchdog != nil {
		p.watchdog.Stop()
		p.watchdog = nil
	}
	device := p.device
	p.mu.Unlock()

	if device == nil {
		return
	}
	go_func_utils.SafeGo(p.logger, "ble unsubscribe", func() {
		if err := device.DisableNotifications(bt.ServiceUUIDRunningSpeedCadence, bt.CharUUIDRSCMeasurement); err != nil {
			p.logger.Printf("BLEProvider: disable notifications: %v", err)
		}
	})
}

// Close disconnects the footpod.
func (p *BLEProvider) Close() error {
	p.StopCollecting()
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.mu.Unlock()
	if device == nil {
		return nil
	}
	return p.manager.Disconnect(device)
}

func (p *BLEProvider) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && gen == p.gen
}

func (p *BLEProvider) connect(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ScanTimeout)
	defer cancel()

	p.manager.StartScan([]string{bt.ServiceUUIDRunningSpeedCadence})
	device, err := p.manager.WaitForDevice(ctx, p.opts.Address)
	if stopErr := p.manager.StopScan(); stopErr != nil {
		p.logger.Printf("BLEProvider: stop scan: %v", stopErr)
	}
	if err != nil {
		p.fail(gen, fmt.Sprintf("footpod scan: %v", err))
		return
	}
	if !p.current(gen) {
		return
	}

	p.logger.Printf("BLEProvider: connecting to %s (%s)", device.GetLocalName(), device.GetAddressString())
	if err := p.manager.Connect(device); err != nil {
		p.fail(gen, fmt.Sprintf("footpod connect: %v", err))
		return
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()

	if err := p.subscribe(gen, device); err != nil {
		p.fail(gen, err.Error())
	}
}

func (p *BLEProvider) subscribe(gen uint64, device bt.BTDevice) error {
	err := device.EnableNotifications(bt.ServiceUUIDRunningSpeedCadence, bt.CharUUIDRSCMeasurement, func(buf []byte) {
		p.handleNotification(gen, buf)
	})
	if err != nil {
		return fmt.Errorf("footpod subscribe: %w", err)
	}

	p.mu.Lock()
	p.lastNotify = p.clk.Now()
	p.armWatchdogLocked(gen)
	p.mu.Unlock()
	p.logger.Printf("BLEProvider: subscribed to %s", device.GetAddressString())
	return nil
}

func (p *BLEProvider) armWatchdogLocked(gen uint64) {
	if p.watchdog != nil {
		p.watchdog.Stop()
	}
	p.watchdog = p.clk.AfterFunc(staleIntervals*p.interval, func() { p.checkStale(gen) })
}

func (p *BLEProvider) checkStale(gen uint64) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	silent := p.clk.Now().Sub(p.lastNotify)
	if silent < staleIntervals*p.interval {
		p.armWatchdogLocked(gen)
		p.mu.Unlock()
		return
	}
	p.watchdog = nil
	cb := p.onError
	p.mu.Unlock()

	cb(fmt.Sprintf("no footpod data for %v", silent.Round(time.Second)))
}

func (p *BLEProvider) handleNotification(gen uint64, buf []byte) {
	m, err := bt.ParseRSCMeasurement(buf)

	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	now := p.clk.Now()
	if err != nil {
		p.parseErrors++
		p.mu.Unlock()
		p.logger.Printf("BLEProvider: parse error: %v (raw: %v)", err, buf)
		return
	}
	p.lastNotify = now
	if m.HasTotalDistance {
		p.lastDistance = m.TotalDistanceM
	}
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.interval {
		p.mu.Unlock()
		return
	}
	p.lastEmit = now
	cb := p.onSample
	p.mu.Unlock()

	cb(assessment.SpeedDataPoint{Speed: m.SpeedMps, Timestamp: now.UnixMilli()})
}

// TotalDistance returns the last distance reported by the footpod, in meters.
func (p *BLEProvider) TotalDistance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDistance
}

func (p *BLEProvider) fail(gen uint64, message string) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		p.logger.Printf("BLEProvider: ignoring stale failure: %s", message)
		return
	}
	cb := p.onError
	p.mu.Unlock()

	p.logger.Printf("BLEProvider: %s", message)
	cb(message)
}
