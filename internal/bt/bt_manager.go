package bt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/events"
	"github.com/saraylo/assessment-trainer/internal/go_func_utils"

	"tinygo.org/x/bluetooth"
)

const (
	defaultScanTimeout = 10 * time.Second
	connectTimeout     = 15 * time.Second
)

// BTManagerInterface is the part of the manager the sample providers use.
type BTManagerInterface interface {
	Enable() error
	StartScan(serviceUuidFilter []string)
	StopScan() error
	IsScanning() bool
	WaitForDevice(ctx context.Context, address string) (BTDevice, error)
	Connect(device BTDevice) error
	Disconnect(device BTDevice) error
	GetScanDevices() []BTDevice
	ListenToDeviceList(ch chan<- []BTDevice) func()
	Shutdown()
}

var _ BTManagerInterface = (*BTManager)(nil)

// BTManager owns the adapter: it scans, tracks recently seen devices and
// connects to footpods.
type BTManager struct {
	adapter             *bluetooth.Adapter
	logger              *log.Logger
	scanTimeout         time.Duration
	scanDeviceListEvent *events.ChannelEvent[[]BTDevice]

	mu                sync.RWMutex
	devicesByAddress  map[string]*btDeviceImpl
	scanning          bool
	scanContext       context.Context
	scanContextCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBTManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *BTManager {
	if adapter == nil {
		panic("BTManager: adapter cannot be nil")
	}
	if logger == nil {
		panic("BTManager: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = defaultScanTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BTManager{
		adapter:             adapter,
		logger:              logger,
		scanTimeout:         scanTimeout,
		scanDeviceListEvent: events.NewChannelEvent[[]BTDevice](true),
		devicesByAddress:    make(map[string]*btDeviceImpl),
		ctx:                 ctx,
		cancel:              cancel,
	}
}

func (m *BTManager) getOrCreateDevice(address bluetooth.Address) (*btDeviceImpl, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := address.String()
	d, ok := m.devicesByAddress[key]
	if !ok {
		d = newBtDeviceImpl(m.logger, address, m.scanTimeout)
		m.devicesByAddress[key] = d
	}
	return d, !ok
}

func (m *BTManager) lookup(address string) *btDeviceImpl {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devicesByAddress[address]
}

// Enable powers the adapter and tracks connection changes.
func (m *BTManager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		d, _ := m.getOrCreateDevice(device.Address)
		if connected {
			m.logger.Printf("BTManager: device connected: %s", device.Address.String())
			d.setConnected(&device)
		} else {
			m.logger.Printf("BTManager: device disconnected: %s", device.Address.String())
			d.setConnected(nil)
		}
	})
	return m.adapter.Enable()
}

// StartScan scans for devices advertising one of serviceUuidFilter, or for
// every device when the filter is empty. A running scan is replaced.
func (m *BTManager) StartScan(serviceUuidFilter []string) {
	filterSet := make(map[string]struct{}, len(serviceUuidFilter))
	for _, f := range serviceUuidFilter {
		filterSet[f] = struct{}{}
	}

	m.mu.Lock()
	if m.scanning && m.scanContextCancel != nil {
		m.logger.Printf("BTManager: replacing running scan")
		m.scanContextCancel()
	}
	m.scanning = true
	scanCtx, cancel := context.WithCancel(m.ctx)
	m.scanContext, m.scanContextCancel = scanCtx, cancel
	m.mu.Unlock()

	m.logger.Printf("BTManager: starting scan, filter %v", serviceUuidFilter)

	go_func_utils.SafeGoWG(&m.wg, m.logger, "bt scan", func() {
		err := m.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				return
			}
			if len(filterSet) > 0 && !matchesFilter(result, filterSet) {
				return
			}
			d, isNew := m.getOrCreateDevice(result.Address)
			d.updateScan(result, time.Now())
			if isNew {
				m.logger.Printf("BTManager: found %s (%s) [RSSI: %d]", d.GetLocalName(), result.Address.String(), result.RSSI)
			}
		})
		if err != nil {
			m.logger.Printf("BTManager: scan error: %v", err)
		}
	})

	go_func_utils.SafeGoWG(&m.wg, m.logger, "bt scan list", func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
				m.pruneStaleDevices()
				m.scanDeviceListEvent.Notify(m.GetScanDevices())
			}
		}
	})
}

func matchesFilter(result bluetooth.ScanResult, filterSet map[string]struct{}) bool {
	for _, uuid := range result.ServiceUUIDs() {
		if _, ok := filterSet[uuid.String()]; ok {
			return true
		}
	}
	return false
}

func (m *BTManager) pruneStaleDevices() {
	now := time.Now()
	var removed []string
	m.mu.Lock()
	for addr, d := range m.devicesByAddress {
		if !d.IsConnected() && now.Sub(d.GetScanLastSeen()) > m.scanTimeout {
			delete(m.devicesByAddress, addr)
			removed = append(removed, addr)
		}
	}
	m.mu.Unlock()

	for _, addr := range removed {
		m.logger.Printf("BTManager: device timeout: %s (not seen for %v)", addr, m.scanTimeout)
	}
}

func (m *BTManager) StopScan() error {
	m.mu.Lock()
	wasScanning := m.scanning
	m.scanning = false
	if m.scanContextCancel != nil {
		m.scanContextCancel()
		m.scanContextCancel = nil
	}
	m.mu.Unlock()

	if !wasScanning {
		return nil
	}
	return m.adapter.StopScan()
}

func (m *BTManager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

// WaitForDevice blocks until a device is seen by the running scan. An empty
// address accepts the first device found.
func (m *BTManager) WaitForDevice(ctx context.Context, address string) (BTDevice, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if address != "" {
			if d := m.lookup(address); d != nil && d.isRecentlyScanned(time.Now()) {
				return d, nil
			}
		} else if devices := m.GetScanDevices(); len(devices) > 0 {
			return devices[0], nil
		}

		select {
		case <-ctx.Done():
			if address == "" {
				return nil, fmt.Errorf("no device found: %w", ctx.Err())
			}
			return nil, fmt.Errorf("device %s not found: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Connect connects to device and waits until the adapter reports the connection.
func (m *BTManager) Connect(device BTDevice) error {
	address := device.GetAddressString()
	d := m.lookup(address)
	if d == nil {
		return fmt.Errorf("could not find device %s", address)
	}

	m.logger.Printf("BTManager: connecting to %s", address)
	d.setState(Connecting)
	connected, err := m.adapter.Connect(d.address, bluetooth.ConnectionParams{})
	if err != nil {
		d.setState(Disconnected)
		m.logger.Printf("BTManager: connection error: %v", err)
		return err
	}
	// some stacks never call the connect handler for outgoing connections
	if !d.IsConnected() {
		d.setConnected(&connected)
	}
	return d.WaitForConnection(connectTimeout)
}

func (m *BTManager) Disconnect(device BTDevice) error {
	address := device.GetAddressString()
	d := m.lookup(address)
	if d == nil {
		return fmt.Errorf("could not find device %s", address)
	}
	inner := d.getConnectedDevice()
	if inner == nil {
		return nil
	}
	m.logger.Printf("BTManager: disconnecting from %s", address)
	if err := inner.Disconnect(); err != nil {
		return err
	}
	d.setConnected(nil)
	return nil
}

// GetScanDevices returns the devices seen within the scan timeout.
func (m *BTManager) GetScanDevices() []BTDevice {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]BTDevice, 0, len(m.devicesByAddress))
	for _, d := range m.devicesByAddress {
		if d.isRecentlyScanned(now) {
			result = append(result, d)
		}
	}
	return result
}

// ListenToDeviceList registers a channel receiving the scan list once per second.
func (m *BTManager) ListenToDeviceList(ch chan<- []BTDevice) func() {
	return m.scanDeviceListEvent.Listen(ch)
}

// Shutdown disconnects every device, stops scanning and waits for the workers.
func (m *BTManager) Shutdown() {
	m.logger.Println("BTManager: shutting down")
	m.mu.RLock()
	var connected []BTDevice
	for _, d := range m.devicesByAddress {
		if d.IsConnected() {
			connected = append(connected, d)
		}
	}
	m.mu.RUnlock()

	for _, d := range connected {
		if err := m.Disconnect(d); err != nil {
			m.logger.Printf("BTManager: error disconnecting from %v: %v", d.GetAddressString(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("BTManager: error stopping scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("BTManager: shutdown complete")
}
