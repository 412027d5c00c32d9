package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

type BTDeviceState int

const (
	Disconnected BTDeviceState = iota
	Connecting
	Connected
)

func (s BTDeviceState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	default:
		return "Unknown"
	}
}

// BTDevice is a scanned or connected peripheral.
type BTDevice interface {
	GetAddressString() string
	GetLocalName() string
	GetScanRSSI() (int16, error)
	GetScanLastSeen() time.Time
	IsConnected() bool
	GetState() BTDeviceState
	HasServiceUUID(uuid string) bool
	WaitForConnection(timeout time.Duration) error
	EnableNotifications(serviceUuid string, characteristicUuid string, callbackFunc func(buf []byte)) error
	DisableNotifications(serviceUuid string, characteristicUuid string) error
	ReadCharacteristic(serviceUuid string, characteristicUuid string) ([]byte, error)
}

type btDeviceImpl struct {
	address         bluetooth.Address
	logger          *log.Logger
	scanTimeout     time.Duration
	mu              sync.Mutex
	bleMu           sync.Mutex // serializes characteristic operations
	scanLastSeen    time.Time
	scanResult      *bluetooth.ScanResult
	connectedDevice *bluetooth.Device // nil while disconnected
	state           BTDeviceState
	serviceUuidStrs []string

	// discovery caches, guarded by bleMu
	services              map[string]*bluetooth.DeviceService
	characteristics       map[string]*bluetooth.DeviceCharacteristic
	serviceCharsFound     map[string]bool
	allServicesDiscovered bool
}

func newBtDeviceImpl(logger *log.Logger, address bluetooth.Address, scanTimeout time.Duration) *btDeviceImpl {
	if logger == nil {
		panic("BTDevice: logger cannot be nil")
	}
	if scanTimeout <= 0 {
		panic("BTDevice: scanTimeout must be > 0")
	}
	return &btDeviceImpl{
		logger:            logger,
		address:           address,
		scanTimeout:       scanTimeout,
		scanLastSeen:      time.Unix(0, 0),
		state:             Disconnected,
		services:          make(map[string]*bluetooth.DeviceService),
		characteristics:   make(map[string]*bluetooth.DeviceCharacteristic),
		serviceCharsFound: make(map[string]bool),
	}
}

func (b *btDeviceImpl) GetAddressString() string {
	return b.address.String()
}

func (b *btDeviceImpl) GetLocalName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scanResult != nil {
		if name := b.scanResult.LocalName(); name != "" {
			return name
		}
	}
	return "Unknown"
}

func (b *btDeviceImpl) GetScanRSSI() (int16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scanResult == nil {
		return 0, errors.New("no rssi available")
	}
	return b.scanResult.RSSI, nil
}

func (b *btDeviceImpl) GetScanLastSeen() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scanLastSeen
}

func (b *btDeviceImpl) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedDevice != nil
}

func (b *btDeviceImpl) GetState() BTDeviceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *btDeviceImpl) HasServiceUUID(uuid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.serviceUuidStrs {
		if u == uuid {
			return true
		}
	}
	return false
}

func (b *btDeviceImpl) isRecentlyScanned(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scanResult != nil && now.Sub(b.scanLastSeen) <= b.scanTimeout
}

func (b *btDeviceImpl) updateScan(result bluetooth.ScanResult, seen time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanResult = &result
	b.scanLastSeen = seen
	b.serviceUuidStrs = b.serviceUuidStrs[:0]
	for _, uuid := range result.ServiceUUIDs() {
		b.serviceUuidStrs = append(b.serviceUuidStrs, uuid.String())
	}
}

func (b *btDeviceImpl) setConnected(device *bluetooth.Device) {
	b.mu.Lock()
	b.connectedDevice = device
	if device != nil {
		b.state = Connected
	} else {
		b.state = Disconnected
	}
	b.mu.Unlock()

	if device == nil {
		// handles are invalid after a disconnect
		b.bleMu.Lock()
		b.services = make(map[string]*bluetooth.DeviceService)
		b.characteristics = make(map[string]*bluetooth.DeviceCharacteristic)
		b.serviceCharsFound = make(map[string]bool)
		b.allServicesDiscovered = false
		b.bleMu.Unlock()
	}
}

func (b *btDeviceImpl) setState(state BTDeviceState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

func (b *btDeviceImpl) getConnectedDevice() *bluetooth.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedDevice
}

func (b *btDeviceImpl) WaitForConnection(timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		if b.IsConnected() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("timeout after %v waiting for connection to %s", timeout, b.GetAddressString())
		}
	}
}

func (b *btDeviceImpl) EnableNotifications(serviceUuidStr, characteristicUuidStr string, callbackFunc func(buf []byte)) error {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	b.logger.Printf("BTDevice: EnableNotifications service=%s char=%s", serviceUuidStr, characteristicUuidStr)
	characteristic, err := b.characteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}
	if err := characteristic.EnableNotifications(callbackFunc); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	return nil
}

func (b *btDeviceImpl) DisableNotifications(serviceUuidStr, characteristicUuidStr string) error {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	b.logger.Printf("BTDevice: DisableNotifications service=%s char=%s", serviceUuidStr, characteristicUuidStr)
	characteristic, err := b.characteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}
	// a nil callback disables notifications
	if err := characteristic.EnableNotifications(nil); err != nil {
		return fmt.Errorf("failed to disable notifications: %w", err)
	}
	return nil
}

func (b *btDeviceImpl) ReadCharacteristic(serviceUuidStr, characteristicUuidStr string) ([]byte, error) {
	b.bleMu.Lock()
	defer b.bleMu.Unlock()

	characteristic, err := b.characteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 512)
	n, err := characteristic.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic: %w", err)
	}
	return buf[:n], nil
}

// characteristic resolves a characteristic, discovering every service and
// every characteristic of a service in one pass. Discovering them one at a
// time interrupts notifications already enabled on some stacks. bleMu must be held.
func (b *btDeviceImpl) characteristic(serviceUuidStr, characteristicUuidStr string) (*bluetooth.DeviceCharacteristic, error) {
	serviceUuid, err := bluetooth.ParseUUID(serviceUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", serviceUuidStr, err)
	}
	charUuid, err := bluetooth.ParseUUID(characteristicUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", characteristicUuidStr, err)
	}
	svcKey := serviceUuid.String()
	key := svcKey + "_" + charUuid.String()

	if c, ok := b.characteristics[key]; ok {
		return c, nil
	}

	if !b.serviceCharsFound[svcKey] {
		service, err := b.service(serviceUuid)
		if err != nil {
			return nil, err
		}
		b.logger.Printf("BTDevice: Discovering characteristics for service %s", svcKey)
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics for service %v: %w", svcKey, err)
		}
		for i := range chars {
			c := &chars[i]
			b.characteristics[svcKey+"_"+c.UUID().String()] = c
		}
		b.serviceCharsFound[svcKey] = true
	}

	c, ok := b.characteristics[key]
	if !ok {
		return nil, fmt.Errorf("characteristic %v not found in service %v", charUuid.String(), svcKey)
	}
	return c, nil
}

func (b *btDeviceImpl) service(serviceUuid bluetooth.UUID) (*bluetooth.DeviceService, error) {
	device := b.getConnectedDevice()
	if device == nil {
		return nil, errors.New("no connected device")
	}
	key := serviceUuid.String()
	if s, ok := b.services[key]; ok {
		return s, nil
	}

	if !b.allServicesDiscovered {
		b.logger.Printf("BTDevice: Discovering all services for %s", b.GetAddressString())
		services, err := device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		for i := range services {
			s := &services[i]
			b.services[s.UUID().String()] = s
		}
		b.allServicesDiscovered = true
	}

	s, ok := b.services[key]
	if !ok {
		return nil, fmt.Errorf("service %v not found on device", key)
	}
	return s, nil
}
