package bt

// Bluetooth Service and Characteristic UUIDs for running sensors
const (
	// Running Speed and Cadence Service (RSC)
	ServiceUUIDRunningSpeedCadence = "00001814-0000-1000-8000-00805f9b34fb"
	CharUUIDRSCMeasurement         = "00002a53-0000-1000-8000-00805f9b34fb"
	CharUUIDRSCFeature             = "00002a54-0000-1000-8000-00805f9b34fb"
)

// RSC measurement flags
const (
	rscFlagStrideLength  = 0x01
	rscFlagTotalDistance = 0x02
	rscFlagRunning       = 0x04
)
