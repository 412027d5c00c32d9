package assessment

import (
	"fmt"
	"strings"
	"time"
)

// ZoneName identifies one of the five effort zones of the protocol.
type ZoneName int

const (
	Zone1 ZoneName = iota + 1 // Blue
	Zone2                     // Green
	Zone3                     // Yellow
	Zone4                     // Orange
	Zone5                     // Red
)

// ZoneNameInfo contains display information for a zone name
type ZoneNameInfo struct {
	Name        ZoneName
	Key         string
	DisplayName string
	Color       string
}

// AllZoneNames defines the zone names in protocol order
var AllZoneNames = []ZoneNameInfo{
	{Name: Zone1, Key: "Zone1", DisplayName: "Blue", Color: "#2196F3"},
	{Name: Zone2, Key: "Zone2", DisplayName: "Green", Color: "#4CAF50"},
	{Name: Zone3, Key: "Zone3", DisplayName: "Yellow", Color: "#FFEB3B"},
	{Name: Zone4, Key: "Zone4", DisplayName: "Orange", Color: "#FF9800"},
	{Name: Zone5, Key: "Zone5", DisplayName: "Red", Color: "#F44336"},
}

// GetZoneNameInfo returns the info for a given zone name
func GetZoneNameInfo(name ZoneName) (ZoneNameInfo, bool) {
	for _, info := range AllZoneNames {
		if info.Name == name {
			return info, true
		}
	}
	return ZoneNameInfo{}, false
}

// ParseZoneName accepts the key ("Zone3"), the display name ("yellow") or the
// zone number ("3").
func ParseZoneName(s string) (ZoneName, error) {
	s = strings.TrimSpace(s)
	for _, info := range AllZoneNames {
		if strings.EqualFold(s, info.Key) || strings.EqualFold(s, info.DisplayName) || s == fmt.Sprint(int(info.Name)) {
			return info.Name, nil
		}
	}
	return 0, fmt.Errorf("unknown zone name %q", s)
}

func (n ZoneName) String() string {
	if info, ok := GetZoneNameInfo(n); ok {
		return info.Key
	}
	return fmt.Sprintf("ZoneName(%d)", int(n))
}

// DisplayName returns the effort color of the zone.
func (n ZoneName) DisplayName() string {
	if info, ok := GetZoneNameInfo(n); ok {
		return info.DisplayName
	}
	return n.String()
}

func (n ZoneName) MarshalText() ([]byte, error) {
	if _, ok := GetZoneNameInfo(n); !ok {
		return nil, fmt.Errorf("invalid zone name %d", int(n))
	}
	return []byte(n.String()), nil
}

func (n *ZoneName) UnmarshalText(text []byte) error {
	parsed, err := ParseZoneName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// TargetEffort is a percentage of maximal effort. A single percentage has Min == Max.
type TargetEffort struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsRange reports whether the effort spans more than one percentage.
func (e TargetEffort) IsRange() bool {
	return e.Min != e.Max
}

func (e TargetEffort) String() string {
	if e.IsRange() {
		return fmt.Sprintf("%d-%d%%", e.Min, e.Max)
	}
	return fmt.Sprintf("%d%%", e.Min)
}

// TrainingZone is one fixed-duration effort segment. Zones are immutable once defined.
type TrainingZone struct {
	ID           int           `json:"id"`
	Name         ZoneName      `json:"name"`
	TargetEffort TargetEffort  `json:"targetEffort"`
	Duration     time.Duration `json:"duration"`
}

// Color returns the hex color associated with the zone
func (z TrainingZone) Color() string {
	if info, ok := GetZoneNameInfo(z.Name); ok {
		return info.Color
	}
	return ""
}

// WarningOffset is how long before a zone's natural end the end warning fires.
const WarningOffset = 30 * time.Second

// defaultZones is the assessment protocol, processed strictly in this order.
var defaultZones = []TrainingZone{
	{ID: 1, Name: Zone1, TargetEffort: TargetEffort{Min: 15, Max: 15}, Duration: 6 * time.Minute},
	{ID: 2, Name: Zone2, TargetEffort: TargetEffort{Min: 16, Max: 25}, Duration: 5 * time.Minute},
	{ID: 3, Name: Zone3, TargetEffort: TargetEffort{Min: 26, Max: 50}, Duration: 5 * time.Minute},
	{ID: 4, Name: Zone4, TargetEffort: TargetEffort{Min: 51, Max: 75}, Duration: 3 * time.Minute},
	{ID: 5, Name: Zone5, TargetEffort: TargetEffort{Min: 76, Max: 100}, Duration: 1 * time.Minute},
}

// DefaultZones returns a fresh copy of the five protocol zones.
func DefaultZones() []TrainingZone {
	zones := make([]TrainingZone, len(defaultZones))
	copy(zones, defaultZones)
	return zones
}

// TotalDuration returns the sum of all zone durations
func TotalDuration(zones []TrainingZone) time.Duration {
	var total time.Duration
	for _, z := range zones {
		total += z.Duration
	}
	return total
}

// ScaleZones returns copies of zones with every duration multiplied by factor.
// Used to run shortened demo sessions against the simulated provider.
func ScaleZones(zones []TrainingZone, factor float64) []TrainingZone {
	scaled := make([]TrainingZone, len(zones))
	for i, z := range zones {
		z.Duration = time.Duration(float64(z.Duration) * factor)
		scaled[i] = z
	}
	return scaled
}

// ValidateZones checks ids are 1..n in order and every duration is positive.
func ValidateZones(zones []TrainingZone) error {
	if len(zones) == 0 {
		return fmt.Errorf("no zones defined")
	}
	for i, z := range zones {
		if z.ID != i+1 {
			return fmt.Errorf("zone at position %d has id %d, want %d", i, z.ID, i+1)
		}
		if z.Duration <= 0 {
			return fmt.Errorf("zone %s has non-positive duration %v", z.Name, z.Duration)
		}
	}
	return nil
}
