// Package location provides the speed sources an assessment session samples:
// a simulated runner, a replayed GPS track and a Bluetooth footpod.
package location

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

// Kind names a provider implementation in configuration.
type Kind string

const (
	KindSimulated Kind = "simulated"
	KindReplay    Kind = "replay"
	KindBLE       Kind = "ble"
)

// ParseKind accepts a provider name in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSimulated, KindReplay, KindBLE:
		return k, nil
	}
	return "", fmt.Errorf("unknown provider kind %q", s)
}

// ErrTrackExhausted is reported when a replayed track has no points left.
var ErrTrackExhausted = errors.New("track exhausted")

var (
	_ assessment.SampleProvider = (*SimulatedProvider)(nil)
	_ assessment.SampleProvider = (*ReplayProvider)(nil)
	_ assessment.SampleProvider = (*BLEProvider)(nil)
)
