package location

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/clock"
)

const sampleTrack = `timestamp_ms,lat,lon
# warmup
0,55.000000,37.000000
1000,55.000027,37.000000

2000,55.000054,37.000000
`

func TestLoadTrack(t *testing.T) {
	points, err := LoadTrack(strings.NewReader(sampleTrack))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, TrackPoint{TimestampMs: 1000, Lat: 55.000027, Lon: 37}, points[1])
}

func TestLoadTrack_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":             "timestamp_ms,lat,lon\n",
		"bad timestamp":     "abc,55,37\n",
		"bad latitude":      "0,north,37\n",
		"out of range":      "0,95,37\n",
		"wrong field count": "0,55\n",
		"time goes back":    "1000,55,37\n500,55,37\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTrack(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadTrackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrack), 0644))

	points, err := LoadTrackFile(path)
	require.NoError(t, err)
	assert.Len(t, points, 3)

	_, err = LoadTrackFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReplayProvider_ReplaysAndExhausts(t *testing.T) {
	points, err := LoadTrack(strings.NewReader(sampleTrack))
	require.NoError(t, err)

	clk := clock.NewManual(time.Unix(0, 0))
	p := NewReplayProvider(points, clk, discard)
	sink := &sampleSink{}

	require.NoError(t, p.StartCollecting(sink.onSample, sink.onError, time.Second))
	clk.Advance(3 * time.Second)

	samples, errs := sink.snapshot()
	require.Len(t, samples, 3)
	assert.Equal(t, 0.0, samples[0].Speed, "the first point has no predecessor")
	// 0.000027 degrees of latitude per second is about 3 m/s
	assert.InDelta(t, 3.0, samples[1].Speed, 0.01)
	assert.InDelta(t, 3.0, samples[2].Speed, 0.01)
	assert.Empty(t, errs)
	assert.Equal(t, 0, p.Remaining())

	clk.Advance(time.Second)
	_, errs = sink.snapshot()
	assert.Equal(t, []string{ErrTrackExhausted.Error()}, errs)

	clk.Advance(5 * time.Second)
	_, errs = sink.snapshot()
	assert.Len(t, errs, 1, "exhaustion is reported once per run")
}

func TestReplayProvider_RestartContinues(t *testing.T) {
	points, err := LoadTrack(strings.NewReader(sampleTrack))
	require.NoError(t, err)

	clk := clock.NewManual(time.Unix(0, 0))
	p := NewReplayProvider(points, clk, discard)
	sink := &sampleSink{}

	require.NoError(t, p.StartCollecting(sink.onSample, sink.onError, time.Second))
	clk.Advance(time.Second)
	p.StopCollecting()
	clk.Advance(time.Minute)
	assert.Equal(t, 2, p.Remaining())

	require.NoError(t, p.StartCollecting(sink.onSample, sink.onError, time.Second))
	clk.Advance(time.Second)
	samples, _ := sink.snapshot()
	require.Len(t, samples, 2)
	assert.InDelta(t, 3.0, samples[1].Speed, 0.01)
}
