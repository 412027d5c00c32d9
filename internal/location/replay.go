package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/clock"
)

// TrackPoint is one recorded GPS fix.
type TrackPoint struct {
	TimestampMs int64
	Lat         float64
	Lon         float64
}

// LoadTrack reads "timestamp_ms,lat,lon" rows. A header row is skipped and
// blank lines are ignored. Timestamps must not decrease.
func LoadTrack(r io.Reader) ([]TrackPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var points []TrackPoint
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("track line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp_ms") {
			continue
		}

		p, err := parseTrackRecord(record)
		if err != nil {
			return nil, fmt.Errorf("track line %d: %w", line, err)
		}
		if n := len(points); n > 0 && p.TimestampMs < points[n-1].TimestampMs {
			return nil, fmt.Errorf("track line %d: timestamp %d before %d", line, p.TimestampMs, points[n-1].TimestampMs)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, errors.New("track has no points")
	}
	return points, nil
}

// LoadTrackFile reads a track from path.
func LoadTrackFile(path string) ([]TrackPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTrack(f)
}

func parseTrackRecord(record []string) (TrackPoint, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return TrackPoint{}, fmt.Errorf("timestamp: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return TrackPoint{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return TrackPoint{}, fmt.Errorf("lon: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return TrackPoint{}, fmt.Errorf("coordinate out of range: %v,%v", lat, lon)
	}
	return TrackPoint{TimestampMs: ts, Lat: lat, Lon: lon}, nil
}

// ReplayProvider plays a recorded track back, one point per interval. Each
// sample carries the speed between the point and its predecessor; the first
// point yields 0. Restarting continues where the previous run stopped.
type ReplayProvider struct {
	clk    clock.Clock
	logger *log.Logger
	points []TrackPoint

	mu       sync.Mutex
	next     int
	running  bool
	gen      uint64
	onSample func(assessment.SpeedDataPoint)
	onError  func(string)
}

func NewReplayProvider(points []TrackPoint, clk clock.Clock, logger *log.Logger) *ReplayProvider {
	if clk == nil {
		panic("ReplayProvider: clock cannot be nil")
	}
	if logger == nil {
		panic("ReplayProvider: logger cannot be nil")
	}
	return &ReplayProvider{
		clk:    clk,
		logger: logger,
		points: append([]TrackPoint(nil), points...),
	}
}

func (p *ReplayProvider) StartCollecting(onSample func(assessment.SpeedDataPoint), onError func(string), interval time.Duration) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.running = true
	p.onSample = onSample
	p.onError = onError
	next := p.next
	p.mu.Unlock()

	p.logger.Printf("ReplayProvider: replaying from point %d of %d", next, len(p.points))
	p.clk.AfterFunc(interval, func() { p.tick(gen, interval) })
	return nil
}

func (p *ReplayProvider) StopCollecting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.gen++
}

// Remaining returns how many points have not been replayed yet.
func (p *ReplayProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.points) - p.next
}

func (p *ReplayProvider) tick(gen uint64, interval time.Duration) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.next >= len(p.points) {
		p.running = false
		cb := p.onError
		p.mu.Unlock()
		p.logger.Printf("ReplayProvider: %v", ErrTrackExhausted)
		cb(ErrTrackExhausted.Error())
		return
	}

	var speed float64
	if p.next > 0 {
		speed = SpeedBetween(p.points[p.next-1], p.points[p.next])
	}
	p.next++
	cb := p.onSample
	p.mu.Unlock()

	cb(assessment.SpeedDataPoint{Speed: speed, Timestamp: p.clk.Now().UnixMilli()})
	p.clk.AfterFunc(interval, func() { p.tick(gen, interval) })
}
