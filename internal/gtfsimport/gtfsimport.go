// Package gtfsimport builds a station list from one trip of a GTFS static feed.
package gtfsimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/jamespfennell/gtfs"
	"github.com/samber/lo"

	"github.com/cxd309/trip-engine/internal/engine"
)

// ErrTripNotFound is returned when the feed has no trip with the requested id.
var ErrTripNotFound = errors.New("trip not found in feed")

// Options controls how stop times become station positions.
type Options struct {
	// ShapeDistanceScale converts shape_dist_traveled values to metres. Feeds differ
	// in the unit they use; 0 means metres.
	ShapeDistanceScale float64
	// IgnoreShapeDistance forces positions from stop coordinates.
	IgnoreShapeDistance bool
}

// Load reads a GTFS zip from a local path or an http(s) URL and parses it.
func Load(ctx context.Context, source string) (*gtfs.Static, error) {
	b, err := rawFeed(ctx, source)
	if err != nil {
		return nil, err
	}
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return static, nil
}

func rawFeed(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("error building GTFS request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading GTFS data: status %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	return b, nil
}

// FindTrip returns the trip with id.
func FindTrip(static *gtfs.Static, id string) (*gtfs.ScheduledTrip, error) {
	for i := range static.Trips {
		if static.Trips[i].ID == id {
			return &static.Trips[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTripNotFound, id)
}

// Stations returns the stops of trip as stations, in stop-sequence order, with the
// first stop at position 0. Positions come from shape_dist_traveled when every stop
// time has one, otherwise from the great-circle distance between consecutive stops.
func Stations(trip *gtfs.ScheduledTrip, opts Options) ([]engine.StationInput, error) {
	stopTimes := make([]gtfs.ScheduledStopTime, 0, len(trip.StopTimes))
	for _, st := range trip.StopTimes {
		if st.Stop != nil {
			stopTimes = append(stopTimes, st)
		}
	}
	if len(stopTimes) < 2 {
		return nil, fmt.Errorf("trip %q has %d stops, need at least 2", trip.ID, len(stopTimes))
	}
	sort.SliceStable(stopTimes, func(i, j int) bool { return stopTimes[i].StopSequence < stopTimes[j].StopSequence })

	var positions []float64
	var err error
	if !opts.IgnoreShapeDistance && lo.EveryBy(stopTimes, func(st gtfs.ScheduledStopTime) bool { return st.ShapeDistanceTraveled != nil }) {
		positions = shapePositions(stopTimes, opts.ShapeDistanceScale)
	} else {
		positions, err = coordinatePositions(stopTimes)
		if err != nil {
			return nil, fmt.Errorf("trip %q: %w", trip.ID, err)
		}
	}

	stations := make([]engine.StationInput, len(stopTimes))
	for i, st := range stopTimes {
		pos := positions[i]
		stations[i] = engine.StationInput{Name: stopName(st.Stop), Position: &pos}
	}
	return stations, nil
}

func shapePositions(stopTimes []gtfs.ScheduledStopTime, scale float64) []float64 {
	if scale == 0 {
		scale = 1
	}
	origin := *stopTimes[0].ShapeDistanceTraveled
	return lo.Map(stopTimes, func(st gtfs.ScheduledStopTime, _ int) float64 {
		return (*st.ShapeDistanceTraveled - origin) * scale
	})
}

func coordinatePositions(stopTimes []gtfs.ScheduledStopTime) ([]float64, error) {
	positions := make([]float64, len(stopTimes))
	for i, st := range stopTimes {
		if st.Stop.Latitude == nil || st.Stop.Longitude == nil {
			return nil, fmt.Errorf("stop %q has no coordinates", st.Stop.Id)
		}
		if i == 0 {
			continue
		}
		prev := stopTimes[i-1].Stop
		positions[i] = positions[i-1] + Haversine(*prev.Latitude, *prev.Longitude, *st.Stop.Latitude, *st.Stop.Longitude)
	}
	return positions, nil
}

func stopName(s *gtfs.Stop) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Id
}
