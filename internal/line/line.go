// Package line provides the station line a train runs along: an ordered set of
// stations on a single straight track.
package line

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

var (
	ErrTooFewStations     = errors.New("a line needs at least two stations")
	ErrDuplicatePosition  = errors.New("two stations share a position")
	ErrInvalidStationName = errors.New("station name must not be empty")
)

// Station is a named stopping point on the line.
type Station struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"` // metres from the line origin
}

// Segment is the stretch of track between two consecutive stations in visitation order.
type Segment struct {
	From Station
	To   Station
}

// Length returns the segment length in metres (negative when travelling toward the origin).
func (s Segment) Length() float64 { return s.To.Position - s.From.Position }

// Line is an immutable, validated sequence of stations in visitation order.
type Line struct {
	stations []Station
}

// New validates stations and returns them as a Line sorted by ascending position.
func New(stations []Station) (*Line, error) {
	if len(stations) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewStations, len(stations))
	}

	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	for i, s := range sorted {
		if s.Name == "" {
			return nil, fmt.Errorf("%w (position %g)", ErrInvalidStationName, s.Position)
		}
		if s.Position < 0 {
			return nil, fmt.Errorf("station %q: position must not be negative, got %g", s.Name, s.Position)
		}
		if i > 0 && s.Position == sorted[i-1].Position {
			return nil, fmt.Errorf("%w: %q and %q at %g", ErrDuplicatePosition, sorted[i-1].Name, s.Name, s.Position)
		}
	}

	return &Line{stations: sorted}, nil
}

// Stations returns a copy of the stations in visitation order.
func (l *Line) Stations() []Station {
	out := make([]Station, len(l.stations))
	copy(out, l.stations)
	return out
}

// Names returns the station names in visitation order.
func (l *Line) Names() []string {
	return lo.Map(l.stations, func(s Station, _ int) string { return s.Name })
}

// First returns the first station visited.
func (l *Line) First() Station { return l.stations[0] }

// Last returns the last station visited.
func (l *Line) Last() Station { return l.stations[len(l.stations)-1] }

// Length returns the distance between the first and last station.
func (l *Line) Length() float64 { return l.Last().Position - l.First().Position }

// Segments returns the consecutive station pairs in visitation order.
func (l *Line) Segments() []Segment {
	segs := make([]Segment, 0, len(l.stations)-1)
	for i := 0; i < len(l.stations)-1; i++ {
		segs = append(segs, Segment{From: l.stations[i], To: l.stations[i+1]})
	}
	return segs
}

// Mirror returns the line as seen by a train running back from the last station.
// Each station moves to (max position − position), so the last station becomes the
// origin and the true inter-station spacing is kept.
func (l *Line) Mirror() *Line {
	maxPos := l.Last().Position
	mirrored := make([]Station, len(l.stations))
	for i, s := range l.stations {
		mirrored[len(l.stations)-1-i] = Station{Name: s.Name, Position: maxPos - s.Position}
	}
	return &Line{stations: mirrored}
}
