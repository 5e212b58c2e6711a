package engine

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/line"
	"github.com/cxd309/trip-engine/internal/planner"
)

// DefaultTimeStep is the integration step (s) used when the input leaves dt unset.
const DefaultTimeStep = 0.1

// ErrInvalidInput is wrapped by every error Validate returns.
var ErrInvalidInput = errors.New("invalid simulation input")

// StationInput is one station as it arrives at the boundary. The position may be
// given in metres or in kilometres; metres win when both are present.
type StationInput struct {
	Name     string   `json:"name"`
	Position *float64 `json:"position,omitempty"` // m
	Km       *float64 `json:"km,omitempty"`
}

// Metres returns the station position in metres and whether one was given.
func (s StationInput) Metres() (float64, bool) {
	switch {
	case s.Position != nil:
		return *s.Position, true
	case s.Km != nil:
		return *s.Km * 1000, true
	default:
		return 0, false
	}
}

// SimulationInput is the JSON-serialisable input to the engine.
type SimulationInput struct {
	InitialAccel     float64                 `json:"initial_accel"`   // m/s²
	ThresholdSpeed   float64                 `json:"threshold_speed"` // m/s
	MaxSpeed         float64                 `json:"max_speed"`       // m/s
	Stations         []StationInput          `json:"stations"`
	DwellTime        float64                 `json:"dwell_time"`       // s
	TerminalLayover  float64                 `json:"terminal_layover"` // s
	TimeStep         float64                 `json:"dt,omitempty"`     // s, defaults to DefaultTimeStep
	DecelerationRate float64                 `json:"deceleration_rate,omitempty"`
	Curve            *kinematics.CurveConfig `json:"acceleration_curve,omitempty"`
}

// DT returns the effective integration step.
func (in SimulationInput) DT() float64 {
	if in.TimeStep == 0 {
		return DefaultTimeStep
	}
	return in.TimeStep
}

// Validate checks the input against the boundary rules. All errors wrap ErrInvalidInput.
func (in SimulationInput) Validate() error {
	if _, err := in.model(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if dt := in.DT(); dt <= 0 || dt > 1 {
		return fmt.Errorf("%w: dt must be in (0, 1], got %g", ErrInvalidInput, dt)
	}
	if in.DwellTime < 0 {
		return fmt.Errorf("%w: dwell_time must not be negative, got %g", ErrInvalidInput, in.DwellTime)
	}
	if in.TerminalLayover < 0 {
		return fmt.Errorf("%w: terminal_layover must not be negative, got %g", ErrInvalidInput, in.TerminalLayover)
	}
	if _, err := in.line(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// EstimatedSamples returns a rough upper bound on the number of samples a run of in
// produces, for callers that cap request size. in must be valid.
func (in SimulationInput) EstimatedSamples() int {
	l, err := in.line()
	if err != nil {
		return 0
	}
	var span float64
	for _, seg := range l.Segments() {
		span += 2 * planner.EstimateTravelTime(seg.Length(), in.MaxSpeed, in.InitialAccel)
	}
	return int(span/in.DT()) + int(in.TerminalLayover/in.DT()) + 4*len(in.Stations)
}

func (in SimulationInput) model() (kinematics.TaperedTraction, error) {
	m := kinematics.TaperedTraction{
		InitialAccel:   in.InitialAccel,
		ThresholdSpeed: in.ThresholdSpeed,
		MaxSpeed:       in.MaxSpeed,
		Decel:          in.DecelerationRate,
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	if in.Curve != nil {
		c, err := kinematics.NewAccelerationCurve(*in.Curve)
		if err != nil {
			return m, fmt.Errorf("acceleration_curve: %w", err)
		}
		m.Curve = c
	}
	return m, nil
}

func (in SimulationInput) line() (*line.Line, error) {
	stations := make([]line.Station, 0, len(in.Stations))
	for i, s := range in.Stations {
		pos, ok := s.Metres()
		if !ok {
			return nil, fmt.Errorf("station %d (%q): position or km is required", i, s.Name)
		}
		stations = append(stations, line.Station{Name: s.Name, Position: pos})
	}
	return line.New(stations)
}

// Diagnostics describes how the run went. It never changes the trajectory.
type Diagnostics struct {
	Outbound   []planner.SegmentReport `json:"outbound"`
	Return     []planner.SegmentReport `json:"return"`
	Continuity ContinuityReport        `json:"continuity"`
	Phases     map[Phase]float64       `json:"phases"` // seconds per motion phase
}

// Unreached returns the number of segments that ended short of their station.
func (d *Diagnostics) Unreached() int {
	unreached := func(r planner.SegmentReport) bool { return !r.Reached }
	return lo.CountBy(d.Outbound, unreached) + lo.CountBy(d.Return, unreached)
}

// SimulationResult is the round-trip trajectory and schedule.
type SimulationResult struct {
	Time        []float64               `json:"time"`
	Position    []float64               `json:"position"`
	Velocity    []float64               `json:"velocity"`
	Schedule    []planner.ScheduleEntry `json:"schedule"`
	Diagnostics *Diagnostics            `json:"diagnostics,omitempty"`
}
