// Package planner drives a train along one directional leg of a line, station by
// station, and produces the leg's trajectory and schedule.
//
// Each segment is integrated from rest at one station to rest at the next. The
// integration horizon comes from a closed-form estimate; when the train falls short
// of the station the horizon is stretched and the segment re-run, a bounded number
// of times. A segment that still falls short is kept as is and flagged in its report.
package planner

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/cxd309/trip-engine/internal/integrator"
	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/line"
)

const (
	// ExtensionFactor multiplies the horizon of a segment that fell short.
	ExtensionFactor = 1.5
	// MaxExtensions is the number of re-runs allowed after the first attempt.
	MaxExtensions = 3
	// ArrivalTolerance is how far short of a station (m) a segment may end and still count as arrived.
	ArrivalTolerance = 1.0

	// sameInstant is the time difference (s) below which two samples are the same instant.
	sameInstant = 1e-9
)

// ScheduleEntry is the arrival and departure of the train at one station.
type ScheduleEntry struct {
	Station       string  `json:"station"`
	ArrivalTime   float64 `json:"arrival_time"`
	DepartureTime float64 `json:"departure_time"`
}

// SegmentReport describes how one segment was integrated.
type SegmentReport struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Attempts int     `json:"attempts"`
	Horizon  float64 `json:"horizon"`  // s, of the accepted attempt
	Reached  bool    `json:"reached"`
	Residual float64 `json:"residual"` // m short of the station after the accepted attempt
}

// Leg is the merged trajectory and schedule of one directional traversal.
type Leg struct {
	Time      []float64
	Position  []float64
	Velocity  []float64
	Schedule  []ScheduleEntry
	FinalTime float64
	Segments  []SegmentReport
}

// Len returns the number of samples in the leg.
func (l *Leg) Len() int { return len(l.Time) }

// LegOptions controls how a leg is driven.
type LegOptions struct {
	StartTime float64 // s
	Dwell     float64 // s, stop duration at each station reached
	// HoldAtTerminal leaves the final stop without a dwell: the leg ends at the
	// terminal arrival so that the caller can add its own layover.
	HoldAtTerminal bool
}

// Planner drives legs with one stepper and one traction model.
type Planner struct {
	stepper *integrator.Stepper
	model   kinematics.TractionModel
	logger  zerolog.Logger
}

// New returns a Planner.
func New(stepper *integrator.Stepper, model kinematics.TractionModel, logger zerolog.Logger) *Planner {
	return &Planner{
		stepper: stepper,
		model:   model,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// DriveLeg runs the train over every segment of l in visitation order.
func (p *Planner) DriveLeg(l *line.Line, opts LegOptions) Leg {
	segments := l.Segments()
	leg := Leg{
		Schedule: make([]ScheduleEntry, 0, len(segments)),
		Segments: make([]SegmentReport, 0, len(segments)),
	}

	current := opts.StartTime
	for i, seg := range segments {
		tr, report := p.driveSegment(seg, current)
		leg.Segments = append(leg.Segments, report)
		leg.appendTrajectory(tr)

		arrival := leg.Time[leg.Len()-1]
		dwell := opts.Dwell
		if opts.HoldAtTerminal && i == len(segments)-1 {
			dwell = 0
		}
		departure := arrival + dwell
		if dwell > 0 {
			leg.appendSample(departure, leg.Position[leg.Len()-1], 0)
		}

		leg.Schedule = append(leg.Schedule, ScheduleEntry{
			Station:       seg.To.Name,
			ArrivalTime:   arrival,
			DepartureTime: departure,
		})
		current = departure
	}

	leg.FinalTime = current
	return leg
}

// driveSegment integrates one segment from rest, stretching the horizon until the
// train reaches the far station or the retries run out.
func (p *Planner) driveSegment(seg line.Segment, start float64) (integrator.Trajectory, SegmentReport) {
	distance := seg.Length()
	direction := 1.0
	if distance < 0 {
		direction = -1
	}
	target := seg.To.Position

	report := SegmentReport{From: seg.From.Name, To: seg.To.Name}
	horizon := EstimateTravelTime(math.Abs(distance), p.model.VMax(), p.model.Acceleration(0))

	var tr integrator.Trajectory
	for attempt := 1; attempt <= 1+MaxExtensions; attempt++ {
		tr = p.stepper.Solve(integrator.Run{
			InitialPosition: seg.From.Position,
			InitialVelocity: 0,
			Start:           start,
			End:             start + horizon,
			Accel:           p.accelerate,
			Target:          &target,
			UseBraking:      true,
		})
		_, pos, _ := tr.Last()

		report.Attempts = attempt
		report.Horizon = horizon
		report.Residual = math.Max(0, direction*(target-pos))
		if report.Residual <= ArrivalTolerance {
			report.Reached = true
			break
		}
		p.logger.Debug().
			Str("to", seg.To.Name).
			Int("attempt", attempt).
			Float64("horizon", horizon).
			Float64("residual", report.Residual).
			Msg("segment horizon too short, extending")
		horizon *= ExtensionFactor
	}

	if !report.Reached {
		p.logger.Warn().
			Str("from", seg.From.Name).
			Str("to", seg.To.Name).
			Int("attempts", report.Attempts).
			Float64("residual", report.Residual).
			Msg("segment did not reach station")
		return tr, report
	}

	return truncateAtArrival(tr, target, direction), report
}

func (p *Planner) accelerate(_, _, vel float64) float64 {
	return p.model.Acceleration(vel)
}

// truncateAtArrival cuts tr at the first sample at or past target in the direction of
// travel and pins that sample to the station at rest.
func truncateAtArrival(tr integrator.Trajectory, target, direction float64) integrator.Trajectory {
	idx := tr.Len() - 1
	for i, pos := range tr.Position {
		if direction*(pos-target) >= 0 {
			idx = i
			break
		}
	}

	tr.T = tr.T[:idx+1]
	tr.Position = tr.Position[:idx+1]
	tr.Velocity = tr.Velocity[:idx+1]
	tr.Position[idx] = target
	tr.Velocity[idx] = 0
	return tr
}

// appendTrajectory adds tr to the leg, dropping its first sample when it repeats the
// leg's last instant (a segment starts where the previous departure sample ended).
func (l *Leg) appendTrajectory(tr integrator.Trajectory) {
	from := 0
	if l.Len() > 0 && tr.Len() > 0 && tr.T[0]-l.Time[l.Len()-1] < sameInstant {
		from = 1
	}
	l.Time = append(l.Time, tr.T[from:]...)
	l.Position = append(l.Position, tr.Position[from:]...)
	l.Velocity = append(l.Velocity, tr.Velocity[from:]...)
}

func (l *Leg) appendSample(t, pos, vel float64) {
	l.Time = append(l.Time, t)
	l.Position = append(l.Position, pos)
	l.Velocity = append(l.Velocity, vel)
}
