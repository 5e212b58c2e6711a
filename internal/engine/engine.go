// Package engine assembles a train's round trip along a line.
//
// A run has two legs, each driven by the planner:
//
//  1. Outbound - from the first station to the last, stopping at each station for
//     the dwell time and holding at the terminal.
//
//  2. Return - over the mirrored line, starting once the terminal layover has
//     elapsed. Its positions are mapped back into the outbound frame so the two legs
//     form one continuous series, with the layover filled in as stationary samples.
package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/cxd309/trip-engine/internal/integrator"
	"github.com/cxd309/trip-engine/internal/planner"
)

// sameInstant is the time difference (s) below which two samples are the same instant.
const sameInstant = 1e-9

// Run validates input and simulates the round trip. It returns an error only for
// invalid input; a degraded run is reported through the result's Diagnostics.
func Run(input SimulationInput, logger zerolog.Logger) (SimulationResult, error) {
	if err := input.Validate(); err != nil {
		return SimulationResult{}, err
	}
	model, err := input.model()
	if err != nil {
		return SimulationResult{}, fmt.Errorf("building traction model: %w", err)
	}
	l, err := input.line()
	if err != nil {
		return SimulationResult{}, fmt.Errorf("building line: %w", err)
	}

	logger = logger.With().Str("component", "engine").Logger()
	dt := input.DT()

	// A fresh stepper per run; nothing integration-related outlives this call.
	stepper := integrator.NewStepper(dt, model.DecelerationRate())
	p := planner.New(stepper, model, logger)

	out := p.DriveLeg(l, planner.LegOptions{
		StartTime:      0,
		Dwell:          input.DwellTime,
		HoldAtTerminal: true,
	})
	terminalArrival := out.FinalTime
	terminalPosition := out.Position[out.Len()-1]
	returnStart := terminalArrival + input.TerminalLayover
	out.Schedule[len(out.Schedule)-1].DepartureTime = returnStart

	logger.Debug().
		Int("samples", out.Len()).
		Float64("terminal_arrival", terminalArrival).
		Float64("terminal_position", terminalPosition).
		Msg("outbound leg complete")

	layover := layoverSamples(terminalArrival, returnStart, dt)

	mirrored := l.Mirror()
	back := p.DriveLeg(mirrored, planner.LegOptions{
		StartTime: returnStart,
		Dwell:     input.DwellTime,
	})
	backPosition := ReconcilePositions(
		back.Position,
		mirrored.First().Position,
		mirrored.Last().Position,
		terminalPosition,
		l.First().Position,
	)

	logger.Debug().
		Int("samples", back.Len()).
		Float64("final_time", back.FinalTime).
		Msg("return leg complete")

	res := SimulationResult{
		Time:     make([]float64, 0, out.Len()+len(layover)+back.Len()),
		Position: make([]float64, 0, out.Len()+len(layover)+back.Len()),
		Velocity: make([]float64, 0, out.Len()+len(layover)+back.Len()),
		Schedule: append(out.Schedule, back.Schedule...),
	}
	res.appendSeries(out.Time, out.Position, out.Velocity)
	for _, t := range layover {
		res.appendSeries([]float64{t}, []float64{terminalPosition}, []float64{0})
	}
	res.appendSeries(back.Time, backPosition, back.Velocity)

	report := CheckContinuity(res.Time, res.Position, res.Velocity)
	report.log(logger, input.TerminalLayover >= MinLayoverStop)

	res.Diagnostics = &Diagnostics{
		Outbound:   out.Segments,
		Return:     back.Segments,
		Continuity: report,
		Phases:     PhaseDurations(res.Time, res.Velocity, res.Schedule),
	}
	if n := res.Diagnostics.Unreached(); n > 0 {
		logger.Warn().Int("segments", n).Msg("round trip has segments that stopped short of their station")
	}

	return res, nil
}

// layoverSamples returns the times of the stationary samples between the terminal
// arrival and the return departure: every dt after arrival, strictly before departure.
func layoverSamples(arrival, departure, dt float64) []float64 {
	n := int(math.Floor((departure - arrival) / dt))
	times := make([]float64, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		t := arrival + float64(i)*dt
		if t >= departure-sameInstant {
			break
		}
		times = append(times, t)
	}
	return times
}

// ReconcilePositions maps positions recorded along a leg that runs from legStart to
// legEnd onto the absolute frame, where the same leg runs from fromAbs to toAbs.
// Each sample keeps its fractional progress along the leg. A zero-length leg falls back
// to index-based progress. The first output sample is always fromAbs.
func ReconcilePositions(positions []float64, legStart, legEnd, fromAbs, toAbs float64) []float64 {
	out := make([]float64, len(positions))
	span := legEnd - legStart
	for i, pos := range positions {
		var progress float64
		switch {
		case math.Abs(span) > sameInstant:
			progress = (pos - legStart) / span
		case len(positions) > 1:
			progress = float64(i) / float64(len(positions)-1)
		}
		out[i] = fromAbs + (toAbs-fromAbs)*progress
	}
	if len(out) > 0 {
		out[0] = fromAbs
	}
	return out
}

// appendSeries adds samples to the result, skipping a leading sample that repeats the
// last instant already present.
func (r *SimulationResult) appendSeries(t, pos, vel []float64) {
	from := 0
	if n := len(r.Time); n > 0 && len(t) > 0 && t[0]-r.Time[n-1] < sameInstant {
		from = 1
	}
	r.Time = append(r.Time, t[from:]...)
	r.Position = append(r.Position, pos[from:]...)
	r.Velocity = append(r.Velocity, vel[from:]...)
}

// RunJSON is the entry point shared by the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs the simulation, and returns a JSON-encoded
// SimulationResult.
func RunJSON(jsonInput string) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	res, err := Run(input, zerolog.Nop())
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
