package engine

import (
	"github.com/samber/lo"

	"github.com/cxd309/trip-engine/internal/planner"
)

// Phase is the motion state of the train over one sample interval.
type Phase string

const (
	PhaseStationary   Phase = "stationary"
	PhaseDwelling     Phase = "dwelling"
	PhaseAccelerating Phase = "accelerating"
	PhaseDecelerating Phase = "decelerating"
	PhaseCruising     Phase = "cruising"
)

// cruiseTolerance is the acceleration (m/s²) below which a moving train counts as cruising.
const cruiseTolerance = 0.01

// PhaseDurations returns the seconds spent in each phase. Each interval between
// consecutive samples gets one phase from its end velocities; a stationary interval
// inside a scheduled stop counts as dwelling.
func PhaseDurations(time, velocity []float64, schedule []planner.ScheduleEntry) map[Phase]float64 {
	out := map[Phase]float64{}
	for i := 1; i < len(time); i++ {
		dt := time[i] - time[i-1]
		if dt <= 0 {
			continue
		}
		out[classify(time[i-1], time[i], velocity[i-1], velocity[i], schedule)] += dt
	}
	return out
}

func classify(t0, t1, v0, v1 float64, schedule []planner.ScheduleEntry) Phase {
	if v0 == 0 && v1 == 0 {
		atStop := lo.ContainsBy(schedule, func(e planner.ScheduleEntry) bool {
			return t0 >= e.ArrivalTime-sameInstant && t1 <= e.DepartureTime+sameInstant
		})
		return lo.Ternary(atStop, PhaseDwelling, PhaseStationary)
	}
	switch a := (v1 - v0) / (t1 - t0); {
	case a > cruiseTolerance:
		return PhaseAccelerating
	case a < -cruiseTolerance:
		return PhaseDecelerating
	default:
		return PhaseCruising
	}
}
