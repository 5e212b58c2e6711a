package integrator

import (
	"math"

	"github.com/cxd309/trip-engine/internal/kinematics"
)

// brakingGate is the braking on/off state of one run. Once braking engages it holds
// until the train is nearly stationary, so the train never alternates between
// accelerating and braking around the braking-distance boundary.
type brakingGate struct {
	enabled bool
	target  float64
	decel   float64
	braking bool
}

// update re-evaluates the gate for the state at the start of a step.
func (g *brakingGate) update(pos, vel float64) {
	if !g.enabled {
		return
	}
	switch {
	case !g.braking:
		dist := math.Abs(g.target - pos)
		if dist <= kinematics.BrakingDistance(vel, g.decel) && vel > BrakingMinSpeed {
			g.braking = true
		}
	case vel <= StopThreshold:
		g.braking = false
	}
}
