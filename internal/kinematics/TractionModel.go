// Package kinematics defines the TractionModel interface for train traction and braking
// physics, along with built-in implementations and the acceleration curve table.
//
// Adding a new physics model requires only implementing TractionModel; the integrator
// and trip planner never need to change.
package kinematics

import "math"

// DefaultDecelerationRate is the service braking rate used when none is configured (m/s², positive).
const DefaultDecelerationRate = 2.0

// TractionModel is the physics contract every traction implementation must satisfy.
// All velocities are in m/s and accelerations in m/s².
type TractionModel interface {
	// Acceleration returns the tractive acceleration available at velocity v.
	// It is a pure function of v.
	Acceleration(v float64) float64

	// BrakingAcceleration returns the (negative) service braking acceleration.
	// It does not depend on velocity or position.
	BrakingAcceleration() float64

	// DecelerationRate returns the magnitude of the service braking acceleration.
	DecelerationRate() float64

	// VMax returns the speed at which traction falls to zero.
	VMax() float64
}

// BrakingDistance returns the distance needed to stop from velocity v at a constant
// deceleration rate decel. A non-positive rate can never stop the train.
func BrakingDistance(v, decel float64) float64 {
	if decel <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * decel)
}
