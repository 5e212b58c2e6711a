package planner

import "math"

// SafeHorizon is the horizon (s) used when the travel-time estimate cannot be computed.
const SafeHorizon = 100.0

// EstimateTravelTime returns a closed-form travel time (s) over distance metres for a
// train that accelerates at accel up to maxSpeed, cruises, and decelerates at the same
// rate. Segments too short to reach maxSpeed are accelerate-then-decelerate only.
//
// Degenerate inputs fall back to SafeHorizon.
func EstimateTravelTime(distance, maxSpeed, accel float64) float64 {
	if distance <= 0 || accel <= 0 || maxSpeed <= 0 {
		return SafeHorizon
	}

	accelTime := maxSpeed / accel
	accelDistance := 0.5 * accel * accelTime * accelTime

	if distance <= 2*accelDistance {
		return 2 * math.Sqrt(distance/accel)
	}
	return 2*accelTime + (distance-2*accelDistance)/maxSpeed
}
