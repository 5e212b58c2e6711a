// Package integrator implements the fixed-step RK4 integrator that advances a train's
// position and velocity over one continuous run.
//
// A run can end in three ways: the time horizon is exhausted, the velocity crosses
// zero inside a step (the crossing is interpolated and the run stops there), or the
// train settles on its target within the arrival tolerance.
package integrator

import "math"

const (
	// StopThreshold is the velocity (m/s) at or below which braking releases.
	StopThreshold = 0.1
	// BrakingMinSpeed is the velocity (m/s) above which braking may engage.
	BrakingMinSpeed = 0.5
	// ArrivalTolerance is the distance (m) from the target within which a slow train is snapped onto it.
	ArrivalTolerance = 0.1
	// ArrivalMaxSpeed is the velocity (m/s) below which the arrival snap applies.
	ArrivalMaxSpeed = 0.5

	// minCrossingStep is the smallest sub-step (s) worth a separate sample at a zero crossing.
	minCrossingStep = 1e-9
)

// AccelerationFunc returns the acceleration (m/s²) at time t, position pos and velocity vel.
type AccelerationFunc func(t, pos, vel float64) float64

// Termination records why a run stopped.
type Termination string

const (
	TerminatedHorizon      Termination = "horizon"
	TerminatedZeroCrossing Termination = "zero_crossing"
	TerminatedArrived      Termination = "arrived"
)

// Run describes one continuous integration.
type Run struct {
	InitialPosition float64 // m
	InitialVelocity float64 // m/s, ≥ 0
	Start, End      float64 // s
	Accel           AccelerationFunc
	// Target is the stopping point; nil disables braking control and the arrival snap.
	Target     *float64
	UseBraking bool
}

// Trajectory holds equal-length time, position and velocity series.
type Trajectory struct {
	T           []float64
	Position    []float64
	Velocity    []float64
	Termination Termination
}

// Len returns the number of samples.
func (tr Trajectory) Len() int { return len(tr.T) }

// Last returns the final sample.
func (tr Trajectory) Last() (t, pos, vel float64) {
	n := len(tr.T) - 1
	return tr.T[n], tr.Position[n], tr.Velocity[n]
}

// Stepper integrates runs with a fixed timestep. It holds no per-run state, so one
// Stepper may be reused for any number of Solve calls.
type Stepper struct {
	dt    float64
	decel float64
}

// NewStepper returns a Stepper with timestep dt (s) and braking deceleration decel (m/s², positive).
func NewStepper(dt, decel float64) *Stepper {
	return &Stepper{dt: dt, decel: decel}
}

// DT returns the integration timestep.
func (s *Stepper) DT() float64 { return s.dt }

// Steps returns the number of samples a run over [start, end] produces if it is not cut short.
func (s *Stepper) Steps(start, end float64) int {
	if end <= start {
		return 1
	}
	return int(math.Floor((end-start)/s.dt+1e-9)) + 1
}

// Solve integrates r and returns the trajectory.
func (s *Stepper) Solve(r Run) Trajectory {
	n := s.Steps(r.Start, r.End)
	dt := s.dt

	tr := Trajectory{
		T:           make([]float64, 1, n),
		Position:    make([]float64, 1, n),
		Velocity:    make([]float64, 1, n),
		Termination: TerminatedHorizon,
	}
	tr.T[0] = r.Start
	tr.Position[0] = r.InitialPosition
	tr.Velocity[0] = math.Max(0, r.InitialVelocity)

	gate := brakingGate{
		enabled: r.UseBraking && r.Target != nil,
		decel:   s.decel,
	}
	if gate.enabled {
		gate.target = *r.Target
	}

	// Every RK4 stage of a step sees the gate state fixed at the start of that step.
	accel := func(t, pos, vel float64) float64 {
		if gate.braking {
			return -s.decel
		}
		return r.Accel(t, pos, vel)
	}

	for i := 0; i < n-1; i++ {
		t, pos, vel := tr.T[i], tr.Position[i], tr.Velocity[i]
		gate.update(pos, vel)

		k1x, k1v := vel, accel(t, pos, vel)
		k2x, k2v := vel+0.5*dt*k1v, accel(t+0.5*dt, pos+0.5*dt*k1x, vel+0.5*dt*k1v)
		k3x, k3v := vel+0.5*dt*k2v, accel(t+0.5*dt, pos+0.5*dt*k2x, vel+0.5*dt*k2v)
		k4x, k4v := vel+dt*k3v, accel(t+dt, pos+dt*k3x, vel+dt*k3v)

		nextT := r.Start + float64(i+1)*dt
		nextPos := pos + (dt/6)*(k1x+2*k2x+2*k3x+k4x)
		nextVel := vel + (dt/6)*(k1v+2*k2v+2*k3v+k4v)

		if vel > 0 && nextVel < 0 {
			tau := vel / (vel - nextVel)
			h := tau * dt
			if h < minCrossingStep {
				tr.Velocity[i] = 0
			} else {
				tr.T = append(tr.T, t+h)
				tr.Position = append(tr.Position, pos+vel*h+0.5*k1v*h*h)
				tr.Velocity = append(tr.Velocity, 0)
			}
			tr.Termination = TerminatedZeroCrossing
			return tr
		}

		if r.Target != nil && math.Abs(nextPos-*r.Target) < ArrivalTolerance && nextVel < ArrivalMaxSpeed {
			tr.T = append(tr.T, nextT)
			tr.Position = append(tr.Position, *r.Target)
			tr.Velocity = append(tr.Velocity, 0)
			tr.Termination = TerminatedArrived
			return tr
		}

		tr.T = append(tr.T, nextT)
		tr.Position = append(tr.Position, nextPos)
		tr.Velocity = append(tr.Velocity, math.Max(0, nextVel))
	}

	return tr
}
