package kinematics

import (
	"fmt"
	"sort"
)

// kmhPerMs converts m/s to km/h.
const kmhPerMs = 3.6

// CurveConfig parameterises an acceleration curve. Velocities are in km/h, as entered
// by operators; accelerations in m/s².
type CurveConfig struct {
	LinearVelocityThreshold float64 `json:"linear_velocity_threshold"` // km/h
	InitialAcceleration     float64 `json:"initial_acceleration"`      // m/s²
	VelocityIncrement       float64 `json:"velocity_increment"`        // km/h
	LossFactor              float64 `json:"loss_factor"`               // dimensionless
	MaxVelocity             float64 `json:"max_velocity"`              // km/h
}

// DefaultCurveConfig returns the defaults used when a curve is requested without parameters.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		LinearVelocityThreshold: 30,
		InitialAcceleration:     1.1,
		VelocityIncrement:       1,
		LossFactor:              46,
		MaxVelocity:             160,
	}
}

// Validate rejects configurations that cannot produce a curve.
func (c CurveConfig) Validate() error {
	if c.InitialAcceleration <= 0 {
		return fmt.Errorf("curve initial acceleration must be positive, got %g", c.InitialAcceleration)
	}
	if c.VelocityIncrement <= 0 {
		return fmt.Errorf("curve velocity increment must be positive, got %g", c.VelocityIncrement)
	}
	if c.LossFactor <= 0 {
		return fmt.Errorf("curve loss factor must be positive, got %g", c.LossFactor)
	}
	if c.MaxVelocity <= 0 {
		return fmt.Errorf("curve max velocity must be positive, got %g", c.MaxVelocity)
	}
	if c.LinearVelocityThreshold < 0 {
		return fmt.Errorf("curve linear velocity threshold must not be negative, got %g", c.LinearVelocityThreshold)
	}
	return nil
}

// CurvePoint is one sample of an acceleration curve.
type CurvePoint struct {
	Velocity     float64 // m/s
	Acceleration float64 // m/s²
}

// CurveData is the display form of a curve: velocities in km/h.
type CurveData struct {
	Velocity     []float64 `json:"velocity"`
	Acceleration []float64 `json:"acceleration"`
}

// AccelerationCurve is a precomputed velocity → acceleration table queried by
// linear interpolation.
type AccelerationCurve struct {
	config CurveConfig
	points []CurvePoint
}

// NewAccelerationCurve builds the sample table. Up to the linear threshold the
// acceleration is constant; past it each increment loses 1/LossFactor of the
// previous value.
func NewAccelerationCurve(cfg CurveConfig) (*AccelerationCurve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var points []CurvePoint
	a := cfg.InitialAcceleration
	for i := 0; ; i++ {
		v := float64(i) * cfg.VelocityIncrement
		if v > cfg.MaxVelocity+1e-9 {
			break
		}
		if v <= cfg.LinearVelocityThreshold {
			a = cfg.InitialAcceleration
		} else {
			a -= a / cfg.LossFactor
		}
		points = append(points, CurvePoint{Velocity: v / kmhPerMs, Acceleration: a})
	}

	return &AccelerationCurve{config: cfg, points: points}, nil
}

// Config returns the parameters the curve was built from.
func (c *AccelerationCurve) Config() CurveConfig { return c.config }

// Points returns a copy of the samples.
func (c *AccelerationCurve) Points() []CurvePoint {
	out := make([]CurvePoint, len(c.points))
	copy(out, c.points)
	return out
}

// At returns the interpolated acceleration at velocity v (m/s).
func (c *AccelerationCurve) At(v float64) float64 {
	last := c.points[len(c.points)-1]
	if v*kmhPerMs >= c.config.MaxVelocity {
		return last.Acceleration
	}
	if v <= 0 {
		return c.config.InitialAcceleration
	}

	// First sample strictly above v; v lies in [points[i-1], points[i]].
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Velocity > v })
	if i == 0 {
		return c.points[0].Acceleration
	}
	if i == len(c.points) {
		return last.Acceleration
	}
	lo, hi := c.points[i-1], c.points[i]
	span := hi.Velocity - lo.Velocity
	if span <= 0 {
		return lo.Acceleration
	}
	frac := (v - lo.Velocity) / span
	return lo.Acceleration + frac*(hi.Acceleration-lo.Acceleration)
}

// Data returns the curve for display, with velocities converted back to km/h.
func (c *AccelerationCurve) Data() CurveData {
	data := CurveData{
		Velocity:     make([]float64, len(c.points)),
		Acceleration: make([]float64, len(c.points)),
	}
	for i, p := range c.points {
		data.Velocity[i] = p.Velocity * kmhPerMs
		data.Acceleration[i] = p.Acceleration
	}
	return data
}
