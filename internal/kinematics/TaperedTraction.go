package kinematics

import "fmt"

// TaperedTraction implements TractionModel with full acceleration up to a threshold
// speed, tapering to zero at the maximum speed.
//
// Between the threshold and the maximum the taper is linear, unless a Curve is set,
// in which case the curve is interpolated instead.
type TaperedTraction struct {
	InitialAccel   float64            `json:"initial_accel"`   // m/s²
	ThresholdSpeed float64            `json:"threshold_speed"` // m/s
	MaxSpeed       float64            `json:"max_speed"`       // m/s
	Decel          float64            `json:"deceleration_rate,omitempty"`
	Curve          *AccelerationCurve `json:"-"`
}

// NewTaperedTraction returns a model with the default deceleration rate and no curve.
func NewTaperedTraction(initialAccel, thresholdSpeed, maxSpeed float64) (TaperedTraction, error) {
	t := TaperedTraction{
		InitialAccel:   initialAccel,
		ThresholdSpeed: thresholdSpeed,
		MaxSpeed:       maxSpeed,
		Decel:          DefaultDecelerationRate,
	}
	return t, t.Validate()
}

// Validate checks the model invariants.
func (t TaperedTraction) Validate() error {
	if t.InitialAccel <= 0 {
		return fmt.Errorf("initial acceleration must be positive, got %g", t.InitialAccel)
	}
	if t.ThresholdSpeed <= 0 {
		return fmt.Errorf("threshold speed must be positive, got %g", t.ThresholdSpeed)
	}
	if t.ThresholdSpeed >= t.MaxSpeed {
		return fmt.Errorf("threshold speed %g must be below max speed %g", t.ThresholdSpeed, t.MaxSpeed)
	}
	if t.Decel < 0 {
		return fmt.Errorf("deceleration rate must not be negative, got %g", t.Decel)
	}
	return nil
}

func (t TaperedTraction) Acceleration(v float64) float64 {
	switch {
	case v < t.ThresholdSpeed:
		return t.InitialAccel
	case v < t.MaxSpeed:
		if t.Curve != nil {
			return t.Curve.At(v)
		}
		return t.InitialAccel * (1 - (v-t.ThresholdSpeed)/(t.MaxSpeed-t.ThresholdSpeed))
	default:
		return 0
	}
}

func (t TaperedTraction) BrakingAcceleration() float64 { return -t.DecelerationRate() }

func (t TaperedTraction) DecelerationRate() float64 {
	if t.Decel == 0 {
		return DefaultDecelerationRate
	}
	return t.Decel
}

func (t TaperedTraction) VMax() float64 { return t.MaxSpeed }
