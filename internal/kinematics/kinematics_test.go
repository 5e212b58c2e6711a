package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTraction(t *testing.T) TaperedTraction {
	t.Helper()
	m, err := NewTaperedTraction(3.0, 20.0, 30.0)
	require.NoError(t, err)
	return m
}

func TestTaperedTractionAcceleration(t *testing.T) {
	m := testTraction(t)

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"standstill", 0, 3.0},
		{"low speed", 5.0, 3.0},
		{"just below threshold", 19.9, 3.0},
		{"mid taper", 25.0, 1.5},
		{"near max", 29.9, 0.03},
		{"at max", 30.0, 0},
		{"above max", 35.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Acceleration(tt.v), 1e-9)
		})
	}
}

func TestTaperedTractionIsNonIncreasing(t *testing.T) {
	m := testTraction(t)
	prev := m.Acceleration(0)
	for v := 0.0; v <= 40; v += 0.05 {
		a := m.Acceleration(v)
		assert.LessOrEqual(t, a, prev+1e-12, "acceleration rose at v=%.2f", v)
		prev = a
	}
}

func TestTaperedTractionBraking(t *testing.T) {
	m := testTraction(t)
	assert.Equal(t, -2.0, m.BrakingAcceleration())
	assert.Equal(t, 2.0, m.DecelerationRate())

	m.Decel = 1.2
	assert.Equal(t, -1.2, m.BrakingAcceleration())
}

func TestTaperedTractionValidate(t *testing.T) {
	_, err := NewTaperedTraction(0, 10, 20)
	assert.Error(t, err)
	_, err = NewTaperedTraction(1, 0, 20)
	assert.Error(t, err)
	_, err = NewTaperedTraction(1, 20, 20)
	assert.Error(t, err)
	_, err = NewTaperedTraction(1, 10, 20)
	assert.NoError(t, err)
}

func TestBrakingDistance(t *testing.T) {
	assert.InDelta(t, 225.0, BrakingDistance(30, 2), 1e-9)
	assert.Equal(t, 0.0, BrakingDistance(0, 2))
	assert.True(t, math.IsInf(BrakingDistance(10, 0), 1))
}

func TestAccelerationCurve(t *testing.T) {
	cfg := DefaultCurveConfig()
	c, err := NewAccelerationCurve(cfg)
	require.NoError(t, err)

	points := c.Points()
	require.Len(t, points, 161)

	t.Run("flat up to the linear threshold", func(t *testing.T) {
		for _, p := range points[:31] {
			assert.Equal(t, cfg.InitialAcceleration, p.Acceleration)
		}
	})

	t.Run("decays past the threshold", func(t *testing.T) {
		assert.InDelta(t, 1.1*45/46, points[31].Acceleration, 1e-12)
		for i := 31; i < len(points); i++ {
			assert.Less(t, points[i].Acceleration, points[i-1].Acceleration)
		}
	})

	t.Run("interpolates between samples", func(t *testing.T) {
		mid := (points[30].Acceleration + points[31].Acceleration) / 2
		assert.InDelta(t, mid, c.At(30.5/3.6), 1e-9)
		assert.InDelta(t, points[50].Acceleration, c.At(points[50].Velocity), 1e-12)
	})

	t.Run("clamps outside the table", func(t *testing.T) {
		assert.Equal(t, cfg.InitialAcceleration, c.At(0))
		assert.Equal(t, cfg.InitialAcceleration, c.At(-3))
		assert.Equal(t, points[160].Acceleration, c.At(200/3.6))
	})

	t.Run("display data is in km/h", func(t *testing.T) {
		data := c.Data()
		require.Len(t, data.Velocity, 161)
		assert.InDelta(t, 160.0, data.Velocity[160], 1e-9)
		assert.Equal(t, points[160].Acceleration, data.Acceleration[160])
	})
}

func TestAccelerationCurveRejectsBadConfig(t *testing.T) {
	cfg := DefaultCurveConfig()
	cfg.VelocityIncrement = 0
	_, err := NewAccelerationCurve(cfg)
	assert.Error(t, err)

	cfg = DefaultCurveConfig()
	cfg.LossFactor = -1
	_, err = NewAccelerationCurve(cfg)
	assert.Error(t, err)
}

func TestTaperedTractionWithCurve(t *testing.T) {
	c, err := NewAccelerationCurve(CurveConfig{
		LinearVelocityThreshold: 36,
		InitialAcceleration:     1.0,
		VelocityIncrement:       3.6,
		LossFactor:              10,
		MaxVelocity:             72,
	})
	require.NoError(t, err)

	m := TaperedTraction{InitialAccel: 1.0, ThresholdSpeed: 10, MaxSpeed: 20, Curve: c}
	assert.Equal(t, 1.0, m.Acceleration(5))
	assert.InDelta(t, c.At(15), m.Acceleration(15), 1e-12)
	assert.Less(t, m.Acceleration(15), 1.0)
	assert.Equal(t, 0.0, m.Acceleration(20))
}
