package plot

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/planner"
)

func sampleResult() engine.SimulationResult {
	return engine.SimulationResult{
		Time:     []float64{0, 10, 20, 50, 60, 70},
		Position: []float64{0, 100, 200, 200, 100, 0},
		Velocity: []float64{0, 10, 0, 0, 10, 0},
		Schedule: []planner.ScheduleEntry{
			{Station: "B", ArrivalTime: 20, DepartureTime: 50},
			{Station: "A", ArrivalTime: 70, DepartureTime: 70},
		},
	}
}

func TestWriteSeries(t *testing.T) {
	for _, s := range []Series{Position, Velocity} {
		t.Run(string(s), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteSeries(&buf, sampleResult(), s))

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, int(widthIn*dpi), img.Bounds().Dx())
			assert.Equal(t, int(heightIn*dpi), img.Bounds().Dy())
		})
	}
}

func TestWriteSeriesRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteSeries(&buf, sampleResult(), Series("jerk")), ErrUnknownSeries)
	assert.Error(t, WriteSeries(&buf, engine.SimulationResult{}, Position))
}

func TestParseSeries(t *testing.T) {
	s, err := ParseSeries("velocity")
	require.NoError(t, err)
	assert.Equal(t, Velocity, s)

	_, err = ParseSeries("acceleration")
	assert.ErrorIs(t, err, ErrUnknownSeries)
}

func TestWriteCurve(t *testing.T) {
	c, err := kinematics.NewAccelerationCurve(kinematics.DefaultCurveConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCurve(&buf, c.Data()))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)
}

func TestSaveTrajectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := SaveTrajectory(dir, sampleResult())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
