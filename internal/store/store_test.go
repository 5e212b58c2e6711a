package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/kinematics"
	"github.com/cxd309/trip-engine/internal/planner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestCurveCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg := kinematics.DefaultCurveConfig()
	c, err := s.CreateCurve(ctx, "suburban", cfg, false)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	got, err := s.GetCurve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	list, err := s.ListCurves(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.DefaultCurve(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteCurve(ctx, c.ID))
	_, err = s.GetCurve(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteCurve(ctx, c.ID), ErrNotFound)
}

func TestCreateCurveSwitchesDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cfg := kinematics.DefaultCurveConfig()

	first, err := s.CreateCurve(ctx, "first", cfg, true)
	require.NoError(t, err)
	second, err := s.CreateCurve(ctx, "second", cfg, true)
	require.NoError(t, err)
	_, err = s.CreateCurve(ctx, "third", cfg, false)
	require.NoError(t, err)

	def, err := s.DefaultCurve(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	old, err := s.GetCurve(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)

	list, err := s.ListCurves(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, "third", list[1].Name)
}

func TestCreateCurveValidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCurve(ctx, "", kinematics.DefaultCurveConfig(), false)
	assert.Error(t, err)

	bad := kinematics.DefaultCurveConfig()
	bad.LossFactor = 0
	_, err = s.CreateCurve(ctx, "bad", bad, false)
	assert.Error(t, err)
}

func TestRunHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, b := 0.0, 5000.0
	input := engine.SimulationInput{
		InitialAccel: 3, ThresholdSpeed: 20, MaxSpeed: 30,
		Stations:  []engine.StationInput{{Name: "A", Position: &a}, {Name: "B", Position: &b}},
		DwellTime: 30,
	}
	result := &engine.SimulationResult{
		Time:     []float64{0, 0.1, 0.2},
		Position: []float64{0, 0.015, 0.06},
		Velocity: []float64{0, 0.3, 0.6},
		Schedule: []planner.ScheduleEntry{{Station: "B", ArrivalTime: 180, DepartureTime: 210}},
	}

	ok, err := s.SaveRun(ctx, input, result, nil, 12*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ok.Status)
	assert.Equal(t, 3, ok.Points)

	failed, err := s.SaveRun(ctx, input, nil, errors.New("boom"), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)

	run, err := s.GetRun(ctx, ok.ID)
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	assert.Equal(t, *result, *run.Result)
	assert.Equal(t, input, run.Input)
	assert.Equal(t, int64(12), run.DurationMS)

	run, err = s.GetRun(ctx, failed.ID)
	require.NoError(t, err)
	assert.Nil(t, run.Result)
	assert.Equal(t, "boom", run.Error)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsPaginates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, b := 0.0, 1000.0
	input := engine.SimulationInput{Stations: []engine.StationInput{{Name: "A", Position: &a}, {Name: "B", Position: &b}}}
	var ids []string
	for i := 0; i < 5; i++ {
		r, err := s.SaveRun(ctx, input, &engine.SimulationResult{}, nil, 0)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	page, err := s.ListRuns(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, ids[4], page.Data[0].ID, "newest first")

	page, err = s.ListRuns(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ids[0], page.Data[0].ID)

	page, err = s.ListRuns(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Len(t, page.Data, 5)
}
