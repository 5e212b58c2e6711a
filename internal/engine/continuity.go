package engine

import "github.com/rs/zerolog"

const (
	// MaxTimeGap is the largest spacing (s) between consecutive samples that is not reported.
	MaxTimeGap = 1.0
	// MaxJump is the largest position change (m) allowed between samples less than a second apart.
	MaxJump = 1000.0
	// MinReportedStop is the zero-velocity duration (s) above which a stop is recorded.
	MinReportedStop = 10.0
	// MinLayoverStop is the zero-velocity duration (s) from which a stop counts as the terminal layover.
	MinLayoverStop = 200.0
)

// TimeGap is a pair of consecutive samples further apart than MaxTimeGap.
type TimeGap struct {
	Index int     `json:"index"`
	Gap   float64 `json:"gap"`
}

// PositionJump is a pair of close samples more than MaxJump apart in position.
type PositionJump struct {
	Index    int     `json:"index"`
	Jump     float64 `json:"jump"`
	Interval float64 `json:"interval"`
}

// Stop is a run of zero-velocity samples.
type Stop struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Position float64 `json:"position"`
}

// Duration returns the stop length in seconds.
func (s Stop) Duration() float64 { return s.End - s.Start }

// ContinuityReport lists what CheckContinuity found in a series.
type ContinuityReport struct {
	TimeGaps      []TimeGap      `json:"time_gaps"`
	PositionJumps []PositionJump `json:"position_jumps"`
	Stops         []Stop         `json:"stops"`
	LayoverStops  int            `json:"layover_stops"`
}

// LayoverVisible reports whether at least one stop is long enough to be the layover.
func (r ContinuityReport) LayoverVisible() bool { return r.LayoverStops > 0 }

// CheckContinuity scans a combined series for time gaps, position jumps and long stops.
// The series is not modified.
func CheckContinuity(time, position, velocity []float64) ContinuityReport {
	report := ContinuityReport{
		TimeGaps:      []TimeGap{},
		PositionJumps: []PositionJump{},
		Stops:         []Stop{},
	}

	for i := 1; i < len(time); i++ {
		dt := time[i] - time[i-1]
		if dt > MaxTimeGap {
			report.TimeGaps = append(report.TimeGaps, TimeGap{Index: i, Gap: dt})
		}
		jump := position[i] - position[i-1]
		if jump < 0 {
			jump = -jump
		}
		if dt < 1 && jump > MaxJump {
			report.PositionJumps = append(report.PositionJumps, PositionJump{Index: i, Jump: jump, Interval: dt})
		}
	}

	start := -1
	closeStop := func(end int) {
		s := Stop{Start: time[start], End: time[end], Position: position[start]}
		if s.Duration() > MinReportedStop {
			report.Stops = append(report.Stops, s)
			if s.Duration() >= MinLayoverStop {
				report.LayoverStops++
			}
		}
		start = -1
	}
	for i, v := range velocity {
		if v == 0 {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			closeStop(i - 1)
		}
	}
	if start >= 0 {
		closeStop(len(velocity) - 1)
	}

	return report
}

// log writes the report at a level matching its severity. The missing-layover warning
// is only raised when a layover was asked for.
func (r ContinuityReport) log(logger zerolog.Logger, expectLayover bool) {
	if n := len(r.TimeGaps); n > 0 {
		first := r.TimeGaps[0]
		logger.Debug().Int("count", n).Int("first_index", first.Index).Float64("first_gap", first.Gap).Msg("time gaps in trajectory")
	}
	for _, j := range r.PositionJumps {
		logger.Error().Int("index", j.Index).Float64("jump", j.Jump).Float64("interval", j.Interval).Msg("position jump in trajectory")
	}
	if expectLayover && !r.LayoverVisible() {
		logger.Warn().Int("stops", len(r.Stops)).Msg("no stop long enough to show the terminal layover")
	}
}
