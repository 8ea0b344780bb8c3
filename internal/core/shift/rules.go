package shift

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultBreakAfterHours           = 4.0
	DefaultBreakDurationMinutes      = 30.0
	DefaultMaxShiftHours             = 9.0
	DefaultHardRestHoursAfterBlock   = 6.0
	DefaultMinRestBetweenShiftsHours = 1.0
	DefaultMinShiftHoursBeforeCanEnd = 3.0
	DefaultTimeAccelerationFactor    = 60.0
	DefaultSoonLeadMinutes           = 30
)

// Rules はシフト疲労管理のしきい値をまとめた設定値です。
// 勤務・休憩のしきい値は仮想時間、ブロック期間とシフト間休息は実時間で評価されます。
type Rules struct {
	BreakAfterHours           float64
	BreakDurationMinutes      float64
	MaxShiftHours             float64
	HardRestHoursAfterBlock   float64
	MinRestBetweenShiftsHours float64
	MinShiftHoursBeforeCanEnd float64
	TimeAccelerationFactor    float64
	SoonLeadMinutes           int
}

// DefaultRules は既定値の Rules を返します。
func DefaultRules() Rules {
	return Rules{
		BreakAfterHours:           DefaultBreakAfterHours,
		BreakDurationMinutes:      DefaultBreakDurationMinutes,
		MaxShiftHours:             DefaultMaxShiftHours,
		HardRestHoursAfterBlock:   DefaultHardRestHoursAfterBlock,
		MinRestBetweenShiftsHours: DefaultMinRestBetweenShiftsHours,
		MinShiftHoursBeforeCanEnd: DefaultMinShiftHoursBeforeCanEnd,
		TimeAccelerationFactor:    DefaultTimeAccelerationFactor,
		SoonLeadMinutes:           DefaultSoonLeadMinutes,
	}
}

// Validate はしきい値の整合性を検証します。
func (r Rules) Validate() error {
	positive := map[string]float64{
		"break_after_hours":        r.BreakAfterHours,
		"break_duration_minutes":   r.BreakDurationMinutes,
		"max_shift_hours":          r.MaxShiftHours,
		"time_acceleration_factor": r.TimeAccelerationFactor,
	}
	for name, v := range positive {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%s must be positive: %w", name, ErrInvalidRules)
		}
	}

	nonNegative := map[string]float64{
		"hard_rest_hours_after_block":    r.HardRestHoursAfterBlock,
		"min_rest_between_shifts_hours":  r.MinRestBetweenShiftsHours,
		"min_shift_hours_before_can_end": r.MinShiftHoursBeforeCanEnd,
	}
	for name, v := range nonNegative {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s must not be negative: %w", name, ErrInvalidRules)
		}
	}

	if r.SoonLeadMinutes < 0 {
		return fmt.Errorf("soon_lead_minutes must not be negative: %w", ErrInvalidRules)
	}
	return nil
}

func (r Rules) hardRest() time.Duration {
	return hoursToDuration(r.HardRestHoursAfterBlock)
}

func (r Rules) minRest() time.Duration {
	return hoursToDuration(r.MinRestBetweenShiftsHours)
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
