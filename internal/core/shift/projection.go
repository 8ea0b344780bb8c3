package shift

import (
	"math"
	"time"
)

// Project は再計算済みのオープンなシフトと最新レコードから CurrentState を導出します。
// open が nil の場合、latest のブロック期間中であれば BLOCKED、そうでなければ OUT_OF_SHIFT を返します。
func Project(courierID string, open, latest *Record, now time.Time, rules Rules) *CurrentState {
	if open.IsOpen() {
		return projectOpen(courierID, open, rules)
	}

	if latest != nil && latest.BlockedUntil != nil && latest.BlockedUntil.After(now) {
		left := ceilMinutes(latest.BlockedUntil.Sub(now))
		return &CurrentState{
			CourierID:          courierID,
			Status:             StatusBlocked,
			ShiftID:            latest.ID,
			WorkSeconds:        latest.TotalWorkSeconds,
			BreakSeconds:       latest.TotalBreakSeconds,
			WorkHours:          round2(latest.WorkHours()),
			BreakMinutes:       int(math.Round(latest.BreakMinutes())),
			BlockedUntil:       cloneTime(latest.BlockedUntil),
			BlockedMinutesLeft: &left,
		}
	}

	return &CurrentState{
		CourierID: courierID,
		Status:    StatusOutOfShift,
	}
}

func projectOpen(courierID string, open *Record, rules Rules) *CurrentState {
	workHours := open.WorkHours()
	state := &CurrentState{
		CourierID:    courierID,
		Status:       open.Status,
		ShiftID:      open.ID,
		WorkSeconds:  open.TotalWorkSeconds,
		BreakSeconds: open.TotalBreakSeconds,
		WorkHours:    round2(workHours),
		BreakMinutes: int(math.Round(open.BreakMinutes())),
		BlockedUntil: cloneTime(open.BlockedUntil),
	}

	if open.Status != StatusActive {
		return state
	}

	if hoursToBreak := rules.BreakAfterHours - workHours; hoursToBreak > 0 {
		minutes := minutesLeft(hoursToBreak)
		state.MinutesToBreak = &minutes
		state.BreakSoon = minutes <= rules.SoonLeadMinutes
	}

	if hoursToBlock := rules.MaxShiftHours - workHours; hoursToBlock > 0 {
		minutes := minutesLeft(hoursToBlock)
		state.MinutesToBlock = &minutes
		state.BlockSoon = minutes <= rules.SoonLeadMinutes
	}

	return state
}

func minutesLeft(hours float64) int {
	m := int(math.Round(hours * 60))
	if m < 0 {
		return 0
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
