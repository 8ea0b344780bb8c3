package shift

import (
	"math"
	"time"
)

// Result は Recompute の結果です。
type Result struct {
	// Record は再計算後のレコードです。入力レコードは変更されません。
	Record *Record
	// Events は再計算中に発生した状態遷移イベントです。
	Events []Event
	// Changed はレコードを永続化する必要がある場合に true になります。
	Changed bool
	// Skew は now が LastStatusChange より過去だった場合のずれです。
	Skew time.Duration
}

// Recompute は now 時点までの経過時間を仮想時間に換算し、オープンなシフトを進めます。
// タイマーを持たない純粋関数で、呼び出し側が読み書きの直前に毎回実行します。
func Recompute(rec *Record, now time.Time, rules Rules) Result {
	if rec == nil {
		return Result{}
	}

	next := rec.Clone()
	if !rec.IsOpen() || rec.LastStatusChange.IsZero() {
		return Result{Record: next}
	}

	elapsed := now.Sub(rec.LastStatusChange)
	realDelta := int64(math.Floor(elapsed.Seconds()))
	if realDelta <= 0 {
		res := Result{Record: next}
		if elapsed < 0 {
			res.Skew = -elapsed
		}
		return res
	}

	scaled := float64(realDelta) * rules.TimeAccelerationFactor
	virtualDelta := int64(math.Floor(scaled))
	if virtualDelta <= 0 {
		return Result{Record: next}
	}

	// 仮想時間に換算した分の実時間だけ LastStatusChange を進め、端数は次回の再計算に持ち越します。
	consumed := time.Duration(realDelta) * time.Second
	if float64(virtualDelta) != scaled {
		consumed = time.Duration(math.Round(float64(virtualDelta) / rules.TimeAccelerationFactor * float64(time.Second)))
	}
	mark := rec.LastStatusChange.Add(consumed)
	if mark.After(now) {
		mark = now
	}

	switch rec.Status {
	case StatusActive:
		return accrueWork(next, rec, virtualDelta, now, mark, rules)
	case StatusBreak:
		return accrueBreak(next, rec, virtualDelta, now, mark, rules)
	default:
		return Result{Record: next}
	}
}

func accrueWork(next, prev *Record, virtualDelta int64, now, mark time.Time, rules Rules) Result {
	newWork := prev.TotalWorkSeconds + virtualDelta
	prevHours := float64(prev.TotalWorkSeconds) / 3600
	newHours := float64(newWork) / 3600

	next.TotalWorkSeconds = newWork
	next.LastStatusChange = mark

	if newHours >= rules.MaxShiftHours {
		endedAt := now
		next.LastStatusChange = now
		blockedUntil := now.Add(rules.hardRest())
		next.Status = StatusBlocked
		next.EndedAt = &endedAt
		next.BlockedUntil = &blockedUntil
		return Result{
			Record:  next,
			Changed: true,
			Events: []Event{newEvent(next, EventBlockStart, now, map[string]any{
				"reason":           BlockReasonMaxShiftHours,
				"total_work_hours": newHours,
			})},
		}
	}

	if prevHours < rules.BreakAfterHours && newHours >= rules.BreakAfterHours {
		next.Status = StatusBreak
		return Result{
			Record:  next,
			Changed: true,
			Events: []Event{newEvent(next, EventBreakStart, now, map[string]any{
				"total_work_hours_before_break": prevHours,
			})},
		}
	}

	return Result{Record: next, Changed: true}
}

func accrueBreak(next, prev *Record, virtualDelta int64, now, mark time.Time, rules Rules) Result {
	newBreak := prev.TotalBreakSeconds + virtualDelta
	prevMinutes := float64(prev.TotalBreakSeconds) / 60
	newMinutes := float64(newBreak) / 60

	next.TotalBreakSeconds = newBreak
	next.LastStatusChange = mark

	if prevMinutes < rules.BreakDurationMinutes && newMinutes >= rules.BreakDurationMinutes {
		next.Status = StatusActive
		return Result{
			Record:  next,
			Changed: true,
			Events: []Event{newEvent(next, EventBreakEnd, now, map[string]any{
				"total_break_minutes": newMinutes,
			})},
		}
	}

	return Result{Record: next, Changed: true}
}

func newEvent(rec *Record, typ EventType, at time.Time, meta map[string]any) Event {
	return Event{
		ShiftID:    rec.ID,
		CourierID:  rec.CourierID,
		Type:       typ,
		OccurredAt: at,
		Meta:       meta,
	}
}
