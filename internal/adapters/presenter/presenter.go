// Package presenter は HTTP と gRPC で共通の JSON 互換レスポンス形式を組み立てます。
// 値は structpb.NewStruct にそのまま渡せる型 (string, float64, int64, bool, nil, map, []any) に限定します。
package presenter

import (
	"errors"
	"math"
	"time"

	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
)

// 業務ルールによる拒否を表すコードです。
const (
	CodeShiftAlreadyOpen   = "SHIFT_ALREADY_OPEN"
	CodeStillBlocked       = "STILL_BLOCKED"
	CodeInsufficientRest   = "INSUFFICIENT_REST"
	CodeNoOpenShift        = "NO_OPEN_SHIFT"
	CodeAlreadyAutoBlocked = "ALREADY_AUTO_BLOCKED"
	CodeMinimumNotReached  = "MINIMUM_NOT_REACHED"
)

// Record はシフトレコードを snake_case のマップに変換します。
func Record(r *shift.Record) map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{
		"id":                  r.ID,
		"courier_id":          r.CourierID,
		"status":              string(r.Status),
		"started_at":          formatTime(r.StartedAt),
		"ended_at":            formatTimePtr(r.EndedAt),
		"total_work_seconds":  r.TotalWorkSeconds,
		"total_break_seconds": r.TotalBreakSeconds,
		"work_hours":          round2(r.WorkHours()),
		"break_minutes":       math.Round(r.BreakMinutes()),
		"blocked_until":       formatTimePtr(r.BlockedUntil),
		"last_status_change":  formatTime(r.LastStatusChange),
	}
}

// Records はシフトレコードの一覧を変換します。
func Records(records []*shift.Record) []any {
	out := make([]any, 0, len(records))
	for _, r := range records {
		out = append(out, Record(r))
	}
	return out
}

// CurrentState は配達員画面向けの現在状態を camelCase のマップに変換します。
func CurrentState(s *shift.CurrentState) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{
		"status":             string(s.Status),
		"shiftId":            nullableString(s.ShiftID),
		"workSeconds":        s.WorkSeconds,
		"breakSeconds":       s.BreakSeconds,
		"workHours":          s.WorkHours,
		"breakMinutes":       int64(s.BreakMinutes),
		"timeToBreakMinutes": nullableInt(s.MinutesToBreak),
		"timeToBlockMinutes": nullableInt(s.MinutesToBlock),
		"breakSoon":          s.BreakSoon,
		"blockSoon":          s.BlockSoon,
		"blockedUntil":       formatTimePtr(s.BlockedUntil),
	}
	if s.BlockedMinutesLeft != nil {
		out["blockedMinutesLeft"] = int64(*s.BlockedMinutesLeft)
	}
	return out
}

// Event はシフトイベントを変換します。
func Event(ev *shift.Event) map[string]any {
	if ev == nil {
		return nil
	}
	out := map[string]any{
		"id":          ev.ID,
		"shift_id":    ev.ShiftID,
		"event_type":  string(ev.Type),
		"occurred_at": formatTime(ev.OccurredAt),
		"meta":        nil,
	}
	if len(ev.Meta) > 0 {
		meta := make(map[string]any, len(ev.Meta))
		for k, v := range ev.Meta {
			meta[k] = v
		}
		out["meta"] = meta
	}
	return out
}

// Events はシフトイベントの一覧を変換します。
func Events(events []*shift.Event) []any {
	out := make([]any, 0, len(events))
	for _, ev := range events {
		out = append(out, Event(ev))
	}
	return out
}

// RosterEntry はロスターの 1 行を変換します。profile が nil の場合はプロフィール項目を省略します。
func RosterEntry(e *shift.RosterEntry, profile *courier.Courier) map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{
		"id":    e.CourierID,
		"state": CurrentState(e.State),
		"shift": nil,
	}
	if e.Latest != nil {
		out["shift"] = map[string]any{
			"id":            e.Latest.ID,
			"status":        string(e.Latest.Status),
			"started_at":    formatTime(e.Latest.StartedAt),
			"ended_at":      formatTimePtr(e.Latest.EndedAt),
			"work_minutes":  e.Latest.TotalWorkSeconds / 60,
			"break_minutes": e.Latest.TotalBreakSeconds / 60,
			"blocked_until": formatTimePtr(e.Latest.BlockedUntil),
		}
	}
	if profile != nil {
		out["phone"] = profile.Phone
		out["name"] = profile.Name
		out["avatar_url"] = nullableStringPtr(profile.AvatarURL)
		out["is_blocked"] = profile.IsBlocked
		out["blocked_reason"] = nullableStringPtr(profile.BlockedReason)
	}
	return out
}

// Rejection は業務ルールによる拒否をコードと付加情報に変換します。
// 拒否でない場合は ok が false になります。
func Rejection(err error) (code string, details map[string]any, ok bool) {
	var (
		stillBlocked *shift.StillBlockedError
		rest         *shift.InsufficientRestError
		autoBlocked  *shift.AutoBlockedError
		minimum      *shift.MinimumNotReachedError
	)

	switch {
	case errors.As(err, &stillBlocked):
		return CodeStillBlocked, map[string]any{"blockedUntil": formatTime(stillBlocked.BlockedUntil)}, true
	case errors.As(err, &rest):
		return CodeInsufficientRest, map[string]any{"restMinutesRemaining": int64(rest.MinutesRemaining())}, true
	case errors.As(err, &autoBlocked):
		return CodeAlreadyAutoBlocked, map[string]any{"shift": Record(autoBlocked.Record)}, true
	case errors.As(err, &minimum):
		return CodeMinimumNotReached, map[string]any{
			"workedHours":   round2(minimum.WorkedHours),
			"requiredHours": minimum.RequiredHours,
		}, true
	case errors.Is(err, shift.ErrShiftAlreadyOpen):
		return CodeShiftAlreadyOpen, map[string]any{}, true
	case errors.Is(err, shift.ErrNoOpenShift):
		return CodeNoOpenShift, map[string]any{}, true
	case errors.Is(err, shift.ErrStillBlocked):
		return CodeStillBlocked, map[string]any{}, true
	case errors.Is(err, shift.ErrInsufficientRest):
		return CodeInsufficientRest, map[string]any{}, true
	case errors.Is(err, shift.ErrAlreadyAutoBlocked):
		return CodeAlreadyAutoBlocked, map[string]any{}, true
	case errors.Is(err, shift.ErrMinimumNotReached):
		return CodeMinimumNotReached, map[string]any{}, true
	default:
		return "", nil, false
	}
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Couriers は管理者一覧向けにプロフィールとロスターを突き合わせます。順序は profiles に従います。
func Couriers(profiles []*courier.Courier, entries []*shift.RosterEntry) []any {
	byID := make(map[string]*shift.RosterEntry, len(entries))
	for _, e := range entries {
		byID[e.CourierID] = e
	}

	out := make([]any, 0, len(profiles))
	for _, p := range profiles {
		e, ok := byID[p.ID]
		if !ok {
			e = &shift.RosterEntry{CourierID: p.ID}
		}
		out = append(out, RosterEntry(e, p))
	}
	return out
}

// CourierIDs はプロフィール一覧から ID を取り出します。
func CourierIDs(profiles []*courier.Courier) []string {
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}
