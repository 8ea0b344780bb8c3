package shift

import "time"

// Status はシフトの状態を表します。
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusBreak    Status = "BREAK"
	StatusFinished Status = "FINISHED"
	StatusBlocked  Status = "BLOCKED"
	// StatusOutOfShift は CurrentState でのみ使用され、レコードには保存されません。
	StatusOutOfShift Status = "OUT_OF_SHIFT"
)

// EventType はシフトイベントの種別です。
type EventType string

const (
	EventWorkStart  EventType = "WORK_START"
	EventBreakStart EventType = "BREAK_START"
	EventBreakEnd   EventType = "BREAK_END"
	EventWorkEnd    EventType = "WORK_END"
	EventBlockStart EventType = "BLOCK_START"
)

// BlockReasonMaxShiftHours は最大勤務時間到達による強制ブロックの理由です。
const BlockReasonMaxShiftHours = "MAX_SHIFT_HOURS_REACHED"

// Record は配達員 1 名の 1 シフトを表すエンティティです。
// EndedAt が nil のレコードを「オープンなシフト」と呼びます。
type Record struct {
	ID                string
	CourierID         string
	Status            Status
	StartedAt         time.Time
	EndedAt           *time.Time
	TotalWorkSeconds  int64
	TotalBreakSeconds int64
	BlockedUntil      *time.Time
	LastStatusChange  time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsOpen はシフトが終了していない場合に true を返します。
func (r *Record) IsOpen() bool {
	return r != nil && r.EndedAt == nil
}

// WorkHours は累積勤務時間 (仮想時間) を時間単位で返します。
func (r *Record) WorkHours() float64 {
	return float64(r.TotalWorkSeconds) / 3600
}

// BreakMinutes は累積休憩時間 (仮想時間) を分単位で返します。
func (r *Record) BreakMinutes() float64 {
	return float64(r.TotalBreakSeconds) / 60
}

// Clone はレコードのディープコピーを返します。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.EndedAt = cloneTime(r.EndedAt)
	cp.BlockedUntil = cloneTime(r.BlockedUntil)
	return &cp
}

// Event はシフト状態遷移の監査ログです。追記のみで更新されません。
type Event struct {
	ID         string
	ShiftID    string
	CourierID  string
	Type       EventType
	OccurredAt time.Time
	Meta       map[string]any
}

// CurrentState は配達員の現在のシフト状態を表す読み取り専用の射影です。
type CurrentState struct {
	CourierID          string
	Status             Status
	ShiftID            string
	WorkSeconds        int64
	BreakSeconds       int64
	WorkHours          float64
	BreakMinutes       int
	MinutesToBreak     *int
	MinutesToBlock     *int
	BreakSoon          bool
	BlockSoon          bool
	BlockedUntil       *time.Time
	BlockedMinutesLeft *int
}

// RosterEntry は管理者向け配達員一覧の 1 行です。
type RosterEntry struct {
	CourierID string
	State     *CurrentState
	Latest    *Record
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
