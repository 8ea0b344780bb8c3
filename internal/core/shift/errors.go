package shift

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrShiftAlreadyOpen はオープンなシフトが既に存在する場合に返却されます。
	ErrShiftAlreadyOpen = errors.New("shift already open")
	// ErrStillBlocked は強制ブロック期間中に開始しようとした場合に返却されます。
	ErrStillBlocked = errors.New("courier is still blocked")
	// ErrInsufficientRest はシフト間の休息が不足している場合に返却されます。
	ErrInsufficientRest = errors.New("insufficient rest between shifts")
	// ErrNoOpenShift はオープンなシフトが存在しない場合に返却されます。
	ErrNoOpenShift = errors.New("no open shift")
	// ErrAlreadyAutoBlocked は再計算によりシフトが自動ブロックされた場合に返却されます。
	ErrAlreadyAutoBlocked = errors.New("shift already auto-blocked")
	// ErrMinimumNotReached は最低勤務時間に達していない場合に返却されます。
	ErrMinimumNotReached = errors.New("minimum shift hours not reached")
	// ErrRecordNotFound はシフトレコードが存在しない場合に返却されます。
	ErrRecordNotFound = errors.New("shift record not found")
	// ErrShiftNotFound は指定したシフトが配達員に属さない場合に返却されます。
	ErrShiftNotFound = errors.New("shift not found")
	// ErrWriteConflict は楽観ロックの競合で更新できなかった場合に返却されます。
	ErrWriteConflict = errors.New("shift write conflict")
	// ErrInvalidCourierID は配達員 ID が不正な場合に返却されます。
	ErrInvalidCourierID = errors.New("invalid courier id")
	// ErrInvalidShiftID はシフト ID が不正な場合に返却されます。
	ErrInvalidShiftID = errors.New("invalid shift id")
	// ErrInvalidLimit は取得件数が不正な場合に返却されます。
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrRosterUnavailable は配達員ディレクトリが設定されていない場合に返却されます。
	ErrRosterUnavailable = errors.New("courier directory not configured")
	// ErrInvalidRules はルール設定が不正な場合に返却されます。
	ErrInvalidRules = errors.New("invalid shift rules")
)

// StillBlockedError はブロック解除時刻を保持する ErrStillBlocked です。
type StillBlockedError struct {
	BlockedUntil time.Time
}

func (e *StillBlockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrStillBlocked, e.BlockedUntil.Format(time.RFC3339))
}

// Is は ErrStillBlocked との比較を可能にします。
func (e *StillBlockedError) Is(target error) bool {
	return target == ErrStillBlocked
}

// InsufficientRestError は残りの休息時間を保持する ErrInsufficientRest です。
type InsufficientRestError struct {
	RestRemaining time.Duration
}

func (e *InsufficientRestError) Error() string {
	return fmt.Sprintf("%s: rest %d more minutes", ErrInsufficientRest, e.MinutesRemaining())
}

// Is は ErrInsufficientRest との比較を可能にします。
func (e *InsufficientRestError) Is(target error) bool {
	return target == ErrInsufficientRest
}

// MinutesRemaining は残りの休息時間を分単位 (切り上げ) で返します。
func (e *InsufficientRestError) MinutesRemaining() int {
	return ceilMinutes(e.RestRemaining)
}

// AutoBlockedError は自動ブロックで閉じられたレコードを保持する ErrAlreadyAutoBlocked です。
type AutoBlockedError struct {
	Record *Record
}

func (e *AutoBlockedError) Error() string {
	if e.Record == nil || e.Record.BlockedUntil == nil {
		return ErrAlreadyAutoBlocked.Error()
	}
	return fmt.Sprintf("%s: blocked until %s", ErrAlreadyAutoBlocked, e.Record.BlockedUntil.Format(time.RFC3339))
}

// Is は ErrAlreadyAutoBlocked との比較を可能にします。
func (e *AutoBlockedError) Is(target error) bool {
	return target == ErrAlreadyAutoBlocked
}

// MinimumNotReachedError は勤務時間と必要時間を保持する ErrMinimumNotReached です。
type MinimumNotReachedError struct {
	WorkedHours   float64
	RequiredHours float64
}

func (e *MinimumNotReachedError) Error() string {
	return fmt.Sprintf("%s: worked %.2fh of %.2fh", ErrMinimumNotReached, e.WorkedHours, e.RequiredHours)
}

// Is は ErrMinimumNotReached との比較を可能にします。
func (e *MinimumNotReachedError) Is(target error) bool {
	return target == ErrMinimumNotReached
}

// IsRejection は err が業務ルールによる拒否であれば true を返します。
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrShiftAlreadyOpen),
		errors.Is(err, ErrStillBlocked),
		errors.Is(err, ErrInsufficientRest),
		errors.Is(err, ErrNoOpenShift),
		errors.Is(err, ErrAlreadyAutoBlocked),
		errors.Is(err, ErrMinimumNotReached):
		return true
	default:
		return false
	}
}
