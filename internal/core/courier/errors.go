package courier

import (
	"errors"
	"fmt"
)

var (
	// ErrCourierNotFound は配達員が存在しない場合に返却されます。
	ErrCourierNotFound = errors.New("courier not found")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidPageSize は一覧取得時のページサイズが不正な場合に返却されます。
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidPageToken は一覧取得時のページトークンが不正な場合に返却されます。
	ErrInvalidPageToken = errors.New("invalid page token")
	// ErrCourierBlocked はアカウントが管理者によりブロックされている場合に返却されます。
	ErrCourierBlocked = errors.New("courier account blocked")
)

// BlockedError はブロック理由を保持する ErrCourierBlocked です。
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return ErrCourierBlocked.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCourierBlocked, e.Reason)
}

// Is は ErrCourierBlocked との比較を可能にします。
func (e *BlockedError) Is(target error) bool {
	return target == ErrCourierBlocked
}
