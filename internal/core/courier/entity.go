package courier

import "time"

// Courier は認証サービスが管理する配達員アカウントの読み取り専用ビューです。
type Courier struct {
	ID            string
	Phone         string
	Name          string
	AvatarURL     *string
	IsBlocked     bool
	BlockedReason *string
	CreatedAt     time.Time
}
