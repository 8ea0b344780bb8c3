package shift

import (
	"context"
	"time"
)

// Repository はシフトレコードとシフトイベントの永続化を行うインターフェースです。
type Repository interface {
	// FindOpen は EndedAt が未設定のレコードを返します。存在しない場合は ErrRecordNotFound を返します。
	FindOpen(ctx context.Context, courierID string) (*Record, error)
	// FindLatest は StartedAt が最も新しいレコードを返します。存在しない場合は ErrRecordNotFound を返します。
	FindLatest(ctx context.Context, courierID string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	// Create はレコードを作成します。オープンなシフトが重複する場合は ErrShiftAlreadyOpen を返します。
	Create(ctx context.Context, rec *Record) (*Record, error)
	// Update は Version が一致する場合のみ更新し、Version を 1 進めます。
	// 一致しない場合は ErrWriteConflict を返します。
	Update(ctx context.Context, rec *Record) (*Record, error)
	AppendEvent(ctx context.Context, ev *Event) error
	List(ctx context.Context, courierID string, limit int) ([]*Record, error)
	ListEvents(ctx context.Context, shiftID string) ([]*Event, error)
}

// CourierDirectory は管理者ロスター用に配達員 ID をページ単位で列挙します。
type CourierDirectory interface {
	ListCourierIDs(ctx context.Context, pageSize int, pageToken string) ([]string, string, error)
}

// Publisher は確定したシフトイベントを外部へ通知します。
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Observer は状態遷移や異常を監視基盤へ通知します。
type Observer interface {
	Transition(ev Event)
	ClockSkew(courierID string, skew time.Duration)
	WriteConflict(courierID string)
	PublishFailed(ev Event, err error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

type noopObserver struct{}

func (noopObserver) Transition(Event) {}

func (noopObserver) ClockSkew(string, time.Duration) {}

func (noopObserver) WriteConflict(string) {}

func (noopObserver) PublishFailed(Event, error) {}
