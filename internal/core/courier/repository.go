package courier

import "context"

// Repository は配達員ディレクトリの参照を行うインターフェースです。
type Repository interface {
	FindByID(ctx context.Context, id string) (*Courier, error)
	List(ctx context.Context, filter ListCouriersFilter) ([]*Courier, string, error)
}

// ListCouriersFilter は一覧取得時の条件です。削除済みアカウントは常に除外されます。
type ListCouriersFilter struct {
	Limit  int
	Offset int
}
