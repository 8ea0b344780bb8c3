package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	pgdb "github.com/ogurasousui/courier-shift/internal/platform/db/postgres"
)

// CourierRepository は PostgreSQL を利用した配達員ディレクトリの実装です。
// 削除済みおよび courier 以外のロールのアカウントは返しません。
type CourierRepository struct {
	pool pgdb.Queryer
}

// NewCourierRepository は CourierRepository を生成します。
func NewCourierRepository(pool pgdb.Queryer) *CourierRepository {
	return &CourierRepository{pool: pool}
}

// FindByID は ID で配達員を取得します。
func (r *CourierRepository) FindByID(ctx context.Context, id string) (*courier.Courier, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, phone, name, avatar_url, is_blocked, blocked_reason, created_at
          FROM couriers
         WHERE id = $1
           AND role = 'courier'
           AND deleted_at IS NULL
         LIMIT 1
    `, id)

	return scanCourier(row)
}

// List は配達員の一覧を ID 順に取得します。
func (r *CourierRepository) List(ctx context.Context, filter courier.ListCouriersFilter) ([]*courier.Courier, string, error) {
	if filter.Limit <= 0 {
		return nil, "", courier.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", courier.ErrInvalidPageToken
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, phone, name, avatar_url, is_blocked, blocked_reason, created_at
          FROM couriers
         WHERE role = 'courier'
           AND deleted_at IS NULL
         ORDER BY id ASC
         LIMIT $1
        OFFSET $2
    `, filter.Limit+1, filter.Offset)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var couriers []*courier.Courier
	for rows.Next() {
		found, err := scanCourier(rows)
		if err != nil {
			return nil, "", err
		}
		couriers = append(couriers, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextToken string
	if len(couriers) > filter.Limit {
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
		couriers = couriers[:filter.Limit]
	}

	return couriers, nextToken, nil
}

func scanCourier(row pgx.Row) (*courier.Courier, error) {
	var (
		id, phone, name string
		avatarURL       sql.NullString
		isBlocked       bool
		blockedReason   sql.NullString
		createdAt       time.Time
	)

	if err := row.Scan(&id, &phone, &name, &avatarURL, &isBlocked, &blockedReason, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, courier.ErrCourierNotFound
		}
		return nil, err
	}

	return &courier.Courier{
		ID:            id,
		Phone:         phone,
		Name:          name,
		AvatarURL:     stringPtr(avatarURL),
		IsBlocked:     isBlocked,
		BlockedReason: stringPtr(blockedReason),
		CreatedAt:     createdAt,
	}, nil
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
