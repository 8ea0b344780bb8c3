package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	pgdb "github.com/ogurasousui/courier-shift/internal/platform/db/postgres"
)

const (
	shiftUniqueViolationCode = "23505"
	// UUID 列に不正な文字列を渡した場合のエラーコードです。
	invalidTextRepresentationCode = "22P02"
)

const shiftColumns = `id, courier_id, status, started_at, ended_at, total_work_seconds, total_break_seconds,
               blocked_until, last_status_change, version, created_at, updated_at`

// ShiftRepository は PostgreSQL を利用したシフト永続化の実装です。
type ShiftRepository struct {
	pool pgdb.Queryer
}

// NewShiftRepository は ShiftRepository を生成します。
func NewShiftRepository(pool pgdb.Queryer) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

// FindOpen は配達員のオープンなシフトを取得します。
func (r *ShiftRepository) FindOpen(ctx context.Context, courierID string) (*shift.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE courier_id = $1
           AND ended_at IS NULL
         LIMIT 1
    `, courierID)

	found, err := scanRecord(row)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	return found, nil
}

// FindLatest は配達員の最新のシフトを取得します。
func (r *ShiftRepository) FindLatest(ctx context.Context, courierID string) (*shift.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE courier_id = $1
         ORDER BY started_at DESC, id DESC
         LIMIT 1
    `, courierID)

	found, err := scanRecord(row)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	return found, nil
}

// FindByID は ID でシフトを取得します。
func (r *ShiftRepository) FindByID(ctx context.Context, id string) (*shift.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanRecord(row)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	return found, nil
}

// Create はシフトを新規作成します。
func (r *ShiftRepository) Create(ctx context.Context, rec *shift.Record) (*shift.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO shifts (id, courier_id, status, started_at, ended_at, total_work_seconds, total_break_seconds,
                            blocked_until, last_status_change, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
        RETURNING `+shiftColumns+`
    `, rec.ID, rec.CourierID, string(rec.Status), rec.StartedAt, nullableTime(rec.EndedAt),
		rec.TotalWorkSeconds, rec.TotalBreakSeconds, nullableTime(rec.BlockedUntil),
		rec.LastStatusChange, rec.CreatedAt, rec.UpdatedAt)

	created, err := scanRecord(row)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	return created, nil
}

// Update はバージョンが一致する場合のみシフトを更新します。
func (r *ShiftRepository) Update(ctx context.Context, rec *shift.Record) (*shift.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE shifts
           SET status = $1,
               ended_at = $2,
               total_work_seconds = $3,
               total_break_seconds = $4,
               blocked_until = $5,
               last_status_change = $6,
               version = version + 1,
               updated_at = $7
         WHERE id = $8
           AND version = $9
        RETURNING `+shiftColumns+`
    `, string(rec.Status), nullableTime(rec.EndedAt), rec.TotalWorkSeconds, rec.TotalBreakSeconds,
		nullableTime(rec.BlockedUntil), rec.LastStatusChange, rec.UpdatedAt, rec.ID, rec.Version)

	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, shift.ErrRecordNotFound) {
			return nil, shift.ErrWriteConflict
		}
		return nil, translateShiftPgError(err)
	}
	return updated, nil
}

// AppendEvent はシフトイベントを追記します。
func (r *ShiftRepository) AppendEvent(ctx context.Context, ev *shift.Event) error {
	meta, err := marshalMeta(ev.Meta)
	if err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        INSERT INTO shift_events (id, shift_id, courier_id, event_type, occurred_at, meta)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, ev.ID, ev.ShiftID, ev.CourierID, string(ev.Type), ev.OccurredAt, meta); err != nil {
		return translateShiftPgError(err)
	}
	return nil
}

// List は配達員のシフトを開始日時の新しい順に取得します。
func (r *ShiftRepository) List(ctx context.Context, courierID string, limit int) ([]*shift.Record, error) {
	if limit <= 0 {
		return nil, shift.ErrInvalidLimit
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+shiftColumns+`
          FROM shifts
         WHERE courier_id = $1
         ORDER BY started_at DESC, id DESC
         LIMIT $2
    `, courierID, limit)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	defer rows.Close()

	var records []*shift.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, translateShiftPgError(err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, translateShiftPgError(err)
	}

	return records, nil
}

// ListEvents はシフトのイベントを発生順に取得します。
func (r *ShiftRepository) ListEvents(ctx context.Context, shiftID string) ([]*shift.Event, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, shift_id, courier_id, event_type, occurred_at, meta
          FROM shift_events
         WHERE shift_id = $1
         ORDER BY occurred_at ASC, seq ASC
    `, shiftID)
	if err != nil {
		return nil, translateShiftPgError(err)
	}
	defer rows.Close()

	var events []*shift.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, translateShiftPgError(err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, translateShiftPgError(err)
	}

	return events, nil
}

func scanRecord(row pgx.Row) (*shift.Record, error) {
	var (
		id, courierID, status string
		startedAt             time.Time
		endedAt               sql.NullTime
		workSeconds           int64
		breakSeconds          int64
		blockedUntil          sql.NullTime
		lastStatusChange      time.Time
		version               int64
		createdAt, updatedAt  time.Time
	)

	if err := row.Scan(&id, &courierID, &status, &startedAt, &endedAt, &workSeconds, &breakSeconds,
		&blockedUntil, &lastStatusChange, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shift.ErrRecordNotFound
		}
		return nil, err
	}

	return &shift.Record{
		ID:                id,
		CourierID:         courierID,
		Status:            shift.Status(status),
		StartedAt:         startedAt.UTC(),
		EndedAt:           timePtr(endedAt),
		TotalWorkSeconds:  workSeconds,
		TotalBreakSeconds: breakSeconds,
		BlockedUntil:      timePtr(blockedUntil),
		LastStatusChange:  lastStatusChange.UTC(),
		Version:           version,
		CreatedAt:         createdAt.UTC(),
		UpdatedAt:         updatedAt.UTC(),
	}, nil
}

func scanEvent(row pgx.Row) (*shift.Event, error) {
	var (
		id, shiftID, courierID, eventType string
		occurredAt                        time.Time
		meta                              []byte
	)

	if err := row.Scan(&id, &shiftID, &courierID, &eventType, &occurredAt, &meta); err != nil {
		return nil, err
	}

	ev := &shift.Event{
		ID:         id,
		ShiftID:    shiftID,
		CourierID:  courierID,
		Type:       shift.EventType(eventType),
		OccurredAt: occurredAt.UTC(),
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &ev.Meta); err != nil {
			return nil, fmt.Errorf("postgres: decode event meta: %w", err)
		}
	}
	return ev, nil
}

func translateShiftPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case shiftUniqueViolationCode:
			return shift.ErrShiftAlreadyOpen
		case invalidTextRepresentationCode:
			return shift.ErrRecordNotFound
		}
	}
	return err
}

func marshalMeta(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode event meta: %w", err)
	}
	return b, nil
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
