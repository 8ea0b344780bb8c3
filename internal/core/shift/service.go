package shift

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxRosterCouriers   = 200
	maxConflictRetries  = 3
)

// UseCase はシフトユースケースの公開インターフェースです。
type UseCase interface {
	StartShift(ctx context.Context, in StartShiftInput) (*Record, error)
	EndShift(ctx context.Context, in EndShiftInput) (*Record, error)
	GetCurrentState(ctx context.Context, in GetCurrentStateInput) (*CurrentState, error)
	GetRoster(ctx context.Context, in GetRosterInput) (*RosterResult, error)
	ListHistory(ctx context.Context, in ListHistoryInput) ([]*Record, error)
	ListEvents(ctx context.Context, in ListEventsInput) ([]*Event, error)
}

// Service はシフトに関するユースケースをまとめます。
// 状態はバックグラウンドで進まず、各呼び出しの冒頭で Recompute により now 時点まで進められます。
type Service struct {
	repo      Repository
	clock     Clock
	tx        TransactionManager
	rules     Rules
	directory CourierDirectory
	publisher Publisher
	observer  Observer
	newID     func() string
}

// Option は Service の任意依存を設定します。
type Option func(*Service)

// WithCourierDirectory はロスター全件取得に使う配達員ディレクトリを設定します。
func WithCourierDirectory(d CourierDirectory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

// WithPublisher はコミット済みイベントの通知先を設定します。
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithObserver は監視用の Observer を設定します。
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithIDGenerator は ID 生成関数を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, rules Rules, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:      repo,
		clock:     clock,
		tx:        tx,
		rules:     rules,
		publisher: noopPublisher{},
		observer:  noopObserver{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules は Service が使用しているしきい値を返します。
func (s *Service) Rules() Rules {
	return s.rules
}

// StartShiftInput はシフト開始時の入力です。
type StartShiftInput struct {
	CourierID string
}

// EndShiftInput はシフト終了時の入力です。
type EndShiftInput struct {
	CourierID string
}

// GetCurrentStateInput は現在状態取得時の入力です。
type GetCurrentStateInput struct {
	CourierID string
}

// GetRosterInput はロスター取得時の入力です。CourierIDs が空の場合はディレクトリをページングします。
type GetRosterInput struct {
	CourierIDs []string
	PageSize   int
	PageToken  string
}

// RosterResult はロスター取得結果を表します。
type RosterResult struct {
	Entries       []*RosterEntry
	NextPageToken string
}

// ListHistoryInput は履歴取得時の入力です。
type ListHistoryInput struct {
	CourierID string
	Limit     int
}

// ListEventsInput はイベント取得時の入力です。
type ListEventsInput struct {
	CourierID string
	ShiftID   string
}

// attempt は 1 回のトランザクション試行で発生したイベントと業務ルール上の拒否を保持します。
// 拒否はトランザクションをロールバックさせないため error ではなくここに記録します。
type attempt struct {
	events    []Event
	rejection error
}

func (a *attempt) reject(err error) error {
	a.rejection = err
	return nil
}

// StartShift は新しいシフトを開始します。
func (s *Service) StartShift(ctx context.Context, in StartShiftInput) (*Record, error) {
	courierID, err := normalizeID(in.CourierID, ErrInvalidCourierID)
	if err != nil {
		return nil, err
	}

	var created *Record
	err = s.mutate(ctx, courierID, func(txCtx context.Context, now time.Time, a *attempt) error {
		open, err := s.loadOpen(txCtx, courierID, now, a)
		if err != nil {
			return err
		}
		// 再計算で BLOCKED に閉じた場合も、読み込み時点で開いていたシフトとして扱います。
		if open != nil {
			return a.reject(ErrShiftAlreadyOpen)
		}

		latest, err := s.findLatest(txCtx, courierID)
		if err != nil {
			return err
		}

		if latest != nil {
			if latest.BlockedUntil != nil && latest.BlockedUntil.After(now) {
				return a.reject(&StillBlockedError{BlockedUntil: *latest.BlockedUntil})
			}
			if latest.EndedAt != nil {
				if rested := now.Sub(*latest.EndedAt); rested < s.rules.minRest() {
					return a.reject(&InsufficientRestError{RestRemaining: s.rules.minRest() - rested})
				}
			}
		}

		rec, err := s.repo.Create(txCtx, &Record{
			ID:               s.newID(),
			CourierID:        courierID,
			Status:           StatusActive,
			StartedAt:        now,
			LastStatusChange: now,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, a, newEvent(rec, EventWorkStart, now, nil)); err != nil {
			return err
		}

		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// EndShift はオープンなシフトを終了します。
func (s *Service) EndShift(ctx context.Context, in EndShiftInput) (*Record, error) {
	courierID, err := normalizeID(in.CourierID, ErrInvalidCourierID)
	if err != nil {
		return nil, err
	}

	var finished *Record
	err = s.mutate(ctx, courierID, func(txCtx context.Context, now time.Time, a *attempt) error {
		open, err := s.findOpen(txCtx, courierID)
		if err != nil {
			return err
		}
		if open == nil {
			return a.reject(ErrNoOpenShift)
		}

		rec, err := s.advance(txCtx, open, now, a)
		if err != nil {
			return err
		}
		if rec.Status == StatusBlocked && !rec.IsOpen() {
			return a.reject(&AutoBlockedError{Record: rec})
		}

		if worked := rec.WorkHours(); worked < s.rules.MinShiftHoursBeforeCanEnd {
			return a.reject(&MinimumNotReachedError{
				WorkedHours:   worked,
				RequiredHours: s.rules.MinShiftHoursBeforeCanEnd,
			})
		}

		endedAt := now
		rec.Status = StatusFinished
		rec.EndedAt = &endedAt
		rec.LastStatusChange = now
		rec.UpdatedAt = now

		updated, err := s.repo.Update(txCtx, rec)
		if err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, a, newEvent(updated, EventWorkEnd, now, map[string]any{
			"total_work_hours":    updated.WorkHours(),
			"total_break_minutes": updated.BreakMinutes(),
		})); err != nil {
			return err
		}

		finished = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return finished, nil
}

// GetCurrentState は配達員の現在のシフト状態を返します。
// オープンなシフトが存在する場合は再計算結果を永続化してから射影します。
func (s *Service) GetCurrentState(ctx context.Context, in GetCurrentStateInput) (*CurrentState, error) {
	courierID, err := normalizeID(in.CourierID, ErrInvalidCourierID)
	if err != nil {
		return nil, err
	}

	state, _, err := s.currentState(ctx, courierID)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetRoster は複数配達員の現在状態をまとめて返します。
func (s *Service) GetRoster(ctx context.Context, in GetRosterInput) (*RosterResult, error) {
	ids, nextToken, err := s.rosterIDs(ctx, in)
	if err != nil {
		return nil, err
	}

	entries := make([]*RosterEntry, 0, len(ids))
	for _, id := range ids {
		state, latest, err := s.currentState(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("roster %s: %w", id, err)
		}
		entries = append(entries, &RosterEntry{CourierID: id, State: state, Latest: latest})
	}

	return &RosterResult{Entries: entries, NextPageToken: nextToken}, nil
}

// ListHistory は配達員のシフト履歴を新しい順に返します。
func (s *Service) ListHistory(ctx context.Context, in ListHistoryInput) ([]*Record, error) {
	courierID, err := normalizeID(in.CourierID, ErrInvalidCourierID)
	if err != nil {
		return nil, err
	}

	limit, err := normalizeHistoryLimit(in.Limit)
	if err != nil {
		return nil, err
	}

	var records []*Record
	err = s.mutate(ctx, courierID, func(txCtx context.Context, now time.Time, a *attempt) error {
		if _, err := s.loadOpen(txCtx, courierID, now, a); err != nil {
			return err
		}

		result, err := s.repo.List(txCtx, courierID, limit)
		if err != nil {
			return err
		}
		records = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListEvents は配達員のシフトに記録されたイベントを古い順に返します。
func (s *Service) ListEvents(ctx context.Context, in ListEventsInput) ([]*Event, error) {
	courierID, err := normalizeID(in.CourierID, ErrInvalidCourierID)
	if err != nil {
		return nil, err
	}

	shiftID, err := normalizeID(in.ShiftID, ErrInvalidShiftID)
	if err != nil {
		return nil, err
	}

	var events []*Event
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		rec, err := s.repo.FindByID(txCtx, shiftID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrShiftNotFound
			}
			return err
		}
		if rec.CourierID != courierID {
			return ErrShiftNotFound
		}

		result, err := s.repo.ListEvents(txCtx, shiftID)
		if err != nil {
			return err
		}
		events = result
		return nil
	}); err != nil {
		return nil, err
	}

	return events, nil
}

func (s *Service) currentState(ctx context.Context, courierID string) (*CurrentState, *Record, error) {
	var (
		state  *CurrentState
		latest *Record
	)
	err := s.mutate(ctx, courierID, func(txCtx context.Context, now time.Time, a *attempt) error {
		open, err := s.loadOpen(txCtx, courierID, now, a)
		if err != nil {
			return err
		}

		last := open
		if last == nil {
			if last, err = s.findLatest(txCtx, courierID); err != nil {
				return err
			}
		}

		state = Project(courierID, open, last, now, s.rules)
		latest = last
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return state, latest, nil
}

func (s *Service) rosterIDs(ctx context.Context, in GetRosterInput) ([]string, string, error) {
	if len(in.CourierIDs) == 0 {
		if s.directory == nil {
			return nil, "", ErrRosterUnavailable
		}
		return s.directory.ListCourierIDs(ctx, in.PageSize, in.PageToken)
	}

	if len(in.CourierIDs) > maxRosterCouriers {
		return nil, "", ErrInvalidLimit
	}

	seen := make(map[string]struct{}, len(in.CourierIDs))
	ids := make([]string, 0, len(in.CourierIDs))
	for _, raw := range in.CourierIDs {
		id, err := normalizeID(raw, ErrInvalidCourierID)
		if err != nil {
			return nil, "", err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, "", nil
}

// mutate は fn を読み書きトランザクション内で実行します。
// ErrWriteConflict の場合は読み取りからやり直し、コミット後にイベントを通知します。
func (s *Service) mutate(ctx context.Context, courierID string, fn func(context.Context, time.Time, *attempt) error) error {
	for retry := 0; ; retry++ {
		a := &attempt{}
		err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
			return fn(txCtx, s.clock.Now(), a)
		})
		if errors.Is(err, ErrWriteConflict) {
			s.observer.WriteConflict(courierID)
			if retry < maxConflictRetries {
				continue
			}
		}
		if err != nil {
			return err
		}

		s.dispatch(ctx, a.events)
		return a.rejection
	}
}

func (s *Service) dispatch(ctx context.Context, events []Event) {
	for _, ev := range events {
		s.observer.Transition(ev)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.observer.PublishFailed(ev, err)
		}
	}
}

// loadOpen はオープンなシフトを取得して now 時点まで進めます。
// 再計算でブロックされた場合は閉じられたレコードを返します。
func (s *Service) loadOpen(ctx context.Context, courierID string, now time.Time, a *attempt) (*Record, error) {
	open, err := s.findOpen(ctx, courierID)
	if err != nil || open == nil {
		return nil, err
	}
	return s.advance(ctx, open, now, a)
}

func (s *Service) advance(ctx context.Context, rec *Record, now time.Time, a *attempt) (*Record, error) {
	res := Recompute(rec, now, s.rules)
	if res.Skew > 0 {
		s.observer.ClockSkew(rec.CourierID, res.Skew)
	}
	if !res.Changed {
		return res.Record, nil
	}

	res.Record.UpdatedAt = now
	updated, err := s.repo.Update(ctx, res.Record)
	if err != nil {
		return nil, err
	}

	for _, ev := range res.Events {
		if err := s.appendEvent(ctx, a, ev); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *Service) appendEvent(ctx context.Context, a *attempt, ev Event) error {
	ev.ID = s.newID()
	if err := s.repo.AppendEvent(ctx, &ev); err != nil {
		return err
	}
	a.events = append(a.events, ev)
	return nil
}

func (s *Service) findOpen(ctx context.Context, courierID string) (*Record, error) {
	rec, err := s.repo.FindOpen(ctx, courierID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *Service) findLatest(ctx context.Context, courierID string) (*Record, error) {
	rec, err := s.repo.FindLatest(ctx, courierID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

func normalizeID(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalid
	}
	return trimmed, nil
}

func normalizeHistoryLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return defaultHistoryLimit, nil
	case limit < 0 || limit > maxHistoryLimit:
		return 0, ErrInvalidLimit
	default:
		return limit, nil
	}
}
