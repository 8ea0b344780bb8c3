package shift

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRepo struct {
	mu            sync.Mutex
	records       map[string]*Record
	order         []string
	events        []*Event
	conflictsLeft int
	updates       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*Record)}
}

func (r *fakeRepo) FindOpen(_ context.Context, courierID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		rec := r.records[id]
		if rec.CourierID == courierID && rec.EndedAt == nil {
			return rec.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (r *fakeRepo) FindLatest(_ context.Context, courierID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Record
	for _, id := range r.order {
		rec := r.records[id]
		if rec.CourierID != courierID {
			continue
		}
		if latest == nil || !rec.StartedAt.Before(latest.StartedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrRecordNotFound
	}
	return latest.Clone(), nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeRepo) Create(_ context.Context, rec *Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.CourierID == rec.CourierID && existing.EndedAt == nil {
			return nil, ErrShiftAlreadyOpen
		}
	}
	stored := rec.Clone()
	stored.Version = 1
	r.records[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.Clone(), nil
}

func (r *fakeRepo) Update(_ context.Context, rec *Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[rec.ID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return nil, ErrWriteConflict
	}
	if existing.Version != rec.Version {
		return nil, ErrWriteConflict
	}
	stored := rec.Clone()
	stored.Version = existing.Version + 1
	r.records[rec.ID] = stored
	r.updates++
	return stored.Clone(), nil
}

func (r *fakeRepo) AppendEvent(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ev
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeRepo) List(_ context.Context, courierID string, limit int) ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Record
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := r.records[r.order[i]]
		if rec.CourierID == courierID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) ListEvents(_ context.Context, shiftID string) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, ev := range r.events {
		if ev.ShiftID == shiftID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) eventTypes(shiftID string) []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, ev := range r.events {
		if ev.ShiftID == shiftID {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *fakeRepo) put(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := rec.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	r.records[stored.ID] = stored
	r.order = append(r.order, stored.ID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []EventType
	skews       []time.Duration
	conflicts   int
	publishErrs int
}

func (o *recordingObserver) Transition(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, ev.Type)
}

func (o *recordingObserver) ClockSkew(_ string, skew time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skews = append(o.skews, skew)
}

func (o *recordingObserver) WriteConflict(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conflicts++
}

func (o *recordingObserver) PublishFailed(Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.publishErrs++
}

type stubDirectory struct {
	ids       []string
	nextToken string
	pageSize  int
	pageToken string
}

func (d *stubDirectory) ListCourierIDs(_ context.Context, pageSize int, pageToken string) ([]string, string, error) {
	d.pageSize = pageSize
	d.pageToken = pageToken
	return d.ids, d.nextToken, nil
}

func sequentialIDs() func() string {
	var (
		mu  sync.Mutex
		seq int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return "id-" + strconv.Itoa(seq)
	}
}

func newTestService(repo *fakeRepo, clk *stubClock, opts ...Option) *Service {
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	return NewService(repo, clk, nil, DefaultRules(), opts...)
}

func TestService_StartShift_Success(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, clk, WithPublisher(pub))

	rec, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: " courier-1 "})
	require.NoError(t, err)

	assert.Equal(t, "courier-1", rec.CourierID)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, t0, rec.StartedAt)
	assert.Equal(t, t0, rec.LastStatusChange)
	assert.Zero(t, rec.TotalWorkSeconds)
	assert.Zero(t, rec.TotalBreakSeconds)
	assert.True(t, rec.IsOpen())

	assert.Equal(t, []EventType{EventWorkStart}, repo.eventTypes(rec.ID))
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventWorkStart, pub.events[0].Type)
}

func TestService_StartShift_InvalidCourier(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &stubClock{now: t0})
	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "  "})
	assert.ErrorIs(t, err, ErrInvalidCourierID)
}

func TestService_StartShift_AlreadyOpen(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(5 * time.Minute) // 5h 経過で BREAK に入るがシフトは開いたまま
	_, err = svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	assert.ErrorIs(t, err, ErrShiftAlreadyOpen)

	open, err := repo.FindOpen(context.Background(), "courier-1")
	require.NoError(t, err)
	assert.Equal(t, StatusBreak, open.Status)
}

func TestService_StartShift_OpenShiftBlockedByRecompute(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)
	ctx := context.Background()

	first, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	assert.ErrorIs(t, err, ErrShiftAlreadyOpen)

	blocked, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, blocked.Status)
	require.NotNil(t, blocked.EndedAt)
	assert.Equal(t, []EventType{EventWorkStart, EventBlockStart}, repo.eventTypes(first.ID))

	_, err = svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	var still *StillBlockedError
	require.ErrorAs(t, err, &still)
	assert.Equal(t, clk.Now().Add(6*time.Hour), still.BlockedUntil)
}

func TestService_StartShift_StillBlocked(t *testing.T) {
	t.Parallel()

	ended := t0
	blockedUntil := t0.Add(6 * time.Hour)
	repo := newFakeRepo()
	repo.put(&Record{
		ID:               "shift-old",
		CourierID:        "courier-1",
		Status:           StatusBlocked,
		StartedAt:        t0.Add(-9 * time.Minute),
		EndedAt:          &ended,
		BlockedUntil:     &blockedUntil,
		TotalWorkSeconds: 9 * 3600,
		LastStatusChange: ended,
	})

	clk := &stubClock{now: t0.Add(2 * time.Hour)}
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.ErrorIs(t, err, ErrStillBlocked)

	var blocked *StillBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, blockedUntil, blocked.BlockedUntil)

	clk.Set(blockedUntil)
	_, err = svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	assert.NoError(t, err)
}

func TestService_StartShift_RestEnforcement(t *testing.T) {
	t.Parallel()

	ended := t0
	repo := newFakeRepo()
	repo.put(&Record{
		ID:               "shift-old",
		CourierID:        "courier-1",
		Status:           StatusFinished,
		StartedAt:        t0.Add(-5 * time.Minute),
		EndedAt:          &ended,
		TotalWorkSeconds: 5 * 3600,
		LastStatusChange: ended,
	})

	clk := &stubClock{now: t0.Add(59*time.Minute + 30*time.Second)}
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.ErrorIs(t, err, ErrInsufficientRest)

	var rest *InsufficientRestError
	require.True(t, errors.As(err, &rest))
	assert.Equal(t, 30*time.Second, rest.RestRemaining)
	assert.Equal(t, 1, rest.MinutesRemaining())

	clk.Set(t0.Add(time.Hour))
	rec, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), rec.StartedAt)
}

func TestService_EndShift_NoOpenShift(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &stubClock{now: t0})
	_, err := svc.EndShift(context.Background(), EndShiftInput{CourierID: "courier-1"})
	assert.ErrorIs(t, err, ErrNoOpenShift)
}

func TestService_EndShift_MinimumNotReached(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.EndShift(context.Background(), EndShiftInput{CourierID: "courier-1"})
	require.ErrorIs(t, err, ErrMinimumNotReached)

	var minErr *MinimumNotReachedError
	require.True(t, errors.As(err, &minErr))
	assert.InDelta(t, 2.0, minErr.WorkedHours, 1e-9)
	assert.InDelta(t, 3.0, minErr.RequiredHours, 1e-9)

	open, err := repo.FindOpen(context.Background(), "courier-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*3600), open.TotalWorkSeconds, "recompute is persisted even when ending is rejected")
}

func TestService_EndShift_Success(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	started, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(3*time.Minute + 30*time.Second)
	finished, err := svc.EndShift(context.Background(), EndShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	assert.Equal(t, StatusFinished, finished.Status)
	require.NotNil(t, finished.EndedAt)
	assert.Equal(t, clk.Now(), *finished.EndedAt)
	assert.Equal(t, clk.Now(), finished.LastStatusChange)
	assert.Equal(t, int64(3.5*3600), finished.TotalWorkSeconds)
	assert.Nil(t, finished.BlockedUntil)

	assert.Equal(t, []EventType{EventWorkStart, EventWorkEnd}, repo.eventTypes(started.ID))

	_, err = repo.FindOpen(context.Background(), "courier-1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestService_EndShift_AutoBlocked(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	started, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = svc.EndShift(context.Background(), EndShiftInput{CourierID: "courier-1"})
	require.ErrorIs(t, err, ErrAlreadyAutoBlocked)

	var blocked *AutoBlockedError
	require.True(t, errors.As(err, &blocked))
	require.NotNil(t, blocked.Record)
	assert.Equal(t, StatusBlocked, blocked.Record.Status)
	require.NotNil(t, blocked.Record.BlockedUntil)
	assert.Equal(t, clk.Now().Add(6*time.Hour), *blocked.Record.BlockedUntil)

	stored, err := repo.FindByID(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, stored.Status)
	assert.Equal(t, []EventType{EventWorkStart, EventBlockStart}, repo.eventTypes(started.ID))
}

func TestService_BlockTerminatesShift(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	// 途中で再計算しないため、1 回の再計算で 9h に到達する。
	clk.Advance(540 * time.Second)
	state, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, state.Status)
	require.NotNil(t, state.BlockedUntil)
	assert.Equal(t, clk.Now().Add(6*time.Hour), *state.BlockedUntil)
	require.NotNil(t, state.BlockedMinutesLeft)
	assert.Equal(t, 360, *state.BlockedMinutesLeft)

	_, err = repo.FindOpen(context.Background(), "courier-1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestService_EndToEndScenario(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)
	ctx := context.Background()
	in := GetCurrentStateInput{CourierID: "courier-1"}

	_, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	state, err := svc.GetCurrentState(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, StatusBreak, state.Status)
	assert.Nil(t, state.MinutesToBreak)

	clk.Advance(30 * time.Second)
	state, err = svc.GetCurrentState(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status)
	assert.Equal(t, 30, state.BreakMinutes)
	assert.Nil(t, state.MinutesToBreak)
	require.NotNil(t, state.MinutesToBlock)
	assert.Equal(t, 300, *state.MinutesToBlock)

	finished, err := svc.EndShift(ctx, EndShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, finished.Status)
	assert.Equal(t, int64(4*3600), finished.TotalWorkSeconds)
	assert.Equal(t, int64(30*60), finished.TotalBreakSeconds)

	assert.Equal(t,
		[]EventType{EventWorkStart, EventBreakStart, EventBreakEnd, EventWorkEnd},
		repo.eventTypes(finished.ID))
}

func TestService_EndToEnd_EndAfterThreeAndAHalfHours(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	svc := newTestService(newFakeRepo(), clk)
	ctx := context.Background()

	_, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.EndShift(ctx, EndShiftInput{CourierID: "courier-1"})
	require.ErrorIs(t, err, ErrMinimumNotReached)

	clk.Advance(90 * time.Second)
	finished, err := svc.EndShift(ctx, EndShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, finished.WorkHours(), 1e-9)
}

func TestService_ConcurrentRecomputeCountsOnce(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.put(openRecord(StatusActive, 0, 0, t0))
	clk := &stubClock{now: t0.Add(time.Minute)}
	svc := newTestService(repo, clk)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrWriteConflict)
		}
	}

	rec, err := repo.FindByID(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), rec.TotalWorkSeconds)
	assert.Equal(t, 1, repo.updates)
}

func TestService_WriteConflictRetriesFromRead(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.put(openRecord(StatusActive, 0, 0, t0))
	repo.conflictsLeft = 2
	obs := &recordingObserver{}
	clk := &stubClock{now: t0.Add(time.Minute)}
	svc := newTestService(repo, clk, WithObserver(obs))

	state, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), state.WorkSeconds)
	assert.Equal(t, 2, obs.conflicts)
}

func TestService_WriteConflictExhausted(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.put(openRecord(StatusActive, 0, 0, t0))
	repo.conflictsLeft = maxConflictRetries + 1
	clk := &stubClock{now: t0.Add(time.Minute)}
	svc := newTestService(repo, clk)

	_, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
	assert.ErrorIs(t, err, ErrWriteConflict)

	rec, err := repo.FindByID(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Zero(t, rec.TotalWorkSeconds)
}

func TestService_ClockSkewIsObserved(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.put(openRecord(StatusActive, 600, 0, t0))
	obs := &recordingObserver{}
	clk := &stubClock{now: t0.Add(-3 * time.Second)}
	svc := newTestService(repo, clk, WithObserver(obs))

	state, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(600), state.WorkSeconds)
	assert.Equal(t, []time.Duration{3 * time.Second}, obs.skews)
	assert.Zero(t, repo.updates)
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{err: errors.New("redis down")}
	obs := &recordingObserver{}
	svc := newTestService(newFakeRepo(), &stubClock{now: t0}, WithPublisher(pub), WithObserver(obs))

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, obs.publishErrs)
	assert.Equal(t, []EventType{EventWorkStart}, obs.transitions)
}

func TestService_GetCurrentState_OutOfShift(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &stubClock{now: t0})
	state, err := svc.GetCurrentState(context.Background(), GetCurrentStateInput{CourierID: "courier-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfShift, state.Status)
	assert.Empty(t, state.ShiftID)
	assert.Nil(t, state.BlockedUntil)
}

func TestService_GetRoster_ExplicitIDs(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)

	_, err := svc.StartShift(context.Background(), StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	clk.Advance(time.Minute)

	result, err := svc.GetRoster(context.Background(), GetRosterInput{CourierIDs: []string{"courier-1", "courier-2", "courier-1"}})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	first := result.Entries[0]
	assert.Equal(t, "courier-1", first.CourierID)
	assert.Equal(t, StatusActive, first.State.Status)
	assert.Equal(t, int64(3600), first.State.WorkSeconds)
	require.NotNil(t, first.Latest)
	assert.Equal(t, int64(3600), first.Latest.TotalWorkSeconds)

	second := result.Entries[1]
	assert.Equal(t, StatusOutOfShift, second.State.Status)
	assert.Nil(t, second.Latest)
}

func TestService_GetRoster_Directory(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{ids: []string{"courier-9"}, nextToken: "50"}
	svc := newTestService(newFakeRepo(), &stubClock{now: t0}, WithCourierDirectory(dir))

	result, err := svc.GetRoster(context.Background(), GetRosterInput{PageSize: 10, PageToken: "40"})
	require.NoError(t, err)
	assert.Equal(t, "50", result.NextPageToken)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "courier-9", result.Entries[0].CourierID)
	assert.Equal(t, 10, dir.pageSize)
	assert.Equal(t, "40", dir.pageToken)
}

func TestService_GetRoster_WithoutDirectory(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeRepo(), &stubClock{now: t0})
	_, err := svc.GetRoster(context.Background(), GetRosterInput{})
	assert.ErrorIs(t, err, ErrRosterUnavailable)
}

func TestService_ListHistory(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	repo := newFakeRepo()
	svc := newTestService(repo, clk)
	ctx := context.Background()

	first, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	clk.Advance(3 * time.Minute)
	_, err = svc.EndShift(ctx, EndShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	second, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)
	clk.Advance(time.Minute)

	history, err := svc.ListHistory(ctx, ListHistoryInput{CourierID: "courier-1"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, int64(3600), history[0].TotalWorkSeconds, "open shift is recomputed before listing")
	assert.Equal(t, first.ID, history[1].ID)

	_, err = svc.ListHistory(ctx, ListHistoryInput{CourierID: "courier-1", Limit: maxHistoryLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestService_ListEvents(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: t0}
	svc := newTestService(newFakeRepo(), clk)
	ctx := context.Background()

	rec, err := svc.StartShift(ctx, StartShiftInput{CourierID: "courier-1"})
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx, ListEventsInput{CourierID: "courier-1", ShiftID: rec.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventWorkStart, events[0].Type)

	_, err = svc.ListEvents(ctx, ListEventsInput{CourierID: "courier-2", ShiftID: rec.ID})
	assert.ErrorIs(t, err, ErrShiftNotFound)

	_, err = svc.ListEvents(ctx, ListEventsInput{CourierID: "courier-1", ShiftID: "missing"})
	assert.ErrorIs(t, err, ErrShiftNotFound)
}
