package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/mirror/engine"
	"github.com/radieske/inplay-mirror/internal/mirror/extractor"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

type fakeExtractor struct {
	mu        sync.Mutex
	full      []events.RawFixture
	fast      []events.PartialSnapshot
	fullErr   error
	fullCalls int
	mutations chan events.Mutation
}

func (f *fakeExtractor) ExtractFull(context.Context) ([]events.RawFixture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullCalls++
	if f.fullErr != nil {
		return nil, f.fullErr
	}
	return append([]events.RawFixture(nil), f.full...), nil
}

func (f *fakeExtractor) ExtractFast(context.Context) ([]events.PartialSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.PartialSnapshot(nil), f.fast...), nil
}

func (f *fakeExtractor) Mutations() <-chan events.Mutation { return f.mutations }

func (f *fakeExtractor) setFast(p []events.PartialSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fast = p
}

type emitted struct {
	sequenced bool
	rebuild   bool
	idx     int
	field   events.Field
	data    []events.Fixture
}

type recorder struct {
	ch    chan emitted
	inSeq atomic.Bool
}

func newRecorder() *recorder { return &recorder{ch: make(chan emitted, 64)} }

func (r *recorder) BroadcastRebuild(ev engine.RebuildEvent) {
	r.ch <- emitted{sequenced: r.inSeq.Load(), rebuild: true, data: ev.Data}
}

func (r *recorder) BroadcastChange(ev engine.ChangeEvent) {
	r.ch <- emitted{sequenced: r.inSeq.Load(), idx: ev.Index, field: ev.Field, data: ev.Data}
}

func (r *recorder) Sequence(fn func()) {
	r.inSeq.Store(true)
	defer r.inSeq.Store(false)
	fn()
}

func (r *recorder) next(t *testing.T) emitted {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for broadcast")
	}
	return emitted{}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case e := <-r.ch:
		assert.Failf(t, "unexpected broadcast", "%#v", e)
	case <-time.After(wait):
	}
}

func fixtures() []events.RawFixture {
	return []events.RawFixture{
		{Teams: []string{"A", "B"}, HomeOdd: "2/1", DrawOdd: "9/4", AwayOdd: "6/4", Time: "10:00", Score: "0–0", MoreBets: "+10"},
		{Teams: []string{"C", "D"}, HomeOdd: "1/1", DrawOdd: "5/2", AwayOdd: "3/1", Time: "20:00", Score: "1–0", MoreBets: "+20"},
		{Teams: []string{"E", "F"}, HomeOdd: "4/6", DrawOdd: "3/1", AwayOdd: "4/1", Time: "30:00", Score: "0–2", MoreBets: "+30"},
	}
}

func fastOf(raw []events.RawFixture) []events.PartialSnapshot {
	out := make([]events.PartialSnapshot, len(raw))
	for i, r := range raw {
		out[i] = events.PartialSnapshot{HomeOdd: r.HomeOdd, DrawOdd: r.DrawOdd, AwayOdd: r.AwayOdd, MoreBets: r.MoreBets}
	}
	return out
}

func start(t *testing.T, x *fakeExtractor, full, fast time.Duration) (*Scheduler, *recorder, context.CancelFunc, chan error) {
	t.Helper()
	return startWithClock(t, x, full, fast, nil)
}

func startWithClock(t *testing.T, x *fakeExtractor, full, fast time.Duration, clock clockwork.Clock) (*Scheduler, *recorder, context.CancelFunc, chan error) {
	t.Helper()
	rec := newRecorder()
	s := &Scheduler{
		Engine:             engine.New(),
		Extractor:          x,
		Gateway:            rec,
		Log:                zap.NewNop(),
		FullResyncInterval: full,
		FastPollInterval:   fast,
		Clock:              clock,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return s, rec, cancel, done
}

func TestInitialResyncBroadcastsImmediately(t *testing.T) {
	x := &fakeExtractor{full: fixtures(), fast: fastOf(fixtures())}
	_, rec, cancel, done := start(t, x, time.Hour, time.Hour)

	e := rec.next(t)
	assert.True(t, e.rebuild)
	assert.True(t, e.sequenced, "apply and broadcast run inside one sequence")
	assert.Len(t, e.data, 3)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRepeatedResyncAlwaysBroadcasts(t *testing.T) {
	x := &fakeExtractor{full: fixtures(), fast: fastOf(fixtures())}
	_, rec, cancel, _ := start(t, x, 20*time.Millisecond, time.Hour)
	defer cancel()

	a := rec.next(t)
	b := rec.next(t)
	assert.True(t, a.rebuild)
	assert.True(t, b.rebuild)
	assert.Equal(t, a.data, b.data, "identical resyncs must produce identical data")
}

func TestFastPollBroadcastsChangesInIndexOrder(t *testing.T) {
	x := &fakeExtractor{full: fixtures(), fast: fastOf(fixtures())}
	s, rec, cancel, _ := start(t, x, time.Hour, 10*time.Millisecond)
	defer cancel()

	rec.next(t) // rebuild

	poll := fastOf(fixtures())
	poll[2].AwayOdd = "9/2"
	poll[0].HomeOdd = "7/4"
	poll[0].DrawOdd = "12/5"
	x.setFast(poll)

	first, second := rec.next(t), rec.next(t)
	assert.True(t, first.sequenced)
	assert.True(t, second.sequenced)
	assert.Equal(t, 0, first.idx)
	assert.Equal(t, events.FieldHomeOdd, first.field)
	assert.Equal(t, 2, second.idx)
	assert.Equal(t, events.FieldAwayOdd, second.field)
	rec.none(t, 50*time.Millisecond)

	f, ok := s.Engine.Fixture(0)
	require.True(t, ok)
	assert.Equal(t, "12/5", f.DrawOdd, "non-reported fields are still applied")
}

func TestCadencesFollowTheClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	x := &fakeExtractor{full: fixtures(), fast: fastOf(fixtures())}
	_, rec, cancel, _ := startWithClock(t, x, time.Minute, time.Second, clock)
	defer cancel()

	rec.next(t) // ressincronização inicial, sem esperar o relógio

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, clock.BlockUntilContext(ctx, 2), "both cadence tickers should be waiting")

	poll := fastOf(fixtures())
	poll[1].MoreBets = "+21"
	x.setFast(poll)

	clock.Advance(time.Second)
	e := rec.next(t)
	assert.Equal(t, 1, e.idx)
	assert.Equal(t, events.FieldMoreBets, e.field)
	rec.none(t, 30*time.Millisecond)

	x.mu.Lock()
	x.full = fixtures()
	x.full[1].MoreBets = "+21"
	x.mu.Unlock()

	clock.Advance(59 * time.Second)
	e = rec.next(t)
	assert.True(t, e.rebuild, "full resync due at one minute")
	rec.none(t, 30*time.Millisecond)
}

func TestExtractionFailureLeavesStateAndSkipsBroadcast(t *testing.T) {
	x := &fakeExtractor{fullErr: errors.New("layout changed")}
	rec := newRecorder()
	var mu sync.Mutex
	failures := map[string]int{}
	s := &Scheduler{
		Engine:             engine.New(),
		Extractor:          x,
		Gateway:            rec,
		Log:                zap.NewNop(),
		FullResyncInterval: 10 * time.Millisecond,
		FastPollInterval:   time.Hour,
		OnError: func(c string) {
			mu.Lock()
			failures[c]++
			mu.Unlock()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	rec.none(t, 60*time.Millisecond)
	mu.Lock()
	n := failures[CadenceFull]
	mu.Unlock()
	assert.GreaterOrEqual(t, n, 2, "each failing cycle is independent")
	assert.Zero(t, s.Engine.Len(), "failed resync must not touch state")
}

func TestExtractionErrorWrapping(t *testing.T) {
	err := fmt.Errorf("%w: boom", extractor.ErrExtraction)
	assert.ErrorIs(t, err, extractor.ErrExtraction)
}

func TestInstantMutations(t *testing.T) {
	x := &fakeExtractor{full: fixtures(), fast: fastOf(fixtures()), mutations: make(chan events.Mutation, 4)}
	s, rec, cancel, _ := start(t, x, time.Hour, time.Hour)
	defer cancel()

	rec.next(t) // rebuild

	x.mutations <- events.Mutation{Index: 1, Time: "20:01", Score: "1–0"}
	rec.none(t, 50*time.Millisecond)
	f, _ := s.Engine.Fixture(1)
	assert.Equal(t, "20:01", f.Time, "clock is applied silently")

	x.mutations <- events.Mutation{Index: 1, Time: "20:02", Score: "2–0"}
	e := rec.next(t)
	assert.True(t, e.sequenced)
	assert.Equal(t, 1, e.idx)
	assert.Equal(t, events.FieldScore, e.field)
	assert.Equal(t, "2–0", e.data[1].Score)

	// índice fora do estado: descartado sem erro
	x.mutations <- events.Mutation{Index: 7, Score: "9–9"}
	rec.none(t, 50*time.Millisecond)
	assert.Equal(t, 3, s.Engine.Len())
}
