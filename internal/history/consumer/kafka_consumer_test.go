package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/history/repository"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

type memStore struct {
	changes []repository.ChangeRecord
	resyncs []int
	err     error
}

func (m *memStore) InsertChange(_ context.Context, c repository.ChangeRecord) error {
	if m.err != nil {
		return m.err
	}
	m.changes = append(m.changes, c)
	return nil
}

func (m *memStore) InsertResync(_ context.Context, n int, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.resyncs = append(m.resyncs, n)
	return nil
}

type sliceReader struct {
	msgs [][]byte
	i    int
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.i >= len(r.msgs) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := kafka.Message{Value: r.msgs[r.i]}
	r.i++
	return m, nil
}

var state = []events.Fixture{
	{Teams: []string{"Arsenal", "Chelsea"}, HomeOdd: "2/1", Score: "0–0"},
	{Teams: []string{"Leeds", "Everton"}, DrawOdd: "5/2", Score: "2–1"},
}

func encode(t *testing.T, ld events.LiveData) []byte {
	t.Helper()
	b, err := json.Marshal(ld)
	require.NoError(t, err)
	return b
}

func TestHandleChangeAndRebuild(t *testing.T) {
	store := &memStore{}
	p := &Processor{Log: zap.NewNop(), Store: store}
	at := time.UnixMilli(1700000000000)

	p.Handle(context.Background(), encode(t, events.NewRebuild(state, at)))
	p.Handle(context.Background(), encode(t, events.NewChange(state, 1, events.FieldScore, at)))

	assert.Equal(t, []int{2}, store.resyncs)
	require.Len(t, store.changes, 1)
	c := store.changes[0]
	assert.Equal(t, 1, c.Idx)
	assert.Equal(t, "score", c.Field)
	assert.Equal(t, "2–1", c.Value)
	assert.Equal(t, "Leeds", c.HomeTeam)
	assert.Equal(t, "Everton", c.AwayTeam)
	assert.True(t, c.Ts.Equal(at), "ts %v", c.Ts)
}

func TestChangeRecordFromFieldValues(t *testing.T) {
	f := []events.Fixture{{
		Teams: []string{"A", "B"}, HomeOdd: "1/2", DrawOdd: "3/1", AwayOdd: "9/2",
		Time: "10:00", Score: "0–0", MoreBets: "+7",
	}}
	tests := []struct {
		field events.Field
		want  string
	}{
		{events.FieldHomeOdd, "1/2"},
		{events.FieldDrawOdd, "3/1"},
		{events.FieldAwayOdd, "9/2"},
		{events.FieldMoreBets, "+7"},
		{events.FieldScore, "0–0"},
		{events.FieldTime, "10:00"},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			rec, ok := ChangeRecordFrom(events.NewChange(f, 0, tt.field, time.Now()))
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Value)
		})
	}

	_, ok := ChangeRecordFrom(events.NewRebuild(f, time.Now()))
	assert.False(t, ok, "rebuild has no change record")
}

func TestHandleRejectsInvalid(t *testing.T) {
	store := &memStore{}
	stages := map[string]int{}
	p := &Processor{Log: zap.NewNop(), Store: store, OnError: func(s string) { stages[s]++ }}

	p.Handle(context.Background(), []byte("{not json"))
	p.Handle(context.Background(), encode(t, events.NewChange(state, 9, events.FieldHomeOdd, time.Now())))

	assert.Equal(t, 2, stages["decode"])
	assert.Empty(t, store.changes, "invalid messages must not be persisted")
}

func TestHandleStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	stages := map[string]int{}
	p := &Processor{Log: zap.NewNop(), Store: store, OnError: func(s string) { stages[s]++ }}

	p.Handle(context.Background(), encode(t, events.NewChange(state, 0, events.FieldHomeOdd, time.Now())))
	p.Handle(context.Background(), encode(t, events.NewRebuild(state, time.Now())))

	assert.Equal(t, map[string]int{"db_change": 1, "db_resync": 1}, stages)
}

func TestRunConsumesUntilCancel(t *testing.T) {
	store := &memStore{}
	consumed, persisted := 0, 0
	reader := &sliceReader{msgs: [][]byte{
		encode(t, events.NewRebuild(state, time.Now())),
		encode(t, events.NewChange(state, 0, events.FieldHomeOdd, time.Now())),
	}}
	p := &Processor{
		Log:        zap.NewNop(),
		Reader:     reader,
		Store:      store,
		OnConsumed: func() { consumed++ },
		OnPersist:  func() { persisted++ },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, 2, persisted)
	require.Len(t, store.changes, 1)
	assert.Equal(t, "2/1", store.changes[0].Value)
}
