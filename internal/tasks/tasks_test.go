package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"screening-platform/internal/screening"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	ids []string
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context, id string) (screening.Status, error) {
	r.ids = append(r.ids, id)
	return screening.StatusCompleted, r.err
}

type fakeSweeper struct {
	calls int
	n     int
}

func (s *fakeSweeper) Sweep(ctx context.Context) (int, error) {
	s.calls++
	return s.n, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRetrieveTaskPayload(t *testing.T) {
	task, err := NewRetrieveTask("call-1")
	require.NoError(t, err)
	assert.Equal(t, TypeRetrieve, task.Type())

	p, err := ParseRetrievePayload(task)
	require.NoError(t, err)
	assert.Equal(t, "call-1", p.ScreeningCallID)

	_, err = NewRetrieveTask("  ")
	assert.Error(t, err)

	_, err = ParseRetrievePayload(asynq.NewTask(TypeRetrieve, []byte(`{}`)))
	assert.Error(t, err)
}

func TestHandleRetrieve(t *testing.T) {
	r := &fakeResolver{}
	h := Handlers{Resolver: r, Log: discard()}

	task, _ := NewRetrieveTask("call-7")
	require.NoError(t, h.HandleRetrieve(context.Background(), task))
	assert.Equal(t, []string{"call-7"}, r.ids)

	r.err = errors.New("provider down")
	assert.Error(t, h.HandleRetrieve(context.Background(), task))
}

func TestHandleRetrieve_MalformedSkipsRetry(t *testing.T) {
	h := Handlers{Resolver: &fakeResolver{}, Log: discard()}

	err := h.HandleRetrieve(context.Background(), asynq.NewTask(TypeRetrieve, []byte(`not json`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleReap(t *testing.T) {
	s := &fakeSweeper{n: 2}
	h := Handlers{Sweeper: s, Log: discard()}

	require.NoError(t, h.HandleReap(context.Background(), NewReapTask()))
	assert.Equal(t, 1, s.calls)
}

func TestReapSchedule(t *testing.T) {
	assert.Equal(t, "@every 1m0s", ReapSchedule(time.Minute))
	assert.Equal(t, "@every 1m0s", ReapSchedule(0))
	assert.Equal(t, "@every 30s", ReapSchedule(30*time.Second))
}
