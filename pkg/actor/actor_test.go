package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

func TestActor_RunsTasksInOrder(t *testing.T) {
	a := New("test")
	a.Start()
	defer a.Stop()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, a.Run(func() { order = append(order, i) }))
	}

	got, err := Call(context.Background(), a, func() ([]int, error) {
		return append([]int(nil), order...), nil
	})
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestActor_RunAfterStop(t *testing.T) {
	a := New("test")
	a.Start()
	a.Stop()

	err := a.Run(func() {})
	assert.ErrorIs(t, err, zerrors.ErrClosed)
}

func TestCall_PropagatesError(t *testing.T) {
	a := New("test")
	a.Start()
	defer a.Stop()

	boom := errors.New("boom")
	_, err := Call(context.Background(), a, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestFuture_CompletesOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.True(t, f.Complete(1))
	assert.False(t, f.Complete(2))
	assert.False(t, f.Fail(errors.New("late")))

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_AwaitHonoursContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_OnCompleteRunsOnActor(t *testing.T) {
	a := New("test")
	a.Start()
	defer a.Stop()

	var onActor atomic.Bool
	owner := make(chan struct{})
	require.NoError(t, a.Run(func() { close(owner) }))
	<-owner

	f := NewFuture[string]()
	got := make(chan string, 1)
	f.OnComplete(a, func(v string, err error) {
		onActor.Store(true)
		got <- v
	})
	f.Complete("done")

	select {
	case v := <-got:
		assert.Equal(t, "done", v)
		assert.True(t, onActor.Load())
	case <-time.After(time.Second):
		t.Fatal("callback was not scheduled")
	}
}
