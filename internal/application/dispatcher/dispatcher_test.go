package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/standort-workflow/internal/domain/event"
)

func newObservedDispatcher() (Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(WithLogger(zap.New(core))), logs
}

func TestSubscribe(t *testing.T) {
	d, logs := newObservedDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe("audit", noop, event.TypeLocationAdvanced, event.TypeLocationRejected)

	assert.Len(t, d.ListHandlers(event.TypeLocationAdvanced), 1)
	assert.Len(t, d.ListHandlers(event.TypeLocationRejected), 1)
	assert.Empty(t, d.ListHandlers(event.TypeLocationCaptured))
	assert.Equal(t, 2, logs.FilterMessage("Handler registered").Len())

	info := d.ListHandlers(event.TypeLocationAdvanced)[0]
	assert.Equal(t, "audit", info.Name)
	assert.Nil(t, info.Handler, "handler func should not be exposed")
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe("a", noop, event.TypeLocationAdvanced, event.TypeLocationCompleted)
	d.Subscribe("b", noop, event.TypeLocationAdvanced)
	d.Unsubscribe("a")

	handlers := d.ListHandlers(event.TypeLocationAdvanced)
	require.Len(t, handlers, 1)
	assert.Equal(t, "b", handlers[0].Name)
	assert.Empty(t, d.ListHandlers(event.TypeLocationCompleted))
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.Subscribe("first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		}, event.TypeLocationCaptured)
		d.Subscribe("second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		}, event.TypeLocationCaptured)

		require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeLocationCaptured, "loc-1", nil)))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("stops at first error", func(t *testing.T) {
		d, logs := newObservedDispatcher()
		boom := errors.New("boom")
		called := false
		d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error { return boom }, event.TypeLocationCaptured)
		d.Subscribe("skipped", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		}, event.TypeLocationCaptured)

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeLocationCaptured, "loc-1", nil))
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
		assert.Equal(t, 1, logs.FilterMessage("Handler error").Len())
	})

	t.Run("recovers panics", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe("panicky", func(ctx context.Context, evt *event.Event) error { panic("bad") }, event.TypeLocationCaptured)

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeLocationCaptured, "loc-1", nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic")
	})

	t.Run("rejects after close", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.Error(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeLocationCaptured, "loc-1", nil)))
	})
}

func TestDispatchAsync(t *testing.T) {
	d, logs := newObservedDispatcher()
	var calls atomic.Int32
	d.Subscribe("counter", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	}, event.TypeLocationAdvanced)
	d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("nope")
	}, event.TypeLocationAdvanced)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		d.DispatchAsync(ctx, event.NewEvent(event.TypeLocationAdvanced, "loc-1", nil))
	}
	cancel()

	require.NoError(t, d.Close())
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 5, logs.FilterMessage("Async handler error").Len())

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeLocationAdvanced, "loc-1", nil))
	assert.Equal(t, 1, logs.FilterMessage("Dropping event, dispatcher is closed").Len())
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close(), "second close should fail")
}

func TestConcurrency(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	handler := func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe("h", handler, event.TypeLocationUpdated)
		}()
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeLocationUpdated, "loc-1", nil))
		}()
	}
	wg.Wait()

	assert.Len(t, d.ListHandlers(event.TypeLocationUpdated), 10)
	require.NoError(t, d.Close())
}
