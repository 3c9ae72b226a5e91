package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("DEBUG", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("INFO", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("ERROR", msg, kv) }

func (l *recordingLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func newDispatcher(t *testing.T) (*Dispatcher, *recordingLogger) {
	t.Helper()
	log := &recordingLogger{}
	d, err := New(log)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, log
}

func TestDispatch_Inline(t *testing.T) {
	d, _ := newDispatcher(t)

	var got Event
	d.Register(":STYLE:", func(e Event) (any, error) {
		got = e
		return "applied", nil
	})

	before := time.Now()
	res, err := d.Dispatch(Event{Command: ":STYLE:", Payload: "hybrid"})
	require.NoError(t, err)
	assert.Equal(t, "applied", res)
	assert.Equal(t, "hybrid", got.Payload)
	assert.False(t, got.Timestamp.Before(before), "timestamp is stamped on dispatch")
}

func TestDispatch_KeepsCallerTimestamp(t *testing.T) {
	d, _ := newDispatcher(t)

	var got time.Time
	d.Register(":STYLE:", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	ts := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	_, err := d.Dispatch(Event{Command: ":STYLE:", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":PAN:"})
	assert.ErrorContains(t, err, "unknown command")
	assert.False(t, d.HasHandler(":PAN:"))
}

func TestDispatch_BufferedQueues(t *testing.T) {
	d, _ := newDispatcher(t)

	var handled atomic.Int32
	d.Register(":LOOKUP:", func(e Event) (any, error) {
		handled.Add(1)
		return nil, nil
	}, Buffered(8))
	assert.True(t, d.HasHandler(":LOOKUP:"))

	for i := 0; i < 5; i++ {
		res, err := d.Dispatch(Event{Command: ":LOOKUP:", Payload: i})
		require.NoError(t, err)
		assert.Equal(t, "queued", res)
	}

	require.Eventually(t, func() bool { return handled.Load() == 5 }, time.Second, time.Millisecond)
}

func TestDispatch_NonBlockingLaneDropsWhenFull(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":TILE:", func(e Event) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, Buffered(1))
	defer close(release)

	_, err := d.Dispatch(Event{Command: ":TILE:"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Command: ":TILE:"})
	require.NoError(t, err, "fills the queue")

	_, err = d.Dispatch(Event{Command: ":TILE:"})
	assert.ErrorContains(t, err, "queue full")
}

func TestDispatch_BlockingLaneWaitsForRoom(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var handled atomic.Int32
	d.Register(":SELECTION:", func(e Event) (any, error) {
		if handled.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return nil, nil
	}, Buffered(1), Blocking())

	_, err := d.Dispatch(Event{Command: ":SELECTION:"})
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: ":SELECTION:"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(Event{Command: ":SELECTION:"})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("dispatch returned while the lane was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return handled.Load() == 3 }, time.Second, time.Millisecond)
}

func TestDispatch_LaneOrdersAcrossCommands(t *testing.T) {
	d, _ := newDispatcher(t)

	var mu sync.Mutex
	var order []string
	record := func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, e.Command+e.Payload.(string))
		return nil, nil
	}
	opts := []Option{Buffered(64), Blocking(), OnLane("core")}
	d.Register(":SELECTION:", record, opts...)
	d.Register(":LOOKUP:", record, opts...)

	want := []string{
		":SELECTION:1", ":LOOKUP:1", ":SELECTION:2",
		":SELECTION:3", ":LOOKUP:2", ":LOOKUP:3",
	}
	for _, w := range want {
		i := strings.LastIndex(w, ":")
		_, err := d.Dispatch(Event{Command: w[:i+1], Payload: w[i+1:]})
		require.NoError(t, err)
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, order)
}

func TestDispatch_SeparateLanesRunConcurrently(t *testing.T) {
	d, _ := newDispatcher(t)

	release := make(chan struct{})
	d.Register(":SLOW:", func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1), OnLane("slow"))
	defer close(release)

	fast := make(chan struct{})
	d.Register(":FAST:", func(e Event) (any, error) {
		close(fast)
		return nil, nil
	}, Buffered(1), OnLane("fast"))

	_, err := d.Dispatch(Event{Command: ":SLOW:"})
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: ":FAST:"})
	require.NoError(t, err)

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast lane was held up by the slow lane")
	}
}

func TestDispatch_QueuedErrorsAndPanicsAreLogged(t *testing.T) {
	d, log := newDispatcher(t)

	d.Register(":BAD:", func(e Event) (any, error) {
		return nil, errors.New("bad payload")
	}, Buffered(4), OnLane("core"))
	d.Register(":BOOM:", func(e Event) (any, error) {
		panic("boom")
	}, Buffered(4), OnLane("core"))

	var after atomic.Bool
	d.Register(":AFTER:", func(e Event) (any, error) {
		after.Store(true)
		return nil, nil
	}, Buffered(4), OnLane("core"))

	for _, cmd := range []string{":BAD:", ":BOOM:", ":AFTER:"} {
		_, err := d.Dispatch(Event{Command: cmd})
		require.NoError(t, err)
	}

	require.Eventually(t, after.Load, time.Second, time.Millisecond, "lane survives")
	assert.True(t, log.has("ERROR queued event failed"))
	assert.True(t, log.has("ERROR handler panicked"))
}

func TestDispatch_Logged(t *testing.T) {
	d, log := newDispatcher(t)

	d.Register(":OK:", func(e Event) (any, error) { return "ok", nil }, Logged())
	d.Register(":FAIL:", func(e Event) (any, error) { return nil, errors.New("nope") }, Logged())

	_, err := d.Dispatch(Event{Command: ":OK:"})
	require.NoError(t, err)
	assert.True(t, log.has("DEBUG handling event"))
	assert.True(t, log.has("DEBUG event complete"))

	_, err = d.Dispatch(Event{Command: ":FAIL:"})
	assert.EqualError(t, err, "nope")
	assert.True(t, log.has("ERROR event failed"))
}

func TestClose_DrainsQueuedEvents(t *testing.T) {
	d, _ := newDispatcher(t)

	var handled atomic.Int32
	d.Register(":LOOKUP:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil, nil
	}, Buffered(16), Blocking())

	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(Event{Command: ":LOOKUP:"})
		require.NoError(t, err)
	}
	d.Close()

	assert.EqualValues(t, 10, handled.Load())
}

func TestClose_RejectsLaterEvents(t *testing.T) {
	d, _ := newDispatcher(t)

	d.Register(":LOOKUP:", func(e Event) (any, error) { return nil, nil }, Buffered(1), Blocking())
	d.Register(":TILE:", func(e Event) (any, error) { return nil, nil }, Buffered(1))
	d.Close()

	_, err := d.Dispatch(Event{Command: ":LOOKUP:"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.Dispatch(Event{Command: ":TILE:"})
	assert.ErrorIs(t, err, ErrClosed)

	d.Close()
}
