package customfit

import (
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestListenerManagerNotifyKeyChanged(t *testing.T) {
	c := qt.New(t)
	m := NewListenerManager()
	defer m.Close()

	var mu sync.Mutex
	var old, neu Value
	done := make(chan struct{})
	m.SubscribeKey("flag-a", func(oldValue, newValue Value) {
		mu.Lock()
		old, neu = oldValue, newValue
		mu.Unlock()
		close(done)
	})

	m.NotifyKeyChanged("flag-a", MustValueOf(false), MustValueOf(true))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener was never invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	c.Assert(DeepEqual(old, MustValueOf(false)), qt.IsTrue)
	c.Assert(DeepEqual(neu, MustValueOf(true)), qt.IsTrue)
}

func TestListenerManagerUnsubscribeStopsNotifications(t *testing.T) {
	c := qt.New(t)
	m := NewListenerManager()
	defer m.Close()

	var calls int
	var mu sync.Mutex
	h := m.SubscribeKey("flag-b", func(Value, Value) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	m.UnsubscribeKey("flag-b", h)
	m.NotifyKeyChanged("flag-b", MustValueOf(1.0), MustValueOf(2.0))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	c.Assert(calls, qt.Equals, 0)
}

func TestListenerManagerNotifyAllFlagsChanged(t *testing.T) {
	c := qt.New(t)
	m := NewListenerManager()
	defer m.Close()

	done := make(chan []string, 1)
	m.SubscribeAllFlags(func(changedKeys []string) { done <- changedKeys })
	m.NotifyAllFlagsChanged([]string{"a", "b"})

	select {
	case got := <-done:
		c.Assert(got, qt.DeepEquals, []string{"a", "b"})
	case <-time.After(time.Second):
		t.Fatal("all-flags listener was never invoked")
	}
}

func TestListenerManagerCloseStopsDispatch(t *testing.T) {
	m := NewListenerManager()
	m.Close()
	m.NotifyKeyChanged("x", MustValueOf(1.0), MustValueOf(2.0))
}
