package customfit

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/customfit/customfit-go-sdk/customfittest"
)

func TestConnectionMonitorOfflineModeNotifiesSubscribers(t *testing.T) {
	c := qt.New(t)
	m := NewConnectionMonitor(customfittest.NewFakeClock(fixedTestTime))

	var got []ConnectionInfo
	m.Subscribe(func(info ConnectionInfo) {
		got = append(got, info)
	})

	c.Assert(m.IsOfflineMode(), qt.IsFalse)
	m.SetOfflineMode(true)
	c.Assert(m.IsOfflineMode(), qt.IsTrue)
	c.Assert(len(got), qt.Equals, 1)
	c.Assert(got[0].State, qt.Equals, ConnectionDisconnected)
}

func TestConnectionMonitorRecordSuccessAndFailure(t *testing.T) {
	c := qt.New(t)
	m := NewConnectionMonitor(customfittest.NewFakeClock(fixedTestTime))

	m.RecordFailure(errors.New("boom"), 5000)
	snap := m.Snapshot()
	c.Assert(snap.State, qt.Equals, ConnectionError)
	c.Assert(snap.FailureCount, qt.Equals, 1)

	m.RecordSuccess()
	snap = m.Snapshot()
	c.Assert(snap.State, qt.Equals, ConnectionConnected)
	c.Assert(snap.FailureCount, qt.Equals, 0)
	c.Assert(snap.LastError, qt.IsNil)
}

func TestConnectionMonitorUnsubscribe(t *testing.T) {
	c := qt.New(t)
	m := NewConnectionMonitor(customfittest.NewFakeClock(fixedTestTime))
	calls := 0
	h := m.Subscribe(func(ConnectionInfo) { calls++ })
	m.Unsubscribe(h)
	m.RecordSuccess()
	c.Assert(calls, qt.Equals, 0)
}
