package customfit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/customfit/customfit-go-sdk/customfittest"
	qt "github.com/frankban/quicktest"
)

func TestSummaryManagerTrackDedupes(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	m := NewSummaryManager(f, nil, 100, time.Hour)
	defer m.Close()

	rec := SummaryRecord{SessionID: "s1", FlagKey: "flag-a", VariationID: "v1"}
	m.Track(rec)
	m.Track(rec)

	c.Assert(m.Flush(context.Background()), qt.IsNil)
	c.Assert(len(b.ReceivedSummaries()), qt.Equals, 1)
}

func TestSummaryManagerFlushOnQueueFull(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	m := NewSummaryManager(f, nil, 2, time.Hour)
	defer m.Close()

	m.Track(SummaryRecord{SessionID: "s1", FlagKey: "a", VariationID: "v1"})
	m.Track(SummaryRecord{SessionID: "s1", FlagKey: "b", VariationID: "v1"})

	deadline := time.Now().Add(2 * time.Second)
	for len(b.ReceivedSummaries()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(len(b.ReceivedSummaries()), qt.Equals, 1)
}

func TestSummaryManagerFlushLeavesQueueOnFailure(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.FailNext(2)
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	m := NewSummaryManager(f, nil, 100, time.Hour)
	defer m.Close()

	m.Track(SummaryRecord{SessionID: "s1", FlagKey: "a", VariationID: "v1"})
	err := m.Flush(context.Background())
	c.Assert(err, qt.Not(qt.IsNil))

	err = m.Flush(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(len(b.ReceivedSummaries()), qt.Equals, 1)
}
