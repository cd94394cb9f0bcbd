package customfit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/customfit/customfit-go-sdk/customfittest"
	qt "github.com/frankban/quicktest"
)

func newTestFetcher(srv *httptest.Server) *ConfigFetcher {
	http := newHTTPClient("test-key", time.Second, time.Second)
	breakers := NewCircuitBreakerRegistry(defaultCircuitBreakerConfig())
	conn := NewConnectionMonitor(SystemClock)
	retry := RetryPolicy{MaxAttempts: 1, InitialDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2.0}
	return NewConfigFetcher(http, breakers, retry, conn, srv.URL, srv.URL, "test-key")
}

func TestConfigFetcherGetSettingsParsesBody(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{
		"cf_account_enabled": true,
		"cf_skip_sdk":        false,
	}), "lm-1", `"etag-1"`)
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	settings, resp, err := f.GetSettings(context.Background(), "")
	c.Assert(err, qt.IsNil)
	c.Assert(settings.Enabled(), qt.IsTrue)
	c.Assert(resp.ETag, qt.Equals, `"etag-1"`)
}

func TestConfigFetcherGetSettingsNotModified(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	_, resp, err := f.GetSettings(context.Background(), `"etag-1"`)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.NotModified, qt.IsTrue)
}

func TestConfigFetcherPostUserConfigsParsesConfigMap(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": true},
	}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	configs, _, err := f.PostUserConfigs(context.Background(), NewUser(), "")
	c.Assert(err, qt.IsNil)
	v, ok := configs["flag-a"]
	c.Assert(ok, qt.IsTrue)
	b2, _ := v.Variation.Bool()
	c.Assert(b2, qt.IsTrue)
}

func TestConfigFetcherPostEventsAndSummaries(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	err := f.PostEvents(context.Background(), []EventRecord{{EventID: "e1"}})
	c.Assert(err, qt.IsNil)
	err = f.PostSummaries(context.Background(), []SummaryRecord{{FlagKey: "flag-a"}})
	c.Assert(err, qt.IsNil)

	c.Assert(len(b.ReceivedEvents()), qt.Equals, 1)
	c.Assert(len(b.ReceivedSummaries()), qt.Equals, 1)
}

func TestConfigFetcherOfflineModeShortCircuits(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	srv := httptest.NewServer(b)
	defer srv.Close()

	http := newHTTPClient("test-key", time.Second, time.Second)
	breakers := NewCircuitBreakerRegistry(defaultCircuitBreakerConfig())
	conn := NewConnectionMonitor(SystemClock)
	conn.SetOfflineMode(true)
	retry := RetryPolicy{MaxAttempts: 1, InitialDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2.0}
	f := NewConfigFetcher(http, breakers, retry, conn, srv.URL, srv.URL, "test-key")

	_, _, err := f.GetSettings(context.Background(), "")
	c.Assert(err, qt.Not(qt.IsNil))
}
