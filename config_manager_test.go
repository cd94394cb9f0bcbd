package customfit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/customfit/customfit-go-sdk/customfittest"
	qt "github.com/frankban/quicktest"
)

func newTestConfigManager(b *customfittest.Backend, srv *httptest.Server) (*ConfigManager, KVStore) {
	f := newTestFetcher(srv)
	store := NewMemoryKVStore()
	cache := NewConfigCache(store, "test-key")
	listeners := NewListenerManager()
	conn := NewConnectionMonitor(SystemClock)
	m := NewConfigManager(f, cache, listeners, nil, conn, SystemClock, nil, "test-key", NewUser(), 60000, 300000, 600000, false, true)
	return m, store
}

func TestConfigManagerCheckAppliesNewConfigs(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": true},
	}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()

	c.Assert(m.Check(context.Background()), qt.IsNil)
	flags := m.GetAllFlags()
	v, ok := flags["flag-a"]
	c.Assert(ok, qt.IsTrue)
	bv, _ := v.Bool()
	c.Assert(bv, qt.IsTrue)
}

func TestConfigManagerDisabledSDKReturnsEmptyFlags(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": false}), "lm-1", `"etag-1"`)
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()

	c.Assert(m.Check(context.Background()), qt.IsNil)
	c.Assert(len(m.GetAllFlags()), qt.Equals, 0)
}

func TestConfigManagerGetReturnsDefaultOnMismatch(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": true},
	}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()
	c.Assert(m.Check(context.Background()), qt.IsNil)

	got := Get(m, nil, "sess-1", "cust-1", "flag-a", "not-a-bool")
	c.Assert(got, qt.Equals, "not-a-bool")

	gotBool := Get(m, nil, "sess-1", "cust-1", "flag-a", false)
	c.Assert(gotBool, qt.IsTrue)
}

func TestConfigManagerGetUnknownKeyReturnsDefault(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()
	c.Assert(m.Check(context.Background()), qt.IsNil)

	got := Get(m, nil, "sess-1", "cust-1", "missing-flag", 42.0)
	c.Assert(got, qt.Equals, 42.0)
}

func TestConfigManagerForceRefreshBypassesEtag(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": true},
	}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()
	c.Assert(m.Check(context.Background()), qt.IsNil)

	// Settings validators are unchanged, so only clearing them lets the
	// new user-configs body through.
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": false},
	}), "")
	c.Assert(m.ForceRefresh(context.Background()), qt.IsNil)
	c.Assert(Get(m, nil, "sess-1", "cust-1", "flag-a", true), qt.IsFalse)
}

func TestConfigManagerHydratesFromCacheOnStart(t *testing.T) {
	c := qt.New(t)
	store := NewMemoryKVStore()
	cache := NewConfigCache(store, "test-key")
	_ = cache.Save(ConfigMap{"flag-a": {Variation: MustValueOf(true)}}, "lm-1", `"etag-1"`)

	b := &customfittest.Backend{}
	srv := httptest.NewServer(b)
	defer srv.Close()
	f := newTestFetcher(srv)
	listeners := NewListenerManager()
	conn := NewConnectionMonitor(SystemClock)
	conn.SetOfflineMode(true)
	m := NewConfigManager(f, cache, listeners, nil, conn, SystemClock, nil, "test-key", NewUser(), 60000, 300000, 600000, false, true)
	defer m.Close()

	flags := m.GetAllFlags()
	v, ok := flags["flag-a"]
	c.Assert(ok, qt.IsTrue)
	bv, _ := v.Bool()
	c.Assert(bv, qt.IsTrue)
}

func TestConfigManagerColdStartWithMatchingEtagStaysEnabled(t *testing.T) {
	c := qt.New(t)
	store := NewMemoryKVStore()
	cache := NewConfigCache(store, "test-key")
	_ = cache.Save(ConfigMap{"hero_text": {Variation: MustValueOf("v1")}}, "lm-1", `"etag-1"`)

	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	listeners := NewListenerManager()
	conn := NewConnectionMonitor(SystemClock)
	m := NewConfigManager(f, cache, listeners, nil, conn, SystemClock, nil, "test-key", NewUser(), 60000, 300000, 600000, false, true)
	defer m.Close()

	c.Assert(m.Check(context.Background()), qt.IsNil)

	got := Get(m, nil, "sess-1", "cust-1", "hero_text", "")
	c.Assert(got, qt.Equals, "v1")
}

func TestConfigManagerUnchangedSettingsSkipsUserConfigsRefresh(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.SetSettings(customfittest.MarshalConfigMap(map[string]bool{"cf_account_enabled": true}), "lm-1", `"etag-1"`)
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": "first"},
	}), "")
	srv := httptest.NewServer(b)
	defer srv.Close()

	m, _ := newTestConfigManager(b, srv)
	defer m.Close()

	c.Assert(m.Check(context.Background()), qt.IsNil)
	got := Get(m, nil, "sess-1", "cust-1", "flag-a", "")
	c.Assert(got, qt.Equals, "first")

	// Settings validators are unchanged on this second check (same
	// Last-Modified/ETag); a different user-configs body must NOT be
	// picked up, proving refreshUserConfigs was skipped rather than the
	// 304 HEAD being misread as a change.
	b.SetUserConfigs(customfittest.MarshalConfigMap(map[string]interface{}{
		"flag-a": map[string]interface{}{"variation": "second"},
	}), "")
	c.Assert(m.Check(context.Background()), qt.IsNil)
	got = Get(m, nil, "sess-1", "cust-1", "flag-a", "")
	c.Assert(got, qt.Equals, "first")
}

func TestConfigManagerOfflineModeSkipsCheck(t *testing.T) {
	c := qt.New(t)
	b := &customfittest.Backend{}
	b.FailNext(100)
	srv := httptest.NewServer(b)
	defer srv.Close()

	f := newTestFetcher(srv)
	store := NewMemoryKVStore()
	cache := NewConfigCache(store, "test-key")
	listeners := NewListenerManager()
	conn := NewConnectionMonitor(SystemClock)
	conn.SetOfflineMode(true)
	m := NewConfigManager(f, cache, listeners, nil, conn, SystemClock, nil, "test-key", NewUser(), 60000, 300000, 600000, false, true)
	defer m.Close()

	c.Assert(m.Check(context.Background()), qt.IsNil)
}
