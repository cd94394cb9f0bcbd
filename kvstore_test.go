package customfit

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestMemoryKVStoreRoundTrip(t *testing.T) {
	c := qt.New(t)
	s := NewMemoryKVStore()
	c.Assert(s.Set("a", "1"), qt.IsNil)
	v, ok := s.Get("a")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "1")

	c.Assert(s.Remove("a"), qt.IsNil)
	_, ok = s.Get("a")
	c.Assert(ok, qt.IsFalse)
}

func TestMemoryKVStoreKeysAndClear(t *testing.T) {
	c := qt.New(t)
	s := NewMemoryKVStore()
	_ = s.Set("a", "1")
	_ = s.Set("b", "2")
	c.Assert(len(s.Keys()), qt.Equals, 2)
	c.Assert(s.Clear(), qt.IsNil)
	c.Assert(len(s.Keys()), qt.Equals, 0)
}

func TestFileKVStoreDurableRoundTrip(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	s, err := NewFileKVStore(filepath.Join(dir, "kv"))
	c.Assert(err, qt.IsNil)

	c.Assert(s.Set("session:current", "abc:123"), qt.IsNil)
	v, ok := s.Get("session:current")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "abc:123")

	s2, err := NewFileKVStore(filepath.Join(dir, "kv"))
	c.Assert(err, qt.IsNil)
	v2, ok := s2.Get("session:current")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v2, qt.Equals, "abc:123")
}

func TestFileKVStoreRemoveAndKeys(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	s, err := NewFileKVStore(dir)
	c.Assert(err, qt.IsNil)

	_ = s.Set("k1", "v1")
	_ = s.Set("k2", "v2")
	keys := s.Keys()
	c.Assert(len(keys), qt.Equals, 2)

	c.Assert(s.Remove("k1"), qt.IsNil)
	_, ok := s.Get("k1")
	c.Assert(ok, qt.IsFalse)
}
