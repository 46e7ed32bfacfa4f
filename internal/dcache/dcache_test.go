package dcache_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"shaderkit/internal/dcache"
)

func TestDiskCache_PutGet(t *testing.T) {
	c, err := dcache.OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := dcache.KeyOf("naga", "fragment", "fn main() {}")
	var miss dcache.Payload
	if ok, err := c.Get(key, &miss); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	in := &dcache.Payload{Stage: "fragment", Compiler: "naga", SPIRV: []byte{3, 2, 35, 7}}
	if err := c.Put(key, in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var out dcache.Payload
	ok, err := c.Get(key, &out)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(out.SPIRV, in.SPIRV) || out.Stage != "fragment" || out.Created == 0 {
		t.Errorf("payload mismatch: %+v", out)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	tmp, _ := filepath.Glob(filepath.Join(c.Dir(), "tmp-*"))
	if len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}
}

func TestDiskCache_SchemaMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := dcache.OpenAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	key := dcache.KeyOf("x")
	stale, err := msgpack.Marshal(&dcache.Payload{Schema: 999, SPIRV: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, key.String()+".mp"), stale, 0o644); err != nil {
		t.Fatal(err)
	}
	var out dcache.Payload
	if ok, err := c.Get(key, &out); ok || err != nil {
		t.Fatalf("stale schema: ok=%v err=%v", ok, err)
	}
}

func TestDiskCache_DropAll(t *testing.T) {
	c, err := dcache.OpenAt(filepath.Join(t.TempDir(), "spirv"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"a", "b"} {
		if err := c.Put(dcache.KeyOf(s), &dcache.Payload{SPIRV: []byte(s)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len after DropAll = %d", c.Len())
	}
	if err := c.Put(dcache.KeyOf("c"), &dcache.Payload{}); err != nil {
		t.Errorf("Put after DropAll: %v", err)
	}
}

func TestOpen_UsesXDGCacheHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	c, err := dcache.Open("shaderkit")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, "shaderkit", "spirv"); c.Dir() != want {
		t.Errorf("Dir = %q, want %q", c.Dir(), want)
	}
}

func TestKeyOf_LengthPrefixed(t *testing.T) {
	if dcache.KeyOf("ab", "c") == dcache.KeyOf("a", "bc") {
		t.Error("keys collide across part boundaries")
	}
	if dcache.KeyOf("x") != dcache.KeyOf("x") {
		t.Error("KeyOf is not deterministic")
	}
}

func TestNilCache(t *testing.T) {
	var c *dcache.DiskCache
	if err := c.Put(dcache.KeyOf("x"), &dcache.Payload{}); err != nil {
		t.Error(err)
	}
	var p dcache.Payload
	if ok, err := c.Get(dcache.KeyOf("x"), &p); ok || err != nil {
		t.Errorf("nil Get: %v %v", ok, err)
	}
}
