package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/compass/internal/model"
)

func TestKey(t *testing.T) {
	k1 := Key("consent", "3")
	k2 := Key("consent", "3")
	if k1 != k2 {
		t.Errorf("Expected stable keys, got %s and %s", k1, k2)
	}
	if !strings.HasPrefix(k1, "compass:v1:") {
		t.Errorf("Expected versioned prefix, got %s", k1)
	}
	if Key("a b", "c") == Key("a", "b c") {
		t.Error("Expected part boundaries to affect the key")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	value := []byte("payload")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'X'

	got, ok := c.Get("k")
	if !ok || string(got) != "payload" {
		t.Errorf("Expected stored copy 'payload', got %q (found=%v)", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("short", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("retention", "2")

	if err := c.Set(key, []byte(`[{"text":"t"}]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != `[{"text":"t"}]` {
		t.Errorf("Expected stored value, got %q (found=%v)", got, ok)
	}

	reopened := NewDiskCache(dir, time.Hour)
	if _, ok := reopened.Get(key); !ok {
		t.Error("Expected value to persist across instances")
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}

func TestDiskCache_ExpiredAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	_ = c.Set("old", []byte("v"), time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("old"); ok {
		t.Error("Expected expired entry to miss")
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("Expected corrupt entry to miss")
	}
}

func TestDiskCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, 0)
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected entries removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Errorf("Expected unrelated files to survive: %v", err)
	}

	if err := NewDiskCache(filepath.Join(dir, "missing"), 0).Clear(); err != nil {
		t.Errorf("Expected clearing a missing dir to succeed, got %v", err)
	}
}

func TestLayeredCache_Promotes(t *testing.T) {
	fast := NewMemoryCache(time.Minute, time.Minute)
	slow := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayeredCache(fast, slow)

	_ = slow.Set("k", []byte("v"), 0)
	if _, ok := fast.Get("k"); ok {
		t.Fatal("Expected fast layer to start empty")
	}

	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Expected slow-layer hit, got %q", got)
	}
	if _, ok := fast.Get("k"); !ok {
		t.Error("Expected hit promoted to fast layer")
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss in both layers after delete")
	}
}

func TestNew(t *testing.T) {
	if c := New(model.CacheConfig{Enabled: false}); c != nil {
		t.Errorf("Expected nil cache when disabled, got %T", c)
	}
	if _, ok := New(model.CacheConfig{Enabled: true, MemoryTTLSecs: 60}).(*MemoryCache); !ok {
		t.Error("Expected memory cache without a dir")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir(), MemoryTTLSecs: 60, DiskTTLSecs: 60}).(*LayeredCache); !ok {
		t.Error("Expected layered cache with a dir")
	}
}
