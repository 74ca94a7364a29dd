package state

import (
	"os"
	"path/filepath"
	"testing"

	"fable/internal/engine"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestBookmarkRoundtrip(t *testing.T) {
	store := testStore(t)

	bm := Bookmark{
		Locator:     &engine.Locator{Href: "ch2.xhtml", Title: "Chapter Two", Progression: 0.4, TotalProgression: 0.7},
		Preferences: engine.Preferences{FontScale: 1.25},
	}
	if err := store.Set("key1", bm); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := store.Get("key1")
	if !ok {
		t.Fatal("bookmark not found after Set")
	}
	if got.Locator == nil || *got.Locator != *bm.Locator {
		t.Errorf("locator = %+v, want %+v", got.Locator, bm.Locator)
	}
	if got.Preferences != bm.Preferences {
		t.Errorf("preferences = %+v, want %+v", got.Preferences, bm.Preferences)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestBookmarkPersistsAcrossStores(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	first, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	bm := Bookmark{
		Locator:     &engine.Locator{Href: "ch1.xhtml", Progression: 0.9},
		Preferences: engine.Preferences{FontScale: 1.5},
	}
	if err := first.Set("key1", bm); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second, err := NewStore()
	if err != nil {
		t.Fatalf("second NewStore failed: %v", err)
	}
	got, ok := second.Get("key1")
	if !ok {
		t.Fatal("bookmark did not survive a store reload")
	}
	if got.Preferences.FontScale != 1.5 || got.Locator.Progression != 0.9 {
		t.Errorf("reloaded bookmark = %+v", got)
	}
}

func TestClear(t *testing.T) {
	store := testStore(t)

	if err := store.Set("key1", Bookmark{Preferences: engine.DefaultPreferences()}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Clear("key1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := store.Get("key1"); ok {
		t.Error("bookmark still present after Clear")
	}
}

func TestCorruptStateFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	stateFile := filepath.Join(dir, "fable", stateFileName)
	if err := os.MkdirAll(filepath.Dir(stateFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stateFile, []byte("{ not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore failed on corrupt file: %v", err)
	}
	if _, ok := store.Get("anything"); ok {
		t.Error("corrupt store returned data")
	}
}

func TestKeyForLocalFileIsContentBased(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "original.epub")
	if err := os.WriteFile(a, []byte("identical book bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	b := filepath.Join(dir, "renamed-copy.epub")
	if err := os.WriteFile(b, []byte("identical book bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	ka, err := KeyFor(a)
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	kb, err := KeyFor(b)
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	if ka != kb {
		t.Errorf("renamed copy got a different key: %q vs %q", ka, kb)
	}
	if len(ka) != 32 {
		t.Errorf("key length = %d, want 32 hex chars", len(ka))
	}
}

func TestKeyForDistinctContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.epub")
	b := filepath.Join(dir, "b.epub")
	os.WriteFile(a, []byte("first book"), 0644)
	os.WriteFile(b, []byte("second book"), 0644)

	ka, _ := KeyFor(a)
	kb, _ := KeyFor(b)
	if ka == kb {
		t.Error("different files share a key")
	}
}

func TestKeyForRemoteSource(t *testing.T) {
	k1, err := KeyFor("https://example.com/book.epub")
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	k2, _ := KeyFor("https://example.com/book.epub")
	if k1 != k2 {
		t.Error("remote key is not stable")
	}
	k3, _ := KeyFor("https://example.org/book.epub")
	if k1 == k3 {
		t.Error("distinct URLs share a key")
	}
}
