package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewStore_EmptyPath(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewStore("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	st, err := NewStore(filepath.Join(t.TempDir(), DefaultCursorFile))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	cur, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cur.LastProcessedID != "" || cur.Initialized || !cur.LastUpdated.IsZero() {
		t.Fatalf("expected zero cursor, got %+v", cur)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCursorFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write cursor: %v", err)
	}

	st, _ := NewStore(path)
	if _, err := st.Load(); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCursorFile)
	st, _ := NewStore(path)

	want := Cursor{
		LastProcessedID: "1790000000000000005",
		Initialized:     true,
		LastUpdated:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := st.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("cursor mismatch: got %+v want %+v", got, want)
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proj", "nested", DefaultCursorFile)
	st, _ := NewStore(path)

	if err := st.Save(Cursor{Initialized: true, LastUpdated: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cursor file not created: %v", err)
	}
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCursorFile)
	st, _ := NewStore(path)

	_ = st.Save(Cursor{LastProcessedID: "1", Initialized: true, LastUpdated: time.Now().UTC()})
	if err := st.Save(Cursor{LastProcessedID: "2", Initialized: true, LastUpdated: time.Now().UTC()}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	cur, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cur.LastProcessedID != "2" {
		t.Fatalf("expected id 2, got %q", cur.LastProcessedID)
	}
}

func TestSave_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewStore(filepath.Join(dir, DefaultCursorFile))

	if err := st.Save(Cursor{Initialized: true, LastUpdated: time.Now().UTC()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".cursor-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
