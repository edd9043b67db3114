package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestRemoveStaleProgressFiles(t *testing.T) {
	dir := t.TempDir()

	stale := writeFile(t, dir, "old.mp3.progress", 48*time.Hour)
	fresh := writeFile(t, dir, "new.mp3.progress", time.Minute)
	final := writeFile(t, dir, "done.mp3", 48*time.Hour)

	removed, err := RemoveStaleProgressFiles(context.Background(), dir, ".progress", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale progress file should have been removed")
	}

	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh progress file should have been kept")
	}

	if _, err := os.Stat(final); err != nil {
		t.Error("completed files must never be touched")
	}
}

func TestRemoveStaleProgressFiles_EmptyDir(t *testing.T) {
	removed, err := RemoveStaleProgressFiles(context.Background(), t.TempDir(), ".progress", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
