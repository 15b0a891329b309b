package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "slots", "launch.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, err := Holder(lockPath)
	if err != nil {
		t.Fatalf("Holder: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d in lock file, got %d", os.Getpid(), pid)
	}
	if l.Path() != lockPath {
		t.Fatalf("Path() = %q, want %q", l.Path(), lockPath)
	}
}

func TestAcquireBusy(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "launch.lock")
	first, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := Acquire(lockPath); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	l, err := Acquire(filepath.Join(t.TempDir(), "launch.lock"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	var nilLock *SlotLock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestAcquireRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Acquire(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHolderMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Holder(filepath.Join(t.TempDir(), "absent.lock")); err == nil {
		t.Fatal("expected error for missing lock file")
	}
}
