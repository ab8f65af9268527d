package lock

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
)

func TestFileLocker_ExclusiveAcrossHolders(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileLocker(dir)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "transcript_worker")
	if err != nil || !ok {
		t.Fatalf("TryAcquire = %v, %v", ok, err)
	}
	if ok, _ := a.TryAcquire(ctx, "transcript_worker"); ok {
		t.Error("second acquire from the same locker should fail")
	}

	// A separate flock handle stands in for another process.
	other := flock.New(a.Path("transcript_worker"))
	if got, _ := other.TryLock(); got {
		other.Unlock()
		t.Fatal("another handle acquired a held lock")
	}

	if err := a.Release(ctx, "transcript_worker"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, err := other.TryLock(); err != nil || !got {
		t.Fatalf("TryLock after release = %v, %v", got, err)
	}
	other.Unlock()
}

func TestFileLocker_ReleaseUnheldIsNoop(t *testing.T) {
	l, _ := NewFileLocker(t.TempDir())
	if err := l.Release(context.Background(), "never"); err != nil {
		t.Errorf("Release = %v", err)
	}
}

func TestFileLocker_PathSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	l, _ := NewFileLocker(dir)
	if got, want := l.Path("../evil key"), filepath.Join(dir, ".._evil_key.lock"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestNoop(t *testing.T) {
	var l Locker = Noop{}
	if ok, err := l.TryAcquire(context.Background(), "k"); !ok || err != nil {
		t.Errorf("Noop.TryAcquire = %v, %v", ok, err)
	}
}
