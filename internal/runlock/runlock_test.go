package runlock_test

import (
	"errors"
	"testing"

	"chronicle/internal/runlock"
)

func TestAcquireIsExclusive(t *testing.T) {
	dir := t.TempDir()

	first := runlock.New(dir)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	second := runlock.New(dir)
	err := second.Acquire()
	if !errors.Is(err, runlock.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	lock := runlock.New(dir)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	other := runlock.New(dir)
	if err := other.Acquire(); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	defer other.Release()
}
