package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/btcops/internal/errors"
)

func mustOpen(t *testing.T, path string) *WalletLock {
	t.Helper()
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return l
}

func TestAcquireRelease(t *testing.T) {
	l := mustOpen(t, filepath.Join(t.TempDir(), "nested", "wallet.lock"))

	if err := l.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := l.Acquire(context.Background(), 0); err != nil {
		t.Fatalf("Acquire with zero timeout failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestSecondHolderIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.lock")
	first := mustOpen(t, path)
	if err := first.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer first.Release()

	second := mustOpen(t, path)
	err := second.Acquire(context.Background(), 250*time.Millisecond)
	if err == nil {
		t.Fatal("expected second holder to time out")
	}
	if code := clierr.ExitCode(err); code != int(clierr.CodeBusy) {
		t.Fatalf("expected busy exit code, got %d", code)
	}

	start := time.Now()
	err = second.Acquire(context.Background(), 0)
	if code := clierr.ExitCode(err); code != int(clierr.CodeBusy) {
		t.Fatalf("expected busy exit code, got %d", code)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero timeout should try once, waited %s", elapsed)
	}
}

func TestWaiterGetsLockAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.lock")
	first := mustOpen(t, path)
	if err := first.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = first.Release()
	}()

	second := mustOpen(t, path)
	if err := second.Acquire(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("waiter did not get the lock: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	if code := clierr.ExitCode(err); code != int(clierr.CodeUsage) {
		t.Fatalf("expected usage exit code, got %d", code)
	}
}

func TestReleaseNil(t *testing.T) {
	var l *WalletLock
	if err := l.Release(); err != nil {
		t.Fatalf("expected nil release to succeed, got %v", err)
	}
}

func TestPackageAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.lock")
	held, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	_, err = Acquire(context.Background(), path, 0)
	if code := clierr.ExitCode(err); code != int(clierr.CodeBusy) {
		t.Fatalf("expected busy exit code, got %d", code)
	}

	if err := held.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}
