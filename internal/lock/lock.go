// Package lock serializes mutating wallet runs across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	clierr "github.com/ggonzalez94/btcops/internal/errors"
)

const retryDelay = 100 * time.Millisecond

type WalletLock struct {
	lock *flock.Flock
}

func Open(path string) (*WalletLock, error) {
	if path == "" {
		return nil, clierr.New(clierr.CodeUsage, "lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &WalletLock{lock: flock.New(path)}, nil
}

// Acquire opens the lock at path and takes it.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*WalletLock, error) {
	l, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := l.Acquire(ctx, timeout); err != nil {
		return nil, err
	}
	return l, nil
}

// Acquire waits up to timeout for the lock. A zero timeout tries once.
func (l *WalletLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		locked, err := l.lock.TryLock()
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if !locked {
			return busy(l.lock.Path(), nil)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := l.lock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return busy(l.lock.Path(), err)
		}
		return fmt.Errorf("lock wallet: %w", err)
	}
	if !locked {
		return busy(l.lock.Path(), nil)
	}
	return nil
}

func (l *WalletLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

func busy(path string, cause error) error {
	return clierr.Wrap(clierr.CodeBusy, fmt.Sprintf("another wallet run holds %s", path), cause)
}
