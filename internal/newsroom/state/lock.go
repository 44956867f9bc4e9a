package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// ErrLocked means another run holds the state lock.
var ErrLocked = errors.New("state directory is locked by another run")

// Lock is a held advisory lock on the data directory.
type Lock struct {
	path string
}

type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Lock takes the advisory lock file. A lock older than the stale window is
// removed and taken over; a fresh one yields an error wrapping ErrLocked.
func (s *Store) Lock(ctx context.Context) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := s.Path(LockFile)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			info := lockInfo{PID: os.Getpid(), AcquiredAt: s.now().UTC()}
			encErr := json.NewEncoder(f).Encode(info)
			closeErr := f.Close()
			if err := errors.Join(encErr, closeErr); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", err)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		held, statErr := s.lockHeldSince(path)
		if statErr != nil {
			return nil, statErr
		}
		if s.now().Sub(held) < s.staleLock {
			return nil, fmt.Errorf("%w (since %s)", ErrLocked, held.UTC().Format(time.RFC3339))
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return nil, ErrLocked
}

// lockHeldSince reads the acquisition time from the lock file, falling back
// to its modification time.
func (s *Store) lockHeldSince(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read lock file: %w", err)
	}
	var info lockInfo
	if json.Unmarshal(data, &info) == nil && !info.AcquiredAt.IsZero() {
		return info.AcquiredAt, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat lock file: %w", err)
	}
	return st.ModTime(), nil
}

// Release removes the lock file. It is safe to call on a nil Lock and more
// than once.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
