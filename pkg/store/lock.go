package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked is returned when another process already holds the store.
var ErrLocked = errors.New("store is locked by another process")

// processLock is an exclusive lease file held for the process lifetime.
// Creation with O_EXCL is the atomicity guarantee; the file's contents exist
// only to tell the operator who holds it.
type processLock struct {
	path string
}

type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func acquireLock(path string) (*processLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil {
				var info lockInfo
				if json.Unmarshal(data, &info) == nil {
					holder = fmt.Sprintf("pid %d since %s", info.PID, info.AcquiredAt.Format(time.RFC3339))
				}
			}
			return nil, fmt.Errorf("%w (%s, lock file %s)", ErrLocked, holder, path)
		}
		return nil, fmt.Errorf("store: create lock file: %w", err)
	}

	info := lockInfo{
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	}
	if err := json.NewEncoder(file).Encode(&info); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("store: write lock file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("store: close lock file: %w", err)
	}

	return &processLock{path: path}, nil
}

func (l *processLock) release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove lock file: %w", err)
	}
	return nil
}
