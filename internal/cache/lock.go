package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDrainLocked indicates another process is draining this tenant's queue.
var ErrDrainLocked = errors.New("refresh queue is being drained by another process")

const drainLockName = "drain.lock"

type drainLock struct {
	file *os.File
}

func acquireDrainLock(dir string) (*drainLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(dir, drainLockName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open drain lock: %w", err)
	}

	if err := lockFileExclusiveNonBlocking(lockFile); err != nil {
		lockFile.Close()
		if isWouldBlockError(err) {
			return nil, ErrDrainLocked
		}
		return nil, fmt.Errorf("failed to acquire drain lock: %w", err)
	}
	return &drainLock{file: lockFile}, nil
}

func (l *drainLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
