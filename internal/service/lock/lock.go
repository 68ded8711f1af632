// Package lock keeps two agent processes on one device from reconciling at
// the same time. Ownership is an advisory lock on a file; the owner's PID is
// written into it so a refused process can say who holds the schedule.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	ps "github.com/mitchellh/go-ps"

	"github.com/oshokin/alarm-agent/internal/logger"
)

// filePermissions of the lock file.
const filePermissions = 0o600

// ErrLocked is returned while another process holds the lock.
var ErrLocked = errors.New("another agent process holds the lock")

// Release drops the lock taken by Acquire.
type Release func()

// Acquire takes the lock at path without waiting or fails with ErrLocked.
// The lock file is never removed; the operating system drops the lock when
// the holder releases it or exits.
func Acquire(ctx context.Context, path string) (Release, error) {
	path = filepath.Clean(path)
	fileLock := flock.New(path, flock.SetPermissions(filePermissions))

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if !locked {
		if pid, alive := Holder(path); alive {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}

		return nil, ErrLocked
	}

	// The PID is informational; platforms with mandatory locks refuse the write.
	if err = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), filePermissions); err != nil {
		logger.DebugKV(ctx, "Failed to record lock holder", "path", path, "error", err)
	}

	return func() {
		_ = os.Truncate(path, 0)

		if err := fileLock.Unlock(); err != nil {
			logger.WarnKV(ctx, "Failed to release lock", "path", path, "error", err)
		}
	}, nil
}

// Holder returns the PID recorded at path and whether that process is still
// running. The record is only a hint: the file lock decides ownership.
func Holder(path string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
