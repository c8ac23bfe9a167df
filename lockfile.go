package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/modelpush/modelpush/internal/credfile"
)

// lockFileName guards watch mode. One watcher per data directory is
// enough; two would race each other renaming and updating the same item.
const lockFileName = "watch.lock"

// lockFilePerms leaves the lock file world-readable. It holds only a PID.
const lockFilePerms = 0o644

// acquireWatchLock takes a non-blocking exclusive flock on the lock file,
// recording the holder's PID for diagnostics. The returned release function
// removes the file and drops the lock.
func acquireWatchLock(dataDir string) (release func(), err error) {
	if dataDir == "" {
		return nil, fmt.Errorf("no data directory available for the watch lock")
	}

	if err := os.MkdirAll(dataDir, credfile.DirPerms); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePerms)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock: fails immediately when another watcher
	// holds it, even one in this same process.
	if flockErr := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); flockErr != nil {
		f.Close()

		return nil, fmt.Errorf("another deploy --watch is already running (could not lock %s)", path)
	}

	if err := stampPID(f); err != nil {
		f.Close()

		return nil, err
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// stampPID replaces the lock file's contents with the holder's PID.
func stampPID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		return fmt.Errorf("writing lock file: %w", err)
	}

	return nil
}
