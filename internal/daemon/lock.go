package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// AcquireLock takes the per-session singleton lock. The returned
// release function unlocks and removes the file. A second daemon
// instance fails here instead of fighting over grabs.
func AcquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("another instance holds %s", path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())

	release := func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		_ = os.Remove(path)
	}
	return release, nil
}
