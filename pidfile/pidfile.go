// Package pidfile enforces a single running daemon per pidfile path.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when the pidfile names a live process.
var ErrAlreadyRunning = errors.New("pidfile: daemon already running")

// File is an acquired pidfile.
type File struct {
	path string
	pid  int
}

// Acquire writes the current pid to path. A file naming a dead process is
// replaced; one naming a live process other than ours fails with
// ErrAlreadyRunning.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("pidfile: %w", err)
	}
	self := os.Getpid()

	for range 2 {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", self)
			cerr := f.Close()
			if werr = errors.Join(werr, cerr); werr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("pidfile: write: %w", werr)
			}
			return &File{path: path, pid: self}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("pidfile: %w", err)
		}

		pid, rerr := Read(path)
		if rerr == nil && pid != self && alive(pid) {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("pidfile: remove stale: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s changed while acquiring", ErrAlreadyRunning, path)
}

// Path returns the pidfile location.
func (f *File) Path() string { return f.path }

// Release removes the pidfile if it still names this process.
func (f *File) Release() error {
	pid, err := Read(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != f.pid {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pidfile: %w", err)
	}
	return nil
}

// Read returns the pid recorded at path.
func Read(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pidfile: %s: invalid pid %q", path, strings.TrimSpace(string(b)))
	}
	return pid, nil
}

// IsRunning reports whether path names a live process. It is the check a
// watchdog runs.
func IsRunning(path string) bool {
	pid, err := Read(path)
	return err == nil && alive(pid)
}

func alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
