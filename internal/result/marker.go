package result

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var ErrRunInProgress = errors.New("another run holds the lock")

// ReadLastVersion returns the last tested version, or "" when no run has
// completed yet.
func ReadLastVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading version marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteLastVersion atomically replaces the marker while holding its lock.
func WriteLastVersion(path, version string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking version marker: %w", err)
	}
	defer lock.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".version-*")
	if err != nil {
		return fmt.Errorf("creating temp marker: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(version); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp marker: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing version marker: %w", err)
	}
	return nil
}

// RunLock keeps two runs from driving the browser at the same time.
type RunLock struct {
	flock *flock.Flock
}

func AcquireRunLock(path string) (*RunLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrRunInProgress)
	}
	return &RunLock{flock: fl}, nil
}

func (l *RunLock) Release() error {
	return l.flock.Unlock()
}
