package liveness

import (
	"os"
	"time"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Touch creates the file if needed and stamps its mtime with now.
//
// Loop processes call this once per healthy iteration.
func Touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return xerrors.Wrap(err)
	}
	return f.Close()
}

// FresherThan tests whether the file's mtime is younger than maxAge.
//
// A missing file counts as stale, not as an error.
func FresherThan(path string, maxAge time.Duration) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Wrap(err)
	}
	return time.Since(info.ModTime()) < maxAge, nil
}
