// Package pidfile writes the server process's pid to disk, the one
// piece of state the process persists outside of memory, so an operator
// has an easy way to find the process to signal later.
package pidfile

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// DefaultPath is used when the configuration doesn't name one.
const DefaultPath = "greld.pid"

// Write creates (or truncates) path and writes the current process's
// pid to it. An empty path writes to DefaultPath.
func Write(path string) error {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "pidfile: creating %s", path)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		return errors.Wrapf(err, "pidfile: writing %s", path)
	}
	return f.Sync()
}

// Remove deletes the pidfile, ignoring a not-exists error (it's fine if
// the file was never written or was already cleaned up).
func Remove(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "pidfile: removing %s", path)
	}
	return nil
}
