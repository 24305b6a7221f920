//go:build !unix

package lock

import (
	"errors"
	"os"
)

var errWouldBlock = errors.New("lock held")

// Without flock the PID file is advisory only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
