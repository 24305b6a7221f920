//go:build !darwin && !linux

package storage

import (
	"errors"
	"runtime"
)

var errNoFSDetection = errors.New("filesystem type is not detected on " + runtime.GOOS)

func detectFilesystemType(string) (string, error) {
	return "", errNoFSDetection
}
