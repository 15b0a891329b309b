//go:build !darwin && !linux

package storage

import (
	"errors"
	"fmt"
	"runtime"
)

func detectFilesystemType(string) (string, error) {
	return "", fmt.Errorf("filesystem detection on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}
