package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem types on which SQLite file locking cannot be trusted.
var networkFilesystems = map[string]struct{}{
	"9p":     {},
	"afpfs":  {},
	"ceph":   {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// Filesystem describes the filesystem that holds, or would hold, a path.
type Filesystem struct {
	// Probed is the nearest existing ancestor of the requested path.
	Probed  string
	Type    string
	Network bool
}

// ProbeFilesystem inspects the filesystem under path. The path itself does
// not need to exist yet.
func ProbeFilesystem(path string) (Filesystem, error) {
	return probeFilesystem(path, detectFilesystemType)
}

// CheckLocalFilesystem returns an error if path is on a network filesystem.
func CheckLocalFilesystem(path string) error {
	return checkLocalFilesystem(path, detectFilesystemType)
}

func probeFilesystem(path string, detect func(string) (string, error)) (Filesystem, error) {
	if path == "" {
		return Filesystem{}, errors.New("sqlite path is empty")
	}

	probed, err := nearestExistingPath(path)
	if err != nil {
		return Filesystem{}, fmt.Errorf("resolve database path %q: %w", path, err)
	}
	fsType, err := detect(probed)
	if err != nil {
		return Filesystem{}, fmt.Errorf("detect filesystem for %q: %w", probed, err)
	}
	return Filesystem{Probed: probed, Type: fsType, Network: isNetworkFilesystem(fsType)}, nil
}

func checkLocalFilesystem(path string, detect func(string) (string, error)) error {
	fsys, err := probeFilesystem(path, detect)
	if err != nil {
		return err
	}
	if fsys.Network {
		return fmt.Errorf(
			"database path %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Set state.path (or SPECLAUNCH_STATE_PATH) to a local file",
			path, fsys.Type,
		)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for {
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return candidate, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return found
}
