package launcher

import (
	"errors"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// defaultPath is searched when the job environment has no PATH.
const defaultPath = "/bin:/usr/bin"

// lookPath resolves name the way execvpe does, using the PATH from the child
// environment rather than the launcher's. Names containing a slash are not
// searched. An empty PATH entry means the current directory.
func lookPath(name string, env []string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}

	path, ok := envValue(env, "PATH")
	if !ok {
		path = defaultPath
	}

	var denied error
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if !strings.Contains(candidate, "/") {
			candidate = "./" + candidate
		}
		found, err := exec.LookPath(candidate)
		if err == nil {
			return found, nil
		}
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			continue
		}
		if denied == nil {
			denied = err
		}
	}

	if denied != nil {
		var eerr *exec.Error
		if errors.As(denied, &eerr) {
			return "", &exec.Error{Name: name, Err: eerr.Err}
		}
		return "", &exec.Error{Name: name, Err: denied}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// envValue returns the first value of key in env, as getenv does.
func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}
