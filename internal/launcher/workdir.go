package launcher

import "os"

// EnterWorkDir changes the process working directory to dir and returns a
// function that changes it back. An empty dir is a no-op.
//
// The working directory is process-wide; callers must not run anything that
// depends on it concurrently.
func EnterWorkDir(dir string) (restore func() error, err error) {
	if dir == "" {
		return func() error { return nil }, nil
	}

	saved, err := os.Getwd()
	if err != nil {
		return nil, &Error{Op: "getcwd", Err: err}
	}
	if err := os.Chdir(dir); err != nil {
		return nil, &Error{Op: "chdir", Path: dir, Err: unwrapPath(err)}
	}

	return func() error {
		if err := os.Chdir(saved); err != nil {
			return &Error{Op: "chdir", Path: saved, Err: unwrapPath(err)}
		}
		return nil
	}, nil
}
