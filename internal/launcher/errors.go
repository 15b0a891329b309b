package launcher

import (
	"errors"
	"io/fs"
	"os/exec"
	"syscall"
)

// Error is a launch failure that never reached a running child, or lost track
// of one. Op names the failing call: "chdir", "fork", "exec" or "wait".
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports whether the executable could not be located.
func (e *Error) NotFound() bool {
	return e.Op == "exec" && (errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist))
}

// NotExecutable reports whether the executable exists but could not be run.
func (e *Error) NotExecutable() bool {
	return e.Op == "exec" && !e.NotFound()
}

// unwrapPath strips the *fs.PathError layer so the message names the path once.
func unwrapPath(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}

// classifyStart turns an exec.Cmd.Start error into an *Error. Errors that
// describe the executable itself are exec failures; anything else happened
// while creating the process.
func classifyStart(path string, err error) *Error {
	var eerr *exec.Error
	if errors.As(err, &eerr) {
		return &Error{Op: "exec", Path: eerr.Name, Err: eerr.Err}
	}

	inner := unwrapPath(err)
	switch {
	case errors.Is(inner, fs.ErrNotExist),
		errors.Is(inner, fs.ErrPermission),
		errors.Is(inner, syscall.ENOEXEC),
		errors.Is(inner, syscall.EISDIR),
		errors.Is(inner, syscall.ENOTDIR),
		errors.Is(inner, syscall.ETXTBSY):
		return &Error{Op: "exec", Path: path, Err: inner}
	default:
		return &Error{Op: "fork", Path: path, Err: inner}
	}
}
