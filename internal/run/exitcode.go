package run

import (
	"errors"

	"github.com/mattjoyce/speclaunch/internal/job"
	"github.com/mattjoyce/speclaunch/internal/launcher"
)

// Launcher-side exit codes. A child that ran reports its own status instead.
const (
	ExitUsage         = 64  // EX_USAGE: protocol flags missing or inconsistent
	ExitDataErr       = 65  // EX_DATAERR: checksum, base64 or payload rejected
	ExitOSErr         = 71  // EX_OSERR: chdir, fork, wait or slot lock failed
	ExitConfig        = 78  // EX_CONFIG: configuration could not be loaded
	ExitNotExecutable = 126 // executable found but could not be run
	ExitNotFound      = 127 // executable not found
)

// launchExitCode maps a launcher error to an exit code.
func launchExitCode(err error) int {
	var lerr *launcher.Error
	if !errors.As(err, &lerr) {
		return ExitOSErr
	}
	switch {
	case lerr.NotFound():
		return ExitNotFound
	case lerr.NotExecutable():
		return ExitNotExecutable
	default:
		return ExitOSErr
	}
}

// launchStage names the failing call for the diagnostic line.
func launchStage(err error) string {
	var lerr *launcher.Error
	if errors.As(err, &lerr) {
		return lerr.Op
	}
	return "launch"
}

// decodeStage tells base64 failures apart from payload document failures.
func decodeStage(err error) string {
	if errors.Is(err, job.ErrDecode) {
		return "base64"
	}
	return "payload"
}
