// Package launcher runs a decoded job as a child process and reports how it
// ended.
package launcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/speclaunch/internal/job"
	"github.com/mattjoyce/speclaunch/internal/log"
)

// DefaultTerminationGrace is how long a child gets between a forwarded
// SIGTERM or SIGINT and SIGKILL.
const DefaultTerminationGrace = 10 * time.Second

// Result describes a child that ran to completion.
type Result struct {
	PID      int
	ExitCode int
	// Signal is non-zero when the child was killed by a signal. ExitCode is
	// then 128 plus the signal number.
	Signal   syscall.Signal
	Duration time.Duration
}

// SignalName returns the name of the terminating signal, or "" if the child
// exited normally.
func (r *Result) SignalName() string {
	if r.Signal == 0 {
		return ""
	}
	return unix.SignalName(r.Signal)
}

// Launcher starts jobs. The zero value is not usable; use New.
type Launcher struct {
	env            EnvSource
	stdin          io.Reader
	stdout, stderr io.Writer
	forwardSignals bool
	grace          time.Duration
	onStart        func(pid int)
	logger         *slog.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithEnv sets the environment the job inherits.
func WithEnv(src EnvSource) Option {
	return func(l *Launcher) { l.env = src }
}

// WithStdio replaces the child's standard streams.
func WithStdio(in io.Reader, out, errw io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = in, out, errw
	}
}

// WithSignalForwarding toggles relaying of launcher signals to the child.
func WithSignalForwarding(on bool) Option {
	return func(l *Launcher) { l.forwardSignals = on }
}

// WithTerminationGrace sets the delay before SIGKILL. Zero disables the
// escalation.
func WithTerminationGrace(d time.Duration) Option {
	return func(l *Launcher) { l.grace = d }
}

// WithStartHook registers a function called with the child PID as soon as it
// is running.
func WithStartHook(fn func(pid int)) Option {
	return func(l *Launcher) { l.onStart = fn }
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// New returns a Launcher that inherits the process environment and stdio and
// forwards signals.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		env:            OSEnv{},
		stdin:          os.Stdin,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
		forwardSignals: true,
		grace:          DefaultTerminationGrace,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.WithComponent("launcher")
	}
	return l
}

// Argv is the child's argument vector: the executable followed by its args.
func Argv(spec *job.Spec) []string {
	argv := make([]string, 0, len(spec.Args)+1)
	argv = append(argv, spec.Executable)
	return append(argv, spec.Args...)
}

// Launch runs spec and waits for it. The working directory, if any, is entered
// before the executable is resolved against the job's PATH and restored once
// the child is gone. A non-nil error means the child never ran or could not be
// waited for; a child that fails is reported through Result.ExitCode. Failing
// to restore the working directory is logged and does not affect the result.
//
// Cancelling ctx terminates the child the same way a forwarded SIGTERM does.
func (l *Launcher) Launch(ctx context.Context, spec *job.Spec) (*Result, error) {
	restore, err := EnterWorkDir(spec.WorkDir)
	if err != nil {
		return nil, err
	}
	// The child's status stands even if the old directory is gone by now.
	defer func() {
		if rerr := restore(); rerr != nil {
			l.logger.Warn("failed to restore working directory", "error", rerr)
		}
	}()

	argv := Argv(spec)
	env := MergeEnv(l.env.Environ(), spec.Env)
	// Resolved after the chdir so relative paths follow work_dir.
	path, err := lookPath(spec.Executable, env)
	if err != nil {
		return nil, classifyStart(spec.Executable, err)
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Args = argv
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = l.stdin, l.stdout, l.stderr

	l.logger.Debug("starting job", "executable", spec.Executable, "args", len(spec.Args), "work_dir", spec.WorkDir)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, classifyStart(spec.Executable, err)
	}
	pid := cmd.Process.Pid
	if l.onStart != nil {
		l.onStart(pid)
	}
	l.logger.Info("job started", "pid", pid, "executable", spec.Executable)

	done := make(chan struct{})
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		l.supervise(ctx, cmd.Process, done)
	}()

	waitErr := cmd.Wait()
	close(done)
	<-supervised

	res := &Result{PID: pid, Duration: time.Since(started)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &Error{Op: "wait", Path: spec.Executable, Err: waitErr}
		}
	}

	status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	switch {
	case ok && status.Signaled():
		res.Signal = status.Signal()
		res.ExitCode = 128 + int(res.Signal)
	default:
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	l.logger.Info("job exited",
		"pid", pid,
		"exit_code", res.ExitCode,
		"signal", res.SignalName(),
		"duration", res.Duration.String(),
	)
	return res, nil
}
