// Package run wires the launch pipeline together: protocol flags, checksum,
// payload decoding, the optional slot lock, history and the launch itself.
package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mattjoyce/speclaunch/internal/argspec"
	"github.com/mattjoyce/speclaunch/internal/b64"
	"github.com/mattjoyce/speclaunch/internal/history"
	"github.com/mattjoyce/speclaunch/internal/job"
	"github.com/mattjoyce/speclaunch/internal/lock"
	"github.com/mattjoyce/speclaunch/internal/log"
)

// Options configures a Runner. Launcher is required.
type Options struct {
	Policy   argspec.Policy
	Codec    *b64.Codec
	Launcher JobLauncher
	// Recorder is optional; nil disables history.
	Recorder Recorder
	// LockPath, when set, is held from before the launch until the child exits.
	LockPath string
	// UniformFailureCode, when > 0, replaces every launcher-side exit code.
	UniformFailureCode int
	// Stderr receives one diagnostic line per failure. Defaults to os.Stderr.
	Stderr io.Writer
}

// Runner executes one launch per Run call.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Runner {
	if opts.Codec == nil {
		opts.Codec = b64.Std
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{opts: opts, logger: log.WithComponent("run")}
}

// Run decodes argv, launches the job it describes and returns the process
// exit code: the child's status if it ran, otherwise one of the Exit* codes.
func (r *Runner) Run(ctx context.Context, argv []string) int {
	spec, err := argspec.Decode(argv, r.opts.Policy)
	if err != nil {
		return r.fail(r.logger, "argspec", err, ExitUsage)
	}
	if err := spec.VerifyChecksum(); err != nil {
		return r.fail(r.logger, "checksum", err, ExitDataErr)
	}

	js, err := job.FromChunks(r.opts.Codec, spec.Chunks)
	if err != nil {
		return r.fail(r.logger, decodeStage(err), err, ExitDataErr)
	}

	if r.opts.LockPath != "" {
		slot, err := lock.Acquire(r.opts.LockPath)
		if err != nil {
			return r.fail(r.logger, "lock", err, ExitOSErr)
		}
		defer func() {
			if err := slot.Release(); err != nil {
				r.logger.Warn("failed to release slot lock", "path", slot.Path(), "error", err)
			}
		}()
	}

	rec := r.begin(ctx, spec, js)
	rec.logger.Info("launching job",
		"spec_version", spec.Version,
		"chunks", spec.NumChunks,
		"executable", js.Executable,
		"work_dir", js.WorkDir,
	)

	res, err := r.opts.Launcher.Launch(ctx, js)
	if err != nil {
		code := launchExitCode(err)
		r.complete(ctx, rec, history.Outcome{
			Status:   history.StatusLaunchFailed,
			ExitCode: &code,
			Error:    err.Error(),
		})
		return r.fail(rec.logger, launchStage(err), err, code)
	}

	status := history.StatusSucceeded
	if res.ExitCode != 0 {
		status = history.StatusFailed
	}
	r.complete(ctx, rec, history.Outcome{
		Status:   status,
		ExitCode: &res.ExitCode,
		Signal:   res.SignalName(),
		ChildPID: res.PID,
	})
	return res.ExitCode
}

// launchRun identifies one launch in logs and, when recorded, in history.
type launchRun struct {
	id       string
	recorded bool
	logger   *slog.Logger
}

// begin records the start of a launch. Without a recorder, or if recording
// fails, the run still gets an ID for log correlation.
func (r *Runner) begin(ctx context.Context, spec *argspec.Spec, js *job.Spec) launchRun {
	rec := launchRun{id: uuid.NewString()}
	if r.opts.Recorder != nil {
		id, err := r.opts.Recorder.Begin(ctx, history.StartRequest{
			Version:    spec.Version,
			NumChunks:  spec.NumChunks,
			Payload:    js.Payload(),
			Executable: js.Executable,
			Args:       js.Args,
			WorkDir:    js.WorkDir,
		})
		if err != nil {
			r.logger.Warn("failed to record launch start", "error", err)
		} else {
			rec.id, rec.recorded = id, true
		}
	}
	rec.logger = log.WithRun(rec.id).With(slog.String("component", "run"))
	return rec
}

func (r *Runner) complete(ctx context.Context, rec launchRun, out history.Outcome) {
	if !rec.recorded {
		return
	}
	if err := r.opts.Recorder.Complete(ctx, rec.id, out); err != nil {
		rec.logger.Warn("failed to record launch outcome", "error", err)
	}
}

func (r *Runner) fail(logger *slog.Logger, stage string, err error, code int) int {
	fmt.Fprintf(r.opts.Stderr, "launch: %s: %v\n", stage, err)
	logger.Error("launch failed", "stage", stage, "error", err, "exit_code", code)
	if r.opts.UniformFailureCode > 0 {
		return r.opts.UniformFailureCode
	}
	return code
}
