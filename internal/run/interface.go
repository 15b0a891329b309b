package run

import (
	"context"

	"github.com/mattjoyce/speclaunch/internal/history"
	"github.com/mattjoyce/speclaunch/internal/job"
	"github.com/mattjoyce/speclaunch/internal/launcher"
)

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/mattjoyce/speclaunch/internal/run Recorder

// Recorder persists launch history. Failures are logged and never change the
// exit code.
type Recorder interface {
	Begin(ctx context.Context, req history.StartRequest) (string, error)
	Complete(ctx context.Context, id string, out history.Outcome) error
}

// JobLauncher runs a decoded job to completion.
type JobLauncher interface {
	Launch(ctx context.Context, spec *job.Spec) (*launcher.Result, error)
}
