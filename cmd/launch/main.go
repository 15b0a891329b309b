// Command launch decodes a job from its --spec-* flags, runs it and exits
// with the job's status.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/mattjoyce/speclaunch/internal/config"
	"github.com/mattjoyce/speclaunch/internal/history"
	"github.com/mattjoyce/speclaunch/internal/launcher"
	"github.com/mattjoyce/speclaunch/internal/log"
	"github.com/mattjoyce/speclaunch/internal/run"
	"github.com/mattjoyce/speclaunch/internal/storage"
)

func main() {
	os.Exit(launch(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func launch(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.LoadDiscovered()
	if err != nil {
		fmt.Fprintf(stderr, "launch: config: %v\n", err)
		return run.ExitConfig
	}

	log.Setup(cfg.Log.Level, cfg.Log.Format, stderr)
	logger := log.WithComponent("main")
	if fp, err := cfg.Fingerprint(); err == nil && fp != "" {
		logger.Debug("configuration loaded", "source", cfg.SourcePath, "blake3", fp)
	}

	opts := run.Options{
		Policy: cfg.Spec.Policy(),
		Launcher: launcher.New(
			launcher.WithStdio(stdin, stdout, stderr),
			launcher.WithSignalForwarding(cfg.Launch.ForwardSignals),
			launcher.WithTerminationGrace(cfg.Launch.TerminationGrace),
		),
		LockPath:           cfg.Launch.LockPath,
		UniformFailureCode: cfg.Launch.UniformFailureCode,
		Stderr:             stderr,
	}

	if cfg.HistoryEnabled() {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Warn("launch history unavailable", "path", cfg.State.Path, "error", err)
		} else {
			defer closeDB(db)
			opts.Recorder = history.New(db)
		}
	}

	return run.New(opts).Run(ctx, argv)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Warn("failed to close history database", "error", err)
	}
}
