// Package doctor validates speclaunch configuration and the host paths it
// depends on.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/speclaunch/internal/config"
	"github.com/mattjoyce/speclaunch/internal/storage"
)

var unresolvedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Source   string  `json:"source"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration against the local host.
type Doctor struct {
	cfg     *config.Config
	probeFS func(string) (storage.Filesystem, error)
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, probeFS: storage.ProbeFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true, Source: d.cfg.SourcePath}
	if r.Source == "" {
		r.Source = "<defaults>"
	}

	d.validateLog(r)
	d.validateSpec(r)
	d.validateLaunch(r)
	d.validateState(r)
	d.warnPolicy(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateLog(r *Result) {
	switch d.cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "log", "log.level",
			fmt.Sprintf("unknown level %q (expected debug, info, warn or error)", d.cfg.Log.Level))
	}
	if d.cfg.Log.Format != "json" && d.cfg.Log.Format != "text" {
		d.addError(r, "log", "log.format",
			fmt.Sprintf("unknown format %q (expected json or text)", d.cfg.Log.Format))
	}
}

func (d *Doctor) validateSpec(r *Result) {
	seen := make(map[uint64]bool)
	for i, v := range d.cfg.Spec.AcceptedVersions {
		if seen[v] {
			d.addWarning(r, "spec", fmt.Sprintf("spec.accepted_versions[%d]", i),
				fmt.Sprintf("version %d listed more than once", v))
		}
		seen[v] = true
	}
}

func (d *Doctor) validateLaunch(r *Result) {
	l := d.cfg.Launch
	if l.TerminationGrace < 0 {
		d.addError(r, "launch", "launch.termination_grace",
			fmt.Sprintf("must not be negative (got %s)", l.TerminationGrace))
	}
	if l.TerminationGrace == 0 && l.ForwardSignals {
		d.addWarning(r, "launch", "launch.termination_grace",
			"zero grace kills the job immediately after SIGTERM or SIGINT")
	}
	if l.UniformFailureCode < 0 || l.UniformFailureCode > 255 {
		d.addError(r, "launch", "launch.uniform_failure_code",
			fmt.Sprintf("must be between 0 and 255 (got %d)", l.UniformFailureCode))
	}

	if l.LockPath == "" {
		return
	}
	if !d.resolved(r, "launch.lock_path", l.LockPath) {
		return
	}
	if err := writableParent(l.LockPath); err != nil {
		d.addError(r, "lock", "launch.lock_path", err.Error())
	}
}

func (d *Doctor) validateState(r *Result) {
	s := d.cfg.State
	if s.Retention <= 0 {
		d.addError(r, "state", "state.retention",
			fmt.Sprintf("must be positive (got %s)", s.Retention))
	}
	if !d.cfg.HistoryEnabled() {
		d.addWarning(r, "state", "state.path", "launch history is disabled")
		return
	}
	if !d.resolved(r, "state.path", s.Path) {
		return
	}
	fsys, err := d.probeFS(s.Path)
	if err != nil {
		d.addError(r, "state", "state.path", err.Error())
		return
	}
	if fsys.Network {
		d.addError(r, "state", "state.path",
			fmt.Sprintf("%s is on network filesystem %q; SQLite needs a local filesystem for locking", fsys.Probed, fsys.Type))
		return
	}
	if err := writableParent(s.Path); err != nil {
		d.addError(r, "state", "state.path", err.Error())
	}
}

// warnPolicy flags settings that are valid but weaken launch validation.
func (d *Doctor) warnPolicy(r *Result) {
	spec := d.cfg.Spec
	if !spec.RequireChecksum {
		d.addWarning(r, "spec", "spec.require_checksum",
			"payloads without --spec-sha256sum are accepted")
	}
	if len(spec.AcceptedVersions) > 0 && !spec.RequireVersion {
		d.addWarning(r, "spec", "spec.accepted_versions",
			"launches without --spec-version bypass accepted_versions because require_version is false")
	}
	if c := d.cfg.Launch.UniformFailureCode; c > 0 {
		d.addWarning(r, "launch", "launch.uniform_failure_code",
			fmt.Sprintf("every launcher-side failure exits %d; callers cannot tell stages apart", c))
	}
}

func (d *Doctor) resolved(r *Result, field, value string) bool {
	m := unresolvedVar.FindStringSubmatch(value)
	if m == nil {
		return true
	}
	d.addError(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
	return false
}

// writableParent checks that the nearest existing ancestor directory of path
// accepts new files, and that path itself is writable if it exists.
func writableParent(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}

	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", abs)
		}
		if err := unix.Access(abs, unix.W_OK); err != nil {
			return fmt.Errorf("%s is not writable: %w", abs, err)
		}
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", abs, err)
	}

	dir := filepath.Dir(abs)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
				return fmt.Errorf("cannot create %s: %s is not writable: %w", abs, dir, err)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing parent directory for %s", abs)
		}
		dir = parent
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		fmt.Fprintf(&b, "Configuration valid (%s).\n", r.Source)
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%s, %d warning(s))\n", r.Source, len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%s, %d error(s), %d warning(s))\n",
			r.Source, len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
