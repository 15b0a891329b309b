// Package inspect decodes launcher flags without launching anything and
// renders what it found, along with launch history listings.
package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mattjoyce/speclaunch/internal/argspec"
	"github.com/mattjoyce/speclaunch/internal/b64"
	"github.com/mattjoyce/speclaunch/internal/history"
	"github.com/mattjoyce/speclaunch/internal/job"
	"github.com/mattjoyce/speclaunch/internal/launcher"
)

const redacted = "<redacted>"

// Report is the structured JSON representation of an inspection.
type Report struct {
	Valid bool `json:"valid"`
	// Stage and Error name the first stage that failed.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	Spec *SpecInfo `json:"spec,omitempty"`
	Job  *JobInfo  `json:"job,omitempty"`
}

// SpecInfo describes the protocol flags.
type SpecInfo struct {
	Version       uint64 `json:"version"`
	NumChunks     uint64 `json:"num_chunks"`
	ChunkLengths  []int  `json:"chunk_lengths"`
	Checksum      string `json:"checksum,omitempty"`
	ChecksumOK    *bool  `json:"checksum_ok,omitempty"`
	PayloadBytes  int    `json:"payload_bytes"`
	PayloadDigest string `json:"payload_digest,omitempty"`
}

// JobInfo describes the decoded job.
type JobInfo struct {
	Executable string            `json:"executable"`
	Argv       []string          `json:"argv"`
	Env        map[string]string `json:"env"`
	WorkDir    string            `json:"work_dir,omitempty"`
}

// Options controls Build.
type Options struct {
	Policy argspec.Policy
	// ShowEnv includes env values; otherwise only keys are shown.
	ShowEnv bool
}

// Build runs the decoding stages of a launch against argv. A stage failure
// is reported in the Report, not as an error.
func Build(argv []string, opts Options) *Report {
	r := &Report{}

	spec, err := argspec.Decode(argv, opts.Policy)
	if err != nil {
		return r.fail("argspec", err)
	}

	info := &SpecInfo{
		Version:   spec.Version,
		NumChunks: spec.NumChunks,
		Checksum:  spec.SHA256Sum,
	}
	for _, c := range spec.Chunks {
		info.ChunkLengths = append(info.ChunkLengths, len(c))
	}
	r.Spec = info

	if spec.HasChecksum() {
		err := spec.VerifyChecksum()
		ok := err == nil
		info.ChecksumOK = &ok
		if err != nil {
			return r.fail("checksum", err)
		}
	}

	js, err := job.FromChunks(b64.Std, spec.Chunks)
	if err != nil {
		if errors.Is(err, job.ErrDecode) {
			return r.fail("base64", err)
		}
		return r.fail("payload", err)
	}
	info.PayloadBytes = len(js.Payload())
	info.PayloadDigest = history.Digest(js.Payload())

	env := make(map[string]string, len(js.Env))
	for k, v := range js.Env {
		if !opts.ShowEnv {
			v = redacted
		}
		env[k] = v
	}
	r.Job = &JobInfo{
		Executable: js.Executable,
		Argv:       launcher.Argv(js),
		Env:        env,
		WorkDir:    js.WorkDir,
	}
	r.Valid = true
	return r
}

func (r *Report) fail(stage string, err error) *Report {
	r.Stage = stage
	r.Error = err.Error()
	return r
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text renders a terminal-friendly report.
func (r *Report) Text(theme Theme) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%s\n", theme.Title.Render("Launch Inspection"))

	if r.Valid {
		fmt.Fprintf(&out, "%s %s\n", theme.Label.Render("Result:"), theme.status("ok"))
	} else {
		fmt.Fprintf(&out, "%s %s at %s: %s\n", theme.Label.Render("Result:"), theme.status("failed"), r.Stage, r.Error)
	}

	if s := r.Spec; s != nil {
		fmt.Fprintf(&out, "\n%s\n", theme.Header.Render("Spec"))
		fmt.Fprintf(&out, "  %s %d\n", theme.Label.Render("version:"), s.Version)
		fmt.Fprintf(&out, "  %s %d %s\n", theme.Label.Render("chunks:"), s.NumChunks, theme.Dim.Render(fmt.Sprint(s.ChunkLengths)))
		if s.Checksum != "" {
			state := "unverified"
			if s.ChecksumOK != nil && *s.ChecksumOK {
				state = "ok"
			} else if s.ChecksumOK != nil {
				state = "mismatch"
			}
			fmt.Fprintf(&out, "  %s %s (%s)\n", theme.Label.Render("sha256:"), s.Checksum, state)
		}
		if s.PayloadDigest != "" {
			fmt.Fprintf(&out, "  %s %d bytes, blake3 %s\n", theme.Label.Render("payload:"), s.PayloadBytes, s.PayloadDigest)
		}
	}

	if j := r.Job; j != nil {
		fmt.Fprintf(&out, "\n%s\n", theme.Header.Render("Job"))
		fmt.Fprintf(&out, "  %s %s\n", theme.Label.Render("executable:"), j.Executable)
		fmt.Fprintf(&out, "  %s %q\n", theme.Label.Render("argv:"), j.Argv)
		workDir := j.WorkDir
		if workDir == "" {
			workDir = theme.Dim.Render("(inherit)")
		}
		fmt.Fprintf(&out, "  %s %s\n", theme.Label.Render("work_dir:"), workDir)
		fmt.Fprintf(&out, "  %s %d\n", theme.Label.Render("env:"), len(j.Env))

		keys := make([]string, 0, len(j.Env))
		for k := range j.Env {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&out, "    %s=%s\n", k, j.Env[k])
		}
	}
	return out.String()
}
