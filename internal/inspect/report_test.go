package inspect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/speclaunch/internal/argspec"
	"github.com/mattjoyce/speclaunch/internal/b64"
	"github.com/mattjoyce/speclaunch/internal/history"
)

func inspectArgv(payload string, extra ...string) []string {
	enc := b64.Std.Encode([]byte(payload))
	half := len(enc) / 2
	argv := []string{
		"launch",
		"--spec-version=1",
		"--spec-num-chunks=2",
		"--spec-chunk-1=" + enc[half:],
		"--spec-chunk-0=" + enc[:half],
	}
	return append(argv, extra...)
}

func defaultOptions() Options {
	return Options{Policy: argspec.DefaultPolicy()}
}

const samplePayload = `{"executable":"/bin/echo","args":["hello","big world"],"env":{"TOKEN":"s3cret","A":"1"},"work_dir":"/srv"}`

func TestBuildValid(t *testing.T) {
	r := Build(inspectArgv(samplePayload), defaultOptions())

	require.True(t, r.Valid, r.Error)
	assert.Empty(t, r.Stage)
	require.NotNil(t, r.Spec)
	assert.Equal(t, uint64(1), r.Spec.Version)
	assert.Equal(t, uint64(2), r.Spec.NumChunks)
	assert.Len(t, r.Spec.ChunkLengths, 2)
	assert.Nil(t, r.Spec.ChecksumOK)
	assert.Equal(t, len(samplePayload), r.Spec.PayloadBytes)
	assert.Equal(t, history.Digest([]byte(samplePayload)), r.Spec.PayloadDigest)

	require.NotNil(t, r.Job)
	assert.Equal(t, "/bin/echo", r.Job.Executable)
	assert.Equal(t, []string{"/bin/echo", "hello", "big world"}, r.Job.Argv)
	assert.Equal(t, "/srv", r.Job.WorkDir)
	assert.Equal(t, map[string]string{"TOKEN": redacted, "A": redacted}, r.Job.Env)
}

func TestBuildShowEnv(t *testing.T) {
	opts := defaultOptions()
	opts.ShowEnv = true
	r := Build(inspectArgv(samplePayload), opts)
	require.True(t, r.Valid)
	assert.Equal(t, "s3cret", r.Job.Env["TOKEN"])
}

func TestBuildChecksum(t *testing.T) {
	sum := sha256.Sum256([]byte(b64.Std.Encode([]byte(samplePayload))))
	good := hex.EncodeToString(sum[:])

	r := Build(inspectArgv(samplePayload, "--spec-sha256sum="+good), defaultOptions())
	require.True(t, r.Valid)
	require.NotNil(t, r.Spec.ChecksumOK)
	assert.True(t, *r.Spec.ChecksumOK)

	bad := Build(inspectArgv(samplePayload, "--spec-sha256sum="+good[1:]+"0"), defaultOptions())
	assert.False(t, bad.Valid)
	assert.Equal(t, "checksum", bad.Stage)
	require.NotNil(t, bad.Spec.ChecksumOK)
	assert.False(t, *bad.Spec.ChecksumOK)
	assert.Nil(t, bad.Job)
}

func TestBuildFailureStages(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		stage string
	}{
		{
			name:  "no flags",
			argv:  []string{"launch"},
			stage: "argspec",
		},
		{
			name:  "bad base64",
			argv:  []string{"launch", "--spec-version=1", "--spec-num-chunks=1", "--spec-chunk-0=e30"},
			stage: "base64",
		},
		{
			name:  "payload not an object",
			argv:  inspectArgv(`[1,2,3]`),
			stage: "payload",
		},
		{
			name:  "payload missing executable",
			argv:  inspectArgv(`{"args":[],"env":{}}`),
			stage: "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build(tt.argv, defaultOptions())
			assert.False(t, r.Valid)
			assert.Equal(t, tt.stage, r.Stage)
			assert.NotEmpty(t, r.Error)
			assert.Nil(t, r.Job)
		})
	}
}

func TestReportJSON(t *testing.T) {
	r := Build(inspectArgv(samplePayload), defaultOptions())
	data, err := r.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["valid"])
	assert.NotContains(t, decoded, "stage")

	jobInfo, ok := decoded["job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/bin/echo", jobInfo["executable"])
	assert.NotContains(t, string(data), "s3cret")
}

func TestReportText(t *testing.T) {
	text := Build(inspectArgv(samplePayload), defaultOptions()).Text(PlainTheme())

	assert.Contains(t, text, "Launch Inspection")
	assert.Contains(t, text, "Result: ok")
	assert.Contains(t, text, "version: 1")
	assert.Contains(t, text, "executable: /bin/echo")
	assert.Contains(t, text, `argv: ["/bin/echo" "hello" "big world"]`)
	assert.Contains(t, text, "work_dir: /srv")
	assert.Contains(t, text, "    A="+redacted+"\n    TOKEN="+redacted)
	assert.NotContains(t, text, "\t")
}

func TestReportTextFailure(t *testing.T) {
	text := Build([]string{"launch", "--spec-version=1"}, defaultOptions()).Text(PlainTheme())
	assert.Contains(t, text, "Result: failed at argspec: ")
	assert.NotContains(t, text, "Job")
}

func TestReportTextInheritedWorkDir(t *testing.T) {
	text := Build(inspectArgv(`{"executable":"true","args":[],"env":{}}`), defaultOptions()).Text(PlainTheme())
	assert.Contains(t, text, "work_dir: (inherit)")
	assert.Contains(t, text, fmt.Sprintf("env: %d", 0))
}
