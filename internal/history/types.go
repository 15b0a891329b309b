package history

import (
	"errors"
	"time"
)

type Status string

const (
	StatusRunning      Status = "running"
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
	StatusLaunchFailed Status = "launch_failed"
)

// Record is one launch as stored in launch_log.
type Record struct {
	ID            string
	Version       uint64
	NumChunks     uint64
	PayloadDigest string
	Executable    string
	Args          []string
	WorkDir       string
	Status        Status
	ExitCode      *int
	Signal        string
	Error         string
	Host          string
	LauncherPID   int
	ChildPID      *int
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// StartRequest carries what is known about a launch before the child runs.
type StartRequest struct {
	Version    uint64
	NumChunks  uint64
	Payload    []byte
	Executable string
	Args       []string
	WorkDir    string
}

// Outcome is how a launch ended.
type Outcome struct {
	Status   Status
	ExitCode *int
	Signal   string
	ChildPID int
	Error    string
}

var ErrRecordNotFound = errors.New("launch record not found")
