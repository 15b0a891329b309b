package inspect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/speclaunch/internal/history"
)

const shortID = 8

// HistoryEntry is the JSON shape of a launch record.
type HistoryEntry struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Executable    string     `json:"executable"`
	Args          []string   `json:"args"`
	WorkDir       string     `json:"work_dir,omitempty"`
	ExitCode      *int       `json:"exit_code,omitempty"`
	Signal        string     `json:"signal,omitempty"`
	Error         string     `json:"error,omitempty"`
	Version       uint64     `json:"spec_version"`
	NumChunks     uint64     `json:"num_chunks"`
	PayloadDigest string     `json:"payload_digest"`
	Host          string     `json:"host"`
	LauncherPID   int        `json:"launcher_pid"`
	ChildPID      *int       `json:"child_pid,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func entryFromRecord(rec *history.Record) HistoryEntry {
	return HistoryEntry{
		ID:            rec.ID,
		Status:        string(rec.Status),
		Executable:    rec.Executable,
		Args:          rec.Args,
		WorkDir:       rec.WorkDir,
		ExitCode:      rec.ExitCode,
		Signal:        rec.Signal,
		Error:         rec.Error,
		Version:       rec.Version,
		NumChunks:     rec.NumChunks,
		PayloadDigest: rec.PayloadDigest,
		Host:          rec.Host,
		LauncherPID:   rec.LauncherPID,
		ChildPID:      rec.ChildPID,
		StartedAt:     rec.StartedAt,
		CompletedAt:   rec.CompletedAt,
	}
}

// HistoryJSON renders records as a JSON array.
func HistoryJSON(recs []*history.Record) ([]byte, error) {
	entries := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, entryFromRecord(rec))
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// HistoryRecordJSON renders a single record as a JSON object.
func HistoryRecordJSON(rec *history.Record) ([]byte, error) {
	data, err := json.MarshalIndent(entryFromRecord(rec), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history record: %w", err)
	}
	return data, nil
}

// HistoryTable renders one line per record, newest first as given.
func HistoryTable(recs []*history.Record, theme Theme) string {
	if len(recs) == 0 {
		return theme.Dim.Render("no launches recorded") + "\n"
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%s\n", theme.Header.Render(fmt.Sprintf("%-8s  %-20s  %-13s  %4s  %-9s  %s",
		"ID", "STARTED", "STATUS", "EXIT", "DURATION", "COMMAND")))

	for _, rec := range recs {
		id := rec.ID
		if len(id) > shortID {
			id = id[:shortID]
		}
		exit := "-"
		if rec.ExitCode != nil {
			exit = fmt.Sprint(*rec.ExitCode)
		}
		// Pad before styling so escape codes do not break the columns.
		status := theme.status(fmt.Sprintf("%-13s", rec.Status))
		fmt.Fprintf(&out, "%-8s  %-20s  %s  %4s  %-9s  %s\n",
			id,
			rec.StartedAt.UTC().Format(time.RFC3339),
			status,
			exit,
			duration(rec),
			commandLine(rec),
		)
	}
	return out.String()
}

// HistoryDetail renders a single record in full.
func HistoryDetail(rec *history.Record, theme Theme) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%s\n", theme.Title.Render("Launch "+rec.ID))

	row := func(label, value string) {
		fmt.Fprintf(&out, "  %s %s\n", theme.Label.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	row("status", theme.status(string(rec.Status)))
	row("command", commandLine(rec))
	if rec.WorkDir != "" {
		row("work_dir", rec.WorkDir)
	}
	if rec.ExitCode != nil {
		row("exit_code", fmt.Sprint(*rec.ExitCode))
	}
	if rec.Signal != "" {
		row("signal", rec.Signal)
	}
	if rec.Error != "" {
		row("error", rec.Error)
	}
	row("spec", fmt.Sprintf("version %d, %d chunks", rec.Version, rec.NumChunks))
	row("payload", rec.PayloadDigest)
	row("host", fmt.Sprintf("%s (launcher pid %d)", rec.Host, rec.LauncherPID))
	if rec.ChildPID != nil {
		row("child_pid", fmt.Sprint(*rec.ChildPID))
	}
	row("started", rec.StartedAt.UTC().Format(time.RFC3339Nano))
	if rec.CompletedAt != nil {
		row("completed", rec.CompletedAt.UTC().Format(time.RFC3339Nano))
		row("duration", duration(rec))
	}
	return out.String()
}

func duration(rec *history.Record) string {
	if rec.CompletedAt == nil {
		return "-"
	}
	return rec.CompletedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
}

func commandLine(rec *history.Record) string {
	parts := make([]string, 0, len(rec.Args)+1)
	parts = append(parts, rec.Executable)
	for _, a := range rec.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
