package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists launch records in the launch_log table.
type Store struct {
	db   *sql.DB
	now  func() time.Time
	host string
	pid  int
}

func New(db *sql.DB) *Store {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Store{
		db:   db,
		now:  func() time.Time { return time.Now().UTC() },
		host: host,
		pid:  os.Getpid(),
	}
}

// Begin inserts a running record and returns its ID.
func (s *Store) Begin(ctx context.Context, req StartRequest) (string, error) {
	if req.Executable == "" {
		return "", fmt.Errorf("executable is empty")
	}

	args := req.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}

	var workDir any
	if req.WorkDir != "" {
		workDir = req.WorkDir
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO launch_log(
  id, spec_version, num_chunks, payload_digest, executable, args, work_dir,
  status, host, launcher_pid, started_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, int64(req.Version), int64(req.NumChunks), Digest(req.Payload), req.Executable, string(argsJSON), workDir,
		StatusRunning, s.host, s.pid, s.now().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert launch record: %w", err)
	}
	return id, nil
}

// Complete stores the outcome of a launch started with Begin.
func (s *Store) Complete(ctx context.Context, id string, out Outcome) error {
	var exitCode, childPID, signal, lastErr any
	if out.ExitCode != nil {
		exitCode = *out.ExitCode
	}
	if out.ChildPID > 0 {
		childPID = out.ChildPID
	}
	if out.Signal != "" {
		signal = out.Signal
	}
	if out.Error != "" {
		lastErr = out.Error
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE launch_log
SET status = ?, exit_code = ?, signal = ?, child_pid = ?, error = ?, completed_at = ?
WHERE id = ?;
`, out.Status, exitCode, signal, childPID, lastErr, s.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("complete launch record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete launch record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

const selectColumns = `
  id, spec_version, num_chunks, payload_digest, executable, args, work_dir, status,
  exit_code, signal, error, host, launcher_pid, child_pid, started_at, completed_at`

// Get returns one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+selectColumns+` FROM launch_log WHERE id = ?;`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get launch record: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT`+selectColumns+`
FROM launch_log
ORDER BY started_at DESC, rowid DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list launch records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list launch records: %w", err)
	}
	return out, nil
}

// Prune deletes completed records that started before now-olderThan. Running
// records are kept. It returns the number of rows deleted.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", olderThan)
	}
	cutoff := s.now().Add(-olderThan).Format(timeLayout)

	res, err := s.db.ExecContext(ctx, `
DELETE FROM launch_log
WHERE started_at < ? AND status != ?;
`, cutoff, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("prune launch records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune launch records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r            Record
		version      int64
		numChunks    int64
		argsJSON     string
		workDir      sql.NullString
		statusS      string
		exitCode     sql.NullInt64
		signal       sql.NullString
		lastErr      sql.NullString
		childPID     sql.NullInt64
		startedAtS   string
		completedAtS sql.NullString
	)
	err := sc.Scan(
		&r.ID, &version, &numChunks, &r.PayloadDigest, &r.Executable, &argsJSON, &workDir, &statusS,
		&exitCode, &signal, &lastErr, &r.Host, &r.LauncherPID, &childPID, &startedAtS, &completedAtS,
	)
	if err != nil {
		return nil, err
	}

	r.Version = uint64(version)
	r.NumChunks = uint64(numChunks)
	r.Status = Status(statusS)
	if err := json.Unmarshal([]byte(argsJSON), &r.Args); err != nil {
		return nil, fmt.Errorf("decode args of %s: %w", r.ID, err)
	}
	if workDir.Valid {
		r.WorkDir = workDir.String
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		r.ExitCode = &code
	}
	if signal.Valid {
		r.Signal = signal.String
	}
	if lastErr.Valid {
		r.Error = lastErr.String
	}
	if childPID.Valid {
		pid := int(childPID.Int64)
		r.ChildPID = &pid
	}
	if t, err := time.Parse(timeLayout, startedAtS); err == nil {
		r.StartedAt = t
	}
	if completedAtS.Valid {
		if t, err := time.Parse(timeLayout, completedAtS.String); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}
