package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded translation.
type Run struct {
	ID           string        `json:"id"`
	Seq          int64         `json:"seq"`
	From         ir.VersionTag `json:"from"`
	To           ir.VersionTag `json:"to"`
	InputDigest  string        `json:"input_digest"`
	OutputDigest string        `json:"output_digest"`
	Added        int           `json:"added"`
	Removed      int           `json:"removed"`
	Modified     int           `json:"modified"`
	Warnings     int           `json:"warnings"`
}

// RecordRun writes a translation of the workspace with inputDigest into
// the workspace with outputDigest, described by rep.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: recording the same
// translation again returns the existing run and writes nothing.
// The run, its steps and its entries are written in one transaction.
func (s *Store) RecordRun(ctx context.Context, inputDigest, outputDigest string, rep *report.Report) (Run, error) {
	id, err := ir.RunID(inputDigest, outputDigest, rep.From, rep.To)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("record run: next seq: %w", err)
	}

	run := Run{
		ID:           id,
		Seq:          seq,
		From:         rep.From,
		To:           rep.To,
		InputDigest:  inputDigest,
		OutputDigest: outputDigest,
		Added:        rep.Added,
		Removed:      rep.Removed,
		Modified:     rep.Modified,
		Warnings:     len(rep.Warnings()),
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, from_version, to_version, input_digest, output_digest, added, removed, modified, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.From.String(),
		run.To.String(),
		run.InputDigest,
		run.OutputDigest,
		run.Added,
		run.Removed,
		run.Modified,
		run.Warnings,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if n == 0 {
		existing, err := scanRun(tx.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
		if err != nil {
			return Run{}, fmt.Errorf("record run: read existing: %w", err)
		}
		return existing, tx.Commit()
	}

	for i, st := range rep.Steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_steps
			(run_id, ord, from_version, to_version, records, touched, added, removed, warnings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, st.From.String(), st.To.String(), st.Records, st.Touched, st.Added, st.Removed, st.Warnings); err != nil {
			return Run{}, fmt.Errorf("record run: step %s: %w", st.Name(), err)
		}
	}
	for i, e := range rep.Entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_entries
			(run_id, ord, step, kind, handle, record_type, field, field_index, old_value, new_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, e.Step, string(e.Kind), string(e.Handle), e.RecordType, e.Field, e.Index, e.Old, e.New); err != nil {
			return Run{}, fmt.Errorf("record run: entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

const selectRun = `
	SELECT id, seq, from_version, to_version, input_digest, output_digest, added, removed, modified, warnings
	FROM runs`

// ListRuns returns every recorded run ordered by seq.
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, selectRun+` ORDER BY seq ASC`)
}

// RunsForInput returns the runs that started from the workspace with the
// given digest, ordered by seq.
func (s *Store) RunsForInput(ctx context.Context, inputDigest string) ([]Run, error) {
	return s.queryRuns(ctx, selectRun+` WHERE input_digest = ? ORDER BY seq ASC`, inputDigest)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadReport rebuilds the report recorded for run id.
func (s *Store) ReadReport(ctx context.Context, id string) (*report.Report, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	rep := report.New(run.From, run.To)
	rep.Added, rep.Removed, rep.Modified = run.Added, run.Removed, run.Modified

	steps, err := s.db.QueryContext(ctx, `
		SELECT from_version, to_version, records, touched, added, removed, warnings
		FROM run_steps WHERE run_id = ? ORDER BY ord ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer steps.Close()
	for steps.Next() {
		var (
			st       report.StepSummary
			from, to string
		)
		if err := steps.Scan(&from, &to, &st.Records, &st.Touched, &st.Added, &st.Removed, &st.Warnings); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if st.From, err = ir.ParseVersion(from); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if st.To, err = ir.ParseVersion(to); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rep.Steps = append(rep.Steps, st)
	}
	if err := steps.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	entries, err := s.db.QueryContext(ctx, `
		SELECT step, kind, handle, record_type, field, field_index, old_value, new_value
		FROM run_entries WHERE run_id = ? ORDER BY ord ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer entries.Close()
	for entries.Next() {
		var (
			e            report.Entry
			kind, handle string
		)
		if err := entries.Scan(&e.Step, &kind, &handle, &e.RecordType, &e.Field, &e.Index, &e.Old, &e.New); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind, e.Handle = report.Kind(kind), ir.Handle(handle)
		rep.Entries = append(rep.Entries, e)
	}
	if err := entries.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return rep, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		from, to string
	)
	err := row.Scan(&run.ID, &run.Seq, &from, &to, &run.InputDigest, &run.OutputDigest,
		&run.Added, &run.Removed, &run.Modified, &run.Warnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.From, err = ir.ParseVersion(from); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	if run.To, err = ir.ParseVersion(to); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	return run, nil
}
