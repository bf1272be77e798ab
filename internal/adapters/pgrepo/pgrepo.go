// Package pgrepo persists test records in PostgreSQL. The full record is
// stored as a JSONB document with a few indexed columns pulled out for
// queries from the MES side.
package pgrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

type Repo struct {
	db    *sql.DB
	table string
}

var _ ports.RecordRepository = (*Repo)(nil)

func New(db *sql.DB, table string) *Repo {
	return &Repo{db: db, table: table}
}

// EnsureSchema creates the records table when it does not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		test_id       TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		status        TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		ended_at      TIMESTAMPTZ,
		record        JSONB NOT NULL
	)`, r.table)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Save is idempotent by test id: a repeated identical terminal status is a
// no-op, a different terminal status fails with ConflictError, and a running
// row is upgraded in place. The status check and write share one transaction.
func (r *Repo) Save(ctx context.Context, rec *domain.TestRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM "+r.table+" WHERE test_id = $1 FOR UPDATE",
		string(rec.TestID)).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := r.insert(ctx, tx, rec); err != nil {
			return err
		}
	case err != nil:
		return err
	case domain.TestStatus(existing).Terminal():
		if domain.TestStatus(existing) == rec.Status {
			return tx.Commit()
		}
		return &domain.ConflictError{
			TestID:    rec.TestID,
			Existing:  domain.TestStatus(existing),
			Attempted: rec.Status,
		}
	default:
		if err := r.update(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) insert(ctx context.Context, tx *sql.Tx, rec *domain.TestRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+r.table+" (test_id, serial_number, status, started_at, ended_at, record) VALUES ($1,$2,$3,$4,$5,$6)",
		string(rec.TestID), rec.DUT.SerialNumber, string(rec.Status),
		rec.StartedAt, nullableTime(rec), doc)
	return err
}

func (r *Repo) update(ctx context.Context, tx *sql.Tx, rec *domain.TestRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE "+r.table+" SET status = $2, ended_at = $3, record = $4 WHERE test_id = $1",
		string(rec.TestID), string(rec.Status), nullableTime(rec), doc)
	return err
}

func nullableTime(rec *domain.TestRecord) any {
	if rec.EndedAt.IsZero() {
		return nil
	}
	return rec.EndedAt
}

func (r *Repo) Find(ctx context.Context, id domain.TestID) (*domain.TestRecord, bool, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT record FROM "+r.table+" WHERE test_id = $1", string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec domain.TestRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &rec, true, nil
}
