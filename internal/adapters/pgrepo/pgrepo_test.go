package pgrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

var (
	selectQuery = regexp.QuoteMeta("SELECT status FROM test_records WHERE test_id = $1 FOR UPDATE")
	insertQuery = regexp.QuoteMeta("INSERT INTO test_records (test_id, serial_number, status, started_at, ended_at, record) VALUES ($1,$2,$3,$4,$5,$6)")
	updateQuery = regexp.QuoteMeta("UPDATE test_records SET status = $2, ended_at = $3, record = $4 WHERE test_id = $1")
	findQuery   = regexp.QuoteMeta("SELECT record FROM test_records WHERE test_id = $1")
)

func newRecord(id domain.TestID, status domain.TestStatus) *domain.TestRecord {
	rec := domain.NewTestRecordWithID(id, domain.DUT{SerialNumber: "SN-1", Model: "WF-10"}, "op-1")
	if status.Terminal() {
		rec.Finalize(status, "", "")
	}
	return rec
}

func TestSaveInsertsNewRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	rec := newRecord("t-1", domain.StatusRunning)
	mock.ExpectBegin()
	// An empty row set surfaces as sql.ErrNoRows from Scan.
	mock.ExpectQuery(selectQuery).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectExec(insertQuery).
		WithArgs("t-1", "SN-1", "RUNNING", rec.StartedAt, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveIdempotentTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PASSED"))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), newRecord("t-1", domain.StatusPassed)); err != nil {
		t.Fatalf("idempotent save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveConflictingTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PASSED"))
	mock.ExpectRollback()

	err = repo.Save(context.Background(), newRecord("t-1", domain.StatusFailed))
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Existing != domain.StatusPassed || conflict.Attempted != domain.StatusFailed {
		t.Fatalf("conflict should name both statuses, got %+v", conflict)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveUpgradesRunningRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	rec := newRecord("t-1", domain.StatusAborted)
	mock.ExpectBegin()
	mock.ExpectQuery(selectQuery).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("RUNNING"))
	mock.ExpectExec(updateQuery).
		WithArgs("t-1", "ABORTED", rec.EndedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("terminal upgrade: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindUnmarshalsStoredDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	doc := `{"schema_version":1,"test_id":"t-1","dut":{"serial_number":"SN-1"},"status":"PASSED","started_at":"2026-08-23T10:00:00Z"}`
	mock.ExpectQuery(findQuery).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow([]byte(doc)))

	rec, ok, err := repo.Find(context.Background(), "t-1")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if rec.Status != domain.StatusPassed || rec.DUT.SerialNumber != "SN-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindMissingRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := New(db, "test_records")

	mock.ExpectQuery(findQuery).WithArgs("t-404").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	_, ok, err := repo.Find(context.Background(), "t-404")
	if err != nil || ok {
		t.Fatalf("expected not-found without error, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
