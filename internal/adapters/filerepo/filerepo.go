// Package filerepo persists test records in an append-only journal. Each
// save appends a full snapshot of the record; the newest entry per test id
// wins, so reopening rebuilds the index by scanning forward.
package filerepo

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

const entryHeaderLen = 12

// Repo is a durable RecordRepository backed by a single journal file.
// Entry format: [8 bytes seq][4 bytes len][len bytes json].
type Repo struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *bufio.Writer
	nextSeq uint64
	index   map[domain.TestID]*domain.TestRecord
}

var _ ports.RecordRepository = (*Repo)(nil)

func New(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "records.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	r := &Repo{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 1<<16),
		index:  map[domain.TestID]*domain.TestRecord{},
	}
	if err := r.scanExisting(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := r.file.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// scanExisting replays the journal, keeping the last snapshot per test id.
// A torn tail from a crash mid-append is truncated away.
func (r *Repo) scanExisting() error {
	stat, err := os.Stat(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err != nil || stat.Size() == 0 {
		return nil
	}

	rf, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var offset int64

	for {
		var hdr [entryHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return r.file.Truncate(offset)
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		seq := binary.BigEndian.Uint64(hdr[0:8])
		length := binary.BigEndian.Uint32(hdr[8:12])

		body := make([]byte, length)
		if _, err := io.ReadFull(reader, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return r.file.Truncate(offset)
			}
			return fmt.Errorf("journal scan body: %w", err)
		}
		offset += entryHeaderLen + int64(length)

		var rec domain.TestRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("journal entry %d: %w", seq, err)
		}
		r.index[rec.TestID] = &rec
		if seq > r.nextSeq {
			r.nextSeq = seq
		}
	}
	return r.file.Truncate(offset)
}

// Save appends a snapshot. Re-saving the same terminal status is a no-op;
// a different terminal status for a known id fails with ConflictError.
func (r *Repo) Save(_ context.Context, rec *domain.TestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.index[rec.TestID]; ok && existing.Status.Terminal() {
		if existing.Status == rec.Status {
			return nil
		}
		return &domain.ConflictError{
			TestID:    rec.TestID,
			Existing:  existing.Status,
			Attempted: rec.Status,
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	seq := r.nextSeq + 1

	var hdr [entryHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], seq)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := r.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := r.writer.Write(b); err != nil {
		return err
	}
	if err := r.writer.Flush(); err != nil {
		return err
	}
	// Terminal records are the station's system of record; sync them through.
	if rec.Status.Terminal() {
		if err := r.file.Sync(); err != nil {
			return err
		}
	}

	r.nextSeq = seq
	r.index[rec.TestID] = rec.Clone()
	return nil
}

func (r *Repo) Find(_ context.Context, id domain.TestID) (*domain.TestRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.index[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// Count reports how many distinct tests the journal holds.
func (r *Repo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Flush(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
