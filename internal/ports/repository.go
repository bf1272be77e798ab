package ports

import (
	"context"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// RecordRepository persists test records. Save is idempotent by test id:
// re-saving an identical terminal status is a no-op, a conflicting terminal
// status fails with domain.ConflictError.
type RecordRepository interface {
	Save(ctx context.Context, rec *domain.TestRecord) error
	Find(ctx context.Context, id domain.TestID) (*domain.TestRecord, bool, error)
}
