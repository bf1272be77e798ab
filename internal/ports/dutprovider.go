package ports

import (
	"context"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// DUTProvider supplies the identity of the unit currently fixtured on the
// bench plus the operator id, read once per accepted start signal.
type DUTProvider interface {
	CurrentDUT(ctx context.Context) (domain.DUT, string, error)
}
