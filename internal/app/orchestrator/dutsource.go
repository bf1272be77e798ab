package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// FixedDUTs is the no-barcode-reader identity source: model and operator come
// from configuration, serials get a per-station running sequence.
type FixedDUTs struct {
	mu       sync.Mutex
	prefix   string
	model    string
	part     string
	operator string
	seq      uint64
}

var _ ports.DUTProvider = (*FixedDUTs)(nil)

func NewFixedDUTs(serialPrefix, model, partNumber, operator string) *FixedDUTs {
	return &FixedDUTs{prefix: serialPrefix, model: model, part: partNumber, operator: operator}
}

func (f *FixedDUTs) CurrentDUT(context.Context) (domain.DUT, string, error) {
	f.mu.Lock()
	f.seq++
	serial := fmt.Sprintf("%s-%06d", f.prefix, f.seq)
	f.mu.Unlock()
	return domain.DUT{SerialNumber: serial, PartNumber: f.part, Model: f.model}, f.operator, nil
}
