package ports

import (
	"context"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// ResultPublisher reports test progress to the neighboring inspection
// station. The station is a client only; it never accepts commands back.
type ResultPublisher interface {
	PublishStart(ctx context.Context, serial string) error
	PublishComplete(ctx context.Context, rec *domain.TestRecord) error
	Close() error
}
