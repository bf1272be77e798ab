package opcuaio

import (
	"context"
	"errors"
	"testing"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

func TestNewValidatesConfig(t *testing.T) {
	var ce *domain.ConfigError

	if _, err := New(Config{}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError for missing endpoint, got %v", err)
	}
	if _, err := New(Config{Endpoint: "opc.tcp://plc:4840"}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError for empty input map, got %v", err)
	}
	if _, err := New(Config{
		Endpoint: "opc.tcp://plc:4840",
		Inputs:   map[int]string{1: ":::not-a-node"},
	}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError for bad node id, got %v", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	d, err := New(Config{
		Endpoint: "opc.tcp://plc:4840",
		Inputs:   map[int]string{1: "ns=2;s=DI.LeftButton"},
		Outputs:  map[int]string{10: "ns=2;s=DO.TowerLamp"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.IsConnected() {
		t.Fatalf("fresh adapter should not report connected")
	}

	var conn *domain.ConnectionError
	if _, err := d.ReadAllInputs(context.Background()); !errors.As(err, &conn) {
		t.Fatalf("expected ConnectionError before connect, got %v", err)
	}
	if err := d.WriteOutput(context.Background(), 10, true); !errors.As(err, &conn) {
		t.Fatalf("expected ConnectionError before connect, got %v", err)
	}
	if err := d.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect on idle adapter: %v", err)
	}
}

func TestUnmappedChannelIsRejected(t *testing.T) {
	d, err := New(Config{
		Endpoint: "opc.tcp://plc:4840",
		Inputs:   map[int]string{1: "ns=2;s=DI.LeftButton"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var op *domain.OperationError
	if _, err := d.ReadInput(context.Background(), 99); !errors.As(err, &op) {
		t.Fatalf("expected OperationError for unmapped input, got %v", err)
	}
	if err := d.WriteOutput(context.Background(), 99, true); !errors.As(err, &op) {
		t.Fatalf("expected OperationError for unmapped output, got %v", err)
	}
}
