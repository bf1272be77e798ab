package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	eoltester "github.com/Soochol/WF-EOL-TESTER-sub009"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/diomon"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/app/workflow"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
)

// Runs the station against simulated hardware with a programmatic config.
func main() {
	cfg := &eoltester.Config{
		Station: eoltester.StationConfig{SerialPrefix: "WF", Model: "WF-10", Operator: "demo"},
		Monitor: diomon.Config{
			Channels: []diomon.ChannelConfig{
				{Channel: 1, Role: diomon.RoleLeftStartButton},
				{Channel: 2, Role: diomon.RoleRightStartButton},
			},
		},
		Test: workflow.Config{
			Power: workflow.PowerConfig{Voltage: 12.0, CurrentLimit: 2.0, Stabilization: 100 * time.Millisecond},
			Robot: workflow.RobotConfig{Axis: 0, TestPosition: 100_000},
			MCU:   workflow.MCUConfig{OperatingTemp: 85},
			Spec: []domain.SpecEntry{
				{Kind: domain.KindForce, Min: 45, Max: 55, Unit: domain.UnitNewton},
			},
		},
		Storage: eoltester.StorageConfig{Backend: "file", Dir: "./data/records"},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	station, err := eoltester.NewStation(cfg)
	if err != nil {
		log.Fatalf("assemble station: %v", err)
	}
	station.OnRecord(func(rec eoltester.Record) {
		log.Printf("test %s finished: %s (%s)", rec.TestID, rec.Status, rec.FailureReason)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := station.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("station exited: %v", err)
	}
}
