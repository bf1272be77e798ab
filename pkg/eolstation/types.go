package eolstation

import "github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"

// Hardware and infrastructure contracts, aliased so embedders can supply
// their own drivers through the StationOption hooks.
type (
	PowerService     = ports.PowerService
	LoadCellService  = ports.LoadCellService
	DigitalIOService = ports.DigitalIOService
	MCUService       = ports.MCUService
	RobotService     = ports.RobotService
	RecordRepository = ports.RecordRepository
	ResultPublisher  = ports.ResultPublisher
	DUTProvider      = ports.DUTProvider
	Observability    = ports.Observability
	Field            = ports.Field
)
