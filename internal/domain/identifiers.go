package domain

import "github.com/google/uuid"

// DUT identifies the device under test. Two DUT values are the same unit iff
// their serial numbers match; part number and model are descriptive.
type DUT struct {
	SerialNumber string `json:"serial_number"`
	PartNumber   string `json:"part_number,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (d DUT) Equal(o DUT) bool { return d.SerialNumber == o.SerialNumber }

// TestID is the opaque token naming one test execution. UUIDv7 keeps ids
// sortable in creation order.
type TestID string

func NewTestID() TestID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return TestID(id.String())
}
