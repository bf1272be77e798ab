// Package opcuaio drives the station's discrete I/O bank through an OPC UA
// server, typically the PLC fronting the buttons, interlocks and lamp.
package opcuaio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session
// plus the channel-to-node mapping for both directions.
type Config struct {
	Endpoint        string `yaml:"endpoint"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SecurityMode    string `yaml:"security_mode"`
	SecurityPolicy  string `yaml:"security_policy"`
	ApplicationName string `yaml:"application_name"`

	Inputs  map[int]string `yaml:"inputs"`  // channel -> node id
	Outputs map[int]string `yaml:"outputs"` // channel -> node id
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "WF EOL Tester"
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return &domain.ConfigError{Field: "dio.endpoint", Reason: "required"}
	}
	if len(c.Inputs) == 0 {
		return &domain.ConfigError{Field: "dio.inputs", Reason: "at least one input channel required"}
	}
	return nil
}

// DIO is a DigitalIOService over one OPC UA session. All inputs are fetched
// in a single Read service call so a poll sees one sampling instant.
type DIO struct {
	cfg        Config
	inputIDs   map[int]*ua.NodeID
	outputIDs  map[int]*ua.NodeID
	inputOrder []int

	mu     sync.Mutex
	client *opcua.Client
}

var _ ports.DigitalIOService = (*DIO)(nil)

func New(cfg Config) (*DIO, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &DIO{
		cfg:       cfg,
		inputIDs:  make(map[int]*ua.NodeID, len(cfg.Inputs)),
		outputIDs: make(map[int]*ua.NodeID, len(cfg.Outputs)),
	}
	for ch, raw := range cfg.Inputs {
		id, err := ua.ParseNodeID(raw)
		if err != nil {
			return nil, &domain.ConfigError{
				Field:  fmt.Sprintf("dio.inputs[%d]", ch),
				Reason: fmt.Sprintf("bad node id %q: %v", raw, err),
			}
		}
		d.inputIDs[ch] = id
		d.inputOrder = append(d.inputOrder, ch)
	}
	sort.Ints(d.inputOrder)
	for ch, raw := range cfg.Outputs {
		id, err := ua.ParseNodeID(raw)
		if err != nil {
			return nil, &domain.ConfigError{
				Field:  fmt.Sprintf("dio.outputs[%d]", ch),
				Reason: fmt.Sprintf("bad node id %q: %v", raw, err),
			}
		}
		d.outputIDs[ch] = id
	}
	return d, nil
}

func (d *DIO) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}

	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(d.cfg.SecurityMode)),
		opcua.SecurityPolicy(d.cfg.SecurityPolicy),
		opcua.ApplicationName(d.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if d.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(d.cfg.Username, d.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(d.cfg.Endpoint, opts...)
	if err != nil {
		return &domain.ConnectionError{Device: "dio", Err: err}
	}
	if err := client.Connect(ctx); err != nil {
		return &domain.ConnectionError{Device: "dio", Err: err}
	}
	d.client = client
	return nil
}

func (d *DIO) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()
	if client == nil {
		return nil
	}
	if err := client.Close(ctx); err != nil {
		return &domain.ConnectionError{Device: "dio", Err: err}
	}
	return nil
}

func (d *DIO) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client != nil
}

func (d *DIO) ReadInput(ctx context.Context, channel int) (bool, error) {
	id, ok := d.inputIDs[channel]
	if !ok {
		return false, &domain.OperationError{
			Device: "dio", Op: "read_input",
			Err: fmt.Errorf("channel %d not mapped", channel),
		}
	}
	client, err := d.session()
	if err != nil {
		return false, err
	}

	resp, err := client.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{{NodeID: id, AttributeID: ua.AttributeIDValue}},
	})
	if err != nil {
		return false, &domain.OperationError{Device: "dio", Op: "read_input", Err: err}
	}
	if len(resp.Results) != 1 {
		return false, &domain.OperationError{
			Device: "dio", Op: "read_input",
			Err: fmt.Errorf("expected 1 result, got %d", len(resp.Results)),
		}
	}
	return decodeBool(resp.Results[0], channel, "read_input")
}

// ReadAllInputs fetches every mapped input in one Read service call.
func (d *DIO) ReadAllInputs(ctx context.Context) (map[int]bool, error) {
	client, err := d.session()
	if err != nil {
		return nil, err
	}

	nodes := make([]*ua.ReadValueID, 0, len(d.inputOrder))
	for _, ch := range d.inputOrder {
		nodes = append(nodes, &ua.ReadValueID{NodeID: d.inputIDs[ch], AttributeID: ua.AttributeIDValue})
	}
	resp, err := client.Read(ctx, &ua.ReadRequest{NodesToRead: nodes})
	if err != nil {
		return nil, &domain.OperationError{Device: "dio", Op: "read_all", Err: err}
	}
	if len(resp.Results) != len(nodes) {
		return nil, &domain.OperationError{
			Device: "dio", Op: "read_all",
			Err: fmt.Errorf("expected %d results, got %d", len(nodes), len(resp.Results)),
		}
	}

	out := make(map[int]bool, len(nodes))
	for i, ch := range d.inputOrder {
		v, err := decodeBool(resp.Results[i], ch, "read_all")
		if err != nil {
			return nil, err
		}
		out[ch] = v
	}
	return out, nil
}

func (d *DIO) WriteOutput(ctx context.Context, channel int, on bool) error {
	id, ok := d.outputIDs[channel]
	if !ok {
		return &domain.OperationError{
			Device: "dio", Op: "write_output",
			Err: fmt.Errorf("channel %d not mapped", channel),
		}
	}
	client, err := d.session()
	if err != nil {
		return err
	}

	variant, err := ua.NewVariant(on)
	if err != nil {
		return &domain.OperationError{Device: "dio", Op: "write_output", Err: err}
	}
	resp, err := client.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		}},
	})
	if err != nil {
		return &domain.OperationError{Device: "dio", Op: "write_output", Err: err}
	}
	if len(resp.Results) != 1 || resp.Results[0] != ua.StatusOK {
		return &domain.OperationError{
			Device: "dio", Op: "write_output",
			Err: fmt.Errorf("channel %d write rejected: %v", channel, resp.Results),
		}
	}
	return nil
}

func (d *DIO) session() (*opcua.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, &domain.ConnectionError{Device: "dio", Err: fmt.Errorf("not connected")}
	}
	return d.client, nil
}

func decodeBool(dv *ua.DataValue, channel int, op string) (bool, error) {
	if dv == nil {
		return false, &domain.OperationError{
			Device: "dio", Op: op,
			Err: fmt.Errorf("channel %d missing result", channel),
		}
	}
	if dv.Status != ua.StatusOK {
		return false, &domain.OperationError{
			Device: "dio", Op: op,
			Err: fmt.Errorf("channel %d bad status: %v", channel, dv.Status),
		}
	}
	switch v := dv.Value.Value().(type) {
	case bool:
		return v, nil
	case uint8:
		return v != 0, nil
	case int16:
		return v != 0, nil
	case uint16:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case uint32:
		return v != 0, nil
	default:
		return false, &domain.OperationError{
			Device: "dio", Op: op,
			Err: fmt.Errorf("channel %d unsupported type %T", channel, dv.Value.Value()),
		}
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}
