// Package neurohub publishes test progress to the NeuroHub MES over its
// length-prefixed JSON protocol: a 4-byte big-endian length header followed
// by a UTF-8 JSON payload, with an ACK frame after every message.
package neurohub

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/domain"
	"github.com/Soochol/WF-EOL-TESTER-sub009/internal/ports"
)

const (
	headerSize     = 4
	maxMessageSize = 1 << 20
)

type Config struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return &domain.ConfigError{Field: "neurohub.host", Reason: "required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &domain.ConfigError{Field: "neurohub.port", Reason: "must be 1..65535"}
	}
	return nil
}

type message struct {
	MessageType  string               `json:"message_type"`
	SerialNumber string               `json:"serial_number"`
	Result       string               `json:"result,omitempty"`
	Measurements []domain.Measurement `json:"measurements,omitempty"`
	Timestamp    string               `json:"timestamp,omitempty"`
}

type ack struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client is a ResultPublisher speaking to one NeuroHub endpoint. The
// connection is dialed lazily and redialed after any transport error.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

var _ ports.ResultPublisher = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		timeout: cfg.Timeout,
	}, nil
}

func (c *Client) PublishStart(ctx context.Context, serial string) error {
	return c.send(ctx, message{
		MessageType:  "START",
		SerialNumber: serial,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

func (c *Client) PublishComplete(ctx context.Context, rec *domain.TestRecord) error {
	result := "FAIL"
	if rec.Status == domain.StatusPassed {
		result = "PASS"
	}
	return c.send(ctx, message{
		MessageType:  "COMPLETE",
		SerialNumber: rec.DUT.SerialNumber,
		Result:       result,
		Measurements: rec.Measurements,
		Timestamp:    rec.EndedAt.Format(time.RFC3339),
	})
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// send frames the message, waits for the ACK, and tears the connection down
// on any transport fault so the next publish starts clean.
func (c *Client) send(ctx context.Context, msg message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return c.faultLocked(msg.MessageType, err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := c.conn.Write(hdr[:]); err != nil {
		return c.faultLocked(msg.MessageType, err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return c.faultLocked(msg.MessageType, err)
	}

	a, err := c.readAckLocked()
	if err != nil {
		return c.faultLocked(msg.MessageType, err)
	}
	if a.Status != "OK" {
		return &domain.OperationError{
			Device: "neurohub",
			Op:     msg.MessageType,
			Err:    fmt.Errorf("rejected: %s (%s)", a.Message, a.ErrorCode),
		}
	}
	return nil
}

func (c *Client) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &domain.ConnectionError{Device: "neurohub", Err: err}
	}
	c.conn = conn
	return nil
}

func (c *Client) readAckLocked() (ack, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
		return ack{}, fmt.Errorf("read ack header: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > maxMessageSize {
		return ack{}, fmt.Errorf("ack frame of %d bytes exceeds limit", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return ack{}, fmt.Errorf("read ack body: %w", err)
	}
	var a ack
	if err := json.Unmarshal(body, &a); err != nil {
		return ack{}, fmt.Errorf("decode ack: %w", err)
	}
	return a, nil
}

func (c *Client) faultLocked(op string, err error) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return &domain.OperationError{Device: "neurohub", Op: op, Err: err}
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.timeout)
}
