// Package serialport opens the serial links to the headset and the actuator.
//
// A Port wraps a go.bug.st/serial connection that can be reopened in place,
// so the headset reader can reconnect after a read fault while the actuator
// keeps writing through the same handle. When both ends name the same device
// one Port is shared between them.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("serialport: port closed")

// Config describes one serial link.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
	// SettleDelay is waited after open; many boards reset when the port opens.
	SettleDelay time.Duration
}

// Conn is the subset of serial.Port a Port needs.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// DialFunc opens the underlying connection.
type DialFunc func(cfg Config) (Conn, error)

// Dial opens cfg.Device at cfg.Baud, 8 data bits, no parity, one stop bit.
func Dial(cfg Config) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the serial devices present on this machine.
func List() ([]string, error) {
	return serial.GetPortsList()
}

// Port is a reopenable serial link. Reads and writes may run concurrently.
type Port struct {
	cfg  Config
	dial DialFunc

	mu     sync.RWMutex
	conn   Conn
	closed bool
}

// Open dials cfg.Device with the default dialer.
func Open(ctx context.Context, cfg Config) (*Port, error) {
	return OpenWith(ctx, cfg, Dial)
}

// OpenWith dials with dial, applies the read timeout and waits the settle delay.
func OpenWith(ctx context.Context, cfg Config, dial DialFunc) (*Port, error) {
	p := &Port{cfg: cfg, dial: dial}
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func (p *Port) connect(ctx context.Context) (Conn, error) {
	conn, err := p.dial(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.cfg.Device, err)
	}
	if p.cfg.ReadTimeout > 0 {
		if err := conn.SetReadTimeout(p.cfg.ReadTimeout); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", p.cfg.Device, err)
		}
	}
	if p.cfg.SettleDelay > 0 {
		timer := time.NewTimer(p.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			conn.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	// Drop whatever the board printed while booting.
	_ = conn.ResetInputBuffer()
	return conn, nil
}

// Device returns the configured device name.
func (p *Port) Device() string {
	return p.cfg.Device
}

// Read reads from the current connection. With a read timeout configured
// it returns (0, nil) when no data arrived in time.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.conn.Read(b)
}

// Write writes to the current connection.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.conn.Write(b)
}

// Reopen closes the current connection and dials the device again.
func (p *Port) Reopen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	_ = p.conn.Close()
	conn, err := p.connect(ctx)
	if err != nil {
		// Keep a dead handle so Read/Write keep failing until the next Reopen.
		p.conn = deadConn{err: err}
		return err
	}
	p.conn = conn
	return nil
}

// Close closes the port. It is safe to call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

type deadConn struct{ err error }

func (d deadConn) Read([]byte) (int, error)           { return 0, d.err }
func (d deadConn) Write([]byte) (int, error)          { return 0, d.err }
func (d deadConn) Close() error                       { return nil }
func (d deadConn) SetReadTimeout(time.Duration) error { return d.err }
func (d deadConn) ResetInputBuffer() error            { return d.err }
