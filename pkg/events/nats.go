package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/teslashibe/go-mindclick/internal/log"
)

// DefaultSubject is the NATS subject prefix. Events go to <prefix>.<type>.
const DefaultSubject = "mindclick.events"

// natsConn is the part of *nats.Conn the sink uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSSink publishes events as JSON on NATS.
type NATSSink struct {
	conn   natsConn
	prefix string
}

// DialNATS connects to url and returns a sink publishing under prefix.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATSSink, error) {
	logger = log.OrDefault(logger).With(log.Component("nats"))
	conn, err := nats.Connect(url,
		nats.Name("mindclick"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", log.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("NATS event export enabled", "url", url, "subject", prefix)
	return newNATSSink(conn, prefix), nil
}

func newNATSSink(conn natsConn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject an event of type t is published on.
func (s *NATSSink) Subject(t Type) string {
	return s.prefix + "." + string(t)
}

func (s *NATSSink) Handle(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.conn.Publish(s.Subject(e.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
