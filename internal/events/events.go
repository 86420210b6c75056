// Package events publishes engine lifecycle events to NATS so external
// dashboards can react without polling the HTTP API. Publishing is
// fire-and-forget: a broker outage never affects engine operation.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Kind identifies the engine event being published.
type Kind string

const (
	KindInitialized   Kind = "initialized"
	KindGenerated     Kind = "generated"
	KindHealed        Kind = "healed"
	KindFailure       Kind = "failure"
	KindStopped       Kind = "stopped"
	KindEmergencyStop Kind = "emergency_stop"
)

// Event is the JSON payload published on shiftd.engine.<kind>.
type Event struct {
	Kind    Kind           `json:"kind"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher emits engine events.
type Publisher interface {
	Publish(event Event)
	Close() error
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// Connect dials NATS and returns a publisher. The connection retries
// in the background so a broker restart does not take shiftd down.
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	logger.Info("connected to NATS", zap.String("url", url))

	return &NATSPublisher{
		conn:    nc,
		subject: "shiftd.engine",
		logger:  logger,
	}, nil
}

// Publish emits an event. Errors are logged, never returned: event
// delivery is telemetry, not correctness-critical state.
func (p *NATSPublisher) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal engine event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subject, event.Kind)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("failed to publish engine event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}

// NopPublisher discards events. Used when NATS is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
