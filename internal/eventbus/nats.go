package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher sends completion events.
type Publisher interface {
	Publish(ctx context.Context, event *SeededEvent) error
	Close()
}

// NATSPublisher implements Publisher over a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
	config *Config
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(config *Config, logger *zap.Logger) (*NATSPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event bus configuration: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	p := &NATSPublisher{
		logger: logger,
		config: config,
	}

	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return p, nil
}

func (p *NATSPublisher) connect() error {
	opts := []nats.Option{
		nats.Name("countryseed"),
		nats.Timeout(p.config.Timeout),
		nats.MaxReconnects(0),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			p.logger.Debug("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(p.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	p.conn = conn

	p.logger.Debug("Connected to NATS",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("subject", p.config.Subject))

	return nil
}

// Publish sends event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, event *SeededEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.config.Subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	p.logger.Debug("Published event",
		zap.String("run_id", event.RunID),
		zap.String("subject", p.config.Subject))

	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *SeededEvent) error { return nil }
func (NopPublisher) Close()                                      {}

// NewPublisher returns a NATS publisher when config is enabled and a
// NopPublisher otherwise.
func NewPublisher(config *Config, logger *zap.Logger) (Publisher, error) {
	if !config.Enabled() {
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(config, logger)
}

// NewSeededEvent builds the completion event for a run.
func NewSeededEvent(runID, backend, collection string, total, middleEastern, states int) *SeededEvent {
	return &SeededEvent{
		RunID:         runID,
		Backend:       backend,
		Collection:    collection,
		Total:         total,
		MiddleEastern: middleEastern,
		Other:         total - middleEastern,
		States:        states,
		CompletedAt:   time.Now().UTC(),
	}
}
