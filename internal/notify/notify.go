package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/metrics"
)

// DefaultSubject is the subject alert events are published on.
const DefaultSubject = "mova.alerts"

// Event types carried in Message.Event.
const (
	EventRaised  = "raised"
	EventCleared = "cleared"
)

const (
	clientName    = "mova-viewer"
	maxReconnects = -1
	reconnectWait = 2 * time.Second
	dialTimeout   = 5 * time.Second
	drainTimeout  = 3 * time.Second
)

// ErrEmptyURL is returned by Connect when no server URL is configured.
var ErrEmptyURL = errors.New("nats url is empty")

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body of a published alert event.
type Message struct {
	Event     string       `json:"event"`
	SessionID string       `json:"session_id,omitempty"`
	SentAt    time.Time    `json:"sent_at"`
	Alert     *alarm.Alert `json:"alert"`
}

// Notifier turns alert listener callbacks into published messages.
type Notifier struct {
	ctx       context.Context //nolint:containedctx // Listener callbacks carry no context.
	publisher Publisher
	subject   string
	sessionID string
	metrics   *metrics.Collector
	now       func() time.Time
}

// Options configures a Notifier.
type Options struct {
	Publisher Publisher
	Subject   string
	SessionID string
	Metrics   *metrics.Collector
}

// New creates a Notifier. A nil publisher yields a notifier that drops every event.
func New(ctx context.Context, opts Options) *Notifier {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}

	return &Notifier{
		ctx:       logger.WithName(ctx, "notify"),
		publisher: opts.Publisher,
		subject:   opts.Subject,
		sessionID: opts.SessionID,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// Raised publishes a raised event. It matches the alert engine listener signature.
func (n *Notifier) Raised(a *alarm.Alert) {
	n.publish(EventRaised, a)
}

// Cleared publishes a cleared event.
func (n *Notifier) Cleared(a *alarm.Alert) {
	n.publish(EventCleared, a)
}

func (n *Notifier) publish(event string, a *alarm.Alert) {
	if n == nil || n.publisher == nil || a == nil {
		return
	}

	body, err := json.Marshal(Message{
		Event:     event,
		SessionID: n.sessionID,
		SentAt:    n.now(),
		Alert:     a,
	})
	if err != nil {
		n.metrics.NotifyFailed()
		logger.Errorf(n.ctx, "Failed to encode %s alert %d: %v", event, a.ID, err)

		return
	}

	if err = n.publisher.Publish(n.subject, body); err != nil {
		n.metrics.NotifyFailed()
		logger.Warnf(n.ctx, "Failed to publish %s alert %d: %v", event, a.ID, err)

		return
	}

	logger.Debugf(n.ctx, "Published %s alert %d (%s)", event, a.ID, a.Rule)
}

// Connect dials the NATS server at url with reconnects enabled forever.
// Connection state changes are logged against ctx.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	ctx = logger.WithName(ctx, "nats")

	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.Timeout(dialTimeout),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf(ctx, "Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof(ctx, "Reconnected to %s", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debugf(ctx, "Connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	logger.Infof(ctx, "Connected to %s", conn.ConnectedUrlRedacted())

	return conn, nil
}

// Close drains conn so buffered alerts are flushed before closing.
func Close(conn *nats.Conn) error {
	if conn == nil {
		return nil
	}

	if err := conn.Drain(); err != nil {
		conn.Close()

		return fmt.Errorf("drain nats connection: %w", err)
	}

	return nil
}
