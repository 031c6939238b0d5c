//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/mova-viewer/internal/api/grpc/viewer"
	"github.com/oshokin/mova-viewer/internal/config"
	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

// Client wraps the viewer gRPC API with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the viewer daemon.
	conn grpc.ClientConnInterface
	// closer releases conn; nil when the connection is owned elsewhere.
	closer func() error

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor identifies the operator on state-changing calls.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the operator identity sent with state-changing calls.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the viewer daemon.
// Note: this uses insecure transport credentials; the query API is meant for
// a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial viewer: %w", err)
	}

	client := NewClient(conn, opts...)
	client.closer = conn.Close

	return client, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*mova.Status, error) {
	var out mova.Status
	if err := c.query(ctx, viewer.MethodGetStatus, new(emptypb.Empty), new(structpb.Struct), &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Snapshot retrieves the current snapshot, or the display view when display is set.
func (c *Client) Snapshot(ctx context.Context, display bool) (*mova.Snapshot, error) {
	var out mova.Snapshot
	if err := c.query(ctx, viewer.MethodGetSnapshot, wrapperspb.Bool(display), new(structpb.Struct), &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// FindSnapshot retrieves a snapshot by sequence id.
func (c *Client) FindSnapshot(ctx context.Context, seq int64) (*mova.Snapshot, error) {
	var out mova.Snapshot
	if err := c.query(ctx, viewer.MethodFindSnapshot, wrapperspb.Int64(seq), new(structpb.Struct), &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// History retrieves up to n finalized snapshots, newest first; zero means all.
func (c *Client) History(ctx context.Context, n int) ([]*mova.Snapshot, error) {
	var out []*mova.Snapshot
	if err := c.query(ctx, viewer.MethodListHistory, wrapperspb.Int64(int64(n)), new(structpb.ListValue), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Alerts retrieves the active alerts.
func (c *Client) Alerts(ctx context.Context) ([]*alarm.Alert, error) {
	var out []*alarm.Alert
	if err := c.query(ctx, viewer.MethodListAlerts, new(emptypb.Empty), new(structpb.ListValue), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// AlertHistory retrieves up to limit alerts, newest first; zero means all.
func (c *Client) AlertHistory(ctx context.Context, limit int) ([]*alarm.Alert, error) {
	var out []*alarm.Alert

	err := c.query(ctx, viewer.MethodAlertHistory, wrapperspb.Int64(int64(limit)), new(structpb.ListValue), &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Acknowledge marks an alert as seen.
func (c *Client) Acknowledge(ctx context.Context, id int64) error {
	return c.call(ctx, viewer.MethodAcknowledge, wrapperspb.Int64(id), new(emptypb.Empty))
}

// ClearAlerts clears every active alert.
func (c *Client) ClearAlerts(ctx context.Context) error {
	return c.call(ctx, viewer.MethodClearAlerts, new(emptypb.Empty), new(emptypb.Empty))
}

// Pin freezes the display view on seq, or on the current snapshot when seq is zero.
func (c *Client) Pin(ctx context.Context, seq int64) (*mova.Snapshot, error) {
	var out mova.Snapshot
	if err := c.query(ctx, viewer.MethodPin, wrapperspb.Int64(seq), new(structpb.Struct), &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Unpin makes the display view follow the live snapshot.
func (c *Client) Unpin(ctx context.Context) error {
	return c.call(ctx, viewer.MethodUnpin, new(emptypb.Empty), new(emptypb.Empty))
}

// Reset drops all aggregated state on the daemon.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, viewer.MethodReset, new(emptypb.Empty), new(emptypb.Empty))
}

// Events drains the queued display events.
func (c *Client) Events(ctx context.Context) ([]mova.Event, error) {
	var out []mova.Event
	if err := c.query(ctx, viewer.MethodDrainEvents, new(emptypb.Empty), new(structpb.ListValue), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// RawLines drains the queued raw lines.
func (c *Client) RawLines(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.query(ctx, viewer.MethodDrainRawLines, new(emptypb.Empty), new(structpb.ListValue), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// SetRecording starts recording to path, or stops recording when path is empty.
func (c *Client) SetRecording(ctx context.Context, path string) error {
	return c.call(ctx, viewer.MethodSetRecording, wrapperspb.String(path), new(emptypb.Empty))
}

// ControlReplay changes the replay speed, pause state or steps one line.
func (c *Client) ControlReplay(ctx context.Context, control mova.ReplayControl) error {
	req, err := viewer.ToStruct(control)
	if err != nil {
		return err
	}

	return c.call(ctx, viewer.MethodControlReplay, req, new(emptypb.Empty))
}

// query invokes method and decodes the JSON-shaped reply into out.
func (c *Client) query(ctx context.Context, method string, req, reply proto.Message, out any) error {
	if err := c.call(ctx, method, req, reply); err != nil {
		return err
	}

	if err := viewer.FromMessage(reply, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}

	return nil
}

// call invokes method with the client's timeout and operator identity.
func (c *Client) call(ctx context.Context, method string, req, reply proto.Message) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	callCtx = viewer.WithActor(callCtx, c.actor)

	if err := c.conn.Invoke(callCtx, viewer.FullMethod(method), req, reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
