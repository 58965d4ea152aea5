package remote

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

var (
	// ErrRejected means the scorer refused the request as malformed. It is
	// not worth retrying.
	ErrRejected = errors.New("rejected by scorer")

	// ErrUnavailable means the scorer could not be reached in time.
	ErrUnavailable = errors.New("scorer unavailable")
)

// Client talks to the scorer of record and translates status errors back
// into domain errors: FailedPrecondition becomes xp.ErrTimingValidation,
// InvalidArgument and NotFound become ErrRejected, and transport failures
// become ErrUnavailable.
type Client struct {
	conn *grpc.ClientConn
	raw  ScoringClient
}

// DefaultDialOptions returns the dial options used by Dial. Includes the
// OTel stats handler so calls propagate trace context when a provider is
// registered.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial creates a client for addr. The connection is established lazily.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(addr, append(DefaultDialOptions(), opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial scorer %s: %w", addr, err)
	}
	return &Client{conn: conn, raw: NewScoringClient(conn)}, nil
}

// StartSession registers a session start.
func (c *Client) StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error) {
	out, err := c.raw.StartSession(ctx, in)
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// EndSession requests the authoritative award.
func (c *Client) EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error) {
	out, err := c.raw.EndSession(ctx, in)
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// Health checks that the scoring service is serving.
func (c *Client) Health(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fromStatus(err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", xp.ErrTimingValidation, st.Message())
	case codes.InvalidArgument, codes.NotFound:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return fmt.Errorf("scorer: %s: %s", st.Code(), st.Message())
	}
}
