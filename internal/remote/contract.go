// Package remote is the gRPC transport between a client and the scorer of
// record: session-start registration and authoritative end-of-session
// scoring. Messages are JSON over gRPC; the service descriptor is written
// by hand.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/dersual/Focus-Friendship-MVP/internal/ledger"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName        = "focusfriend.v1.Scoring"
	jsonCodecName      = "json"
	methodStartSession = "/" + ServiceName + "/StartSession"
	methodEndSession   = "/" + ServiceName + "/EndSession"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// StartSessionRequest registers a session start.
type StartSessionRequest struct {
	ClientSessionID string `json:"clientSessionId"`
	UserID          string `json:"userId"`
	DurationMinutes int    `json:"durationMinutes"`
	IsBreak         bool   `json:"isBreak"`
	GoalID          string `json:"goalId,omitempty"`
}

// StartSessionResponse carries the scorer's own start time in unix millis.
type StartSessionResponse struct {
	ServerSessionID string `json:"serverSessionId"`
	ServerStartAt   int64  `json:"serverStartAt"`
}

// EndSessionRequest asks for the authoritative award of a terminal session.
// Digest is the canonical-JSON digest of Session computed by the client.
type EndSessionRequest struct {
	Session ledger.Payload `json:"session"`
	Digest  string         `json:"digest"`
}

// UserState is the scorer's view of a user after scoring.
type UserState struct {
	User progression.User `json:"user"`
	Pet  progression.Pet  `json:"pet"`
}

// EndSessionResponse is the authoritative result. Duplicate is set when
// the session had already been scored; the award fields then repeat the
// original result.
type EndSessionResponse struct {
	AwardedXP    int          `json:"awardedXP"`
	PetXP        int          `json:"petXP"`
	LevelUp      bool         `json:"levelUp"`
	PetLevelUp   bool         `json:"petLevelUp"`
	NewUserState UserState    `json:"newUserState"`
	Breakdown    xp.Breakdown `json:"breakdown"`
	Duplicate    bool         `json:"duplicate"`
}

// ScoringServer is implemented by the scorer of record.
type ScoringServer interface {
	StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error)
	EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error)
}

// ScoringClient calls the scorer of record.
type ScoringClient interface {
	StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error)
	EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error)
}

type scoringClient struct {
	conn grpc.ClientConnInterface
}

// NewScoringClient returns a raw client over conn. Errors are gRPC status
// errors; Client translates them.
func NewScoringClient(conn grpc.ClientConnInterface) ScoringClient {
	return &scoringClient{conn: conn}
}

func (c *scoringClient) StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error) {
	out := &StartSessionResponse{}
	if err := c.conn.Invoke(ctx, methodStartSession, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *scoringClient) EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error) {
	out := &EndSessionResponse{}
	if err := c.conn.Invoke(ctx, methodEndSession, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterScoringServer registers impl on server.
func RegisterScoringServer(server grpc.ServiceRegistrar, impl ScoringServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*ScoringServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "StartSession",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &StartSessionRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.StartSession(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStartSession}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*StartSessionRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.StartSession(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "EndSession",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &EndSessionRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.EndSession(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEndSession}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*EndSessionRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.EndSession(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "focusfriend/scoring/v1",
	}, impl)
}
