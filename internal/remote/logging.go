package remote

import (
	"context"
	"log/slog"
	"time"
)

// LoggingClient is a decorator that logs every call to the scorer.
type LoggingClient struct {
	inner  ScoringClient
	logger *slog.Logger
}

// WithLogging wraps a ScoringClient with call logging.
func WithLogging(c ScoringClient, logger *slog.Logger) ScoringClient {
	return &LoggingClient{inner: c, logger: logger}
}

func (l *LoggingClient) StartSession(ctx context.Context, in *StartSessionRequest) (*StartSessionResponse, error) {
	start := time.Now()
	out, err := l.inner.StartSession(ctx, in)
	l.record(ctx, "StartSession", in.ClientSessionID, start, err)
	return out, err
}

func (l *LoggingClient) EndSession(ctx context.Context, in *EndSessionRequest) (*EndSessionResponse, error) {
	start := time.Now()
	out, err := l.inner.EndSession(ctx, in)
	l.record(ctx, "EndSession", in.Session.SessionID, start, err)
	return out, err
}

func (l *LoggingClient) record(ctx context.Context, method, sessionID string, start time.Time, err error) {
	attrs := []any{
		"method", method,
		"session_id", sessionID,
		"latency_ms", time.Since(start).Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		l.logger.WarnContext(ctx, "scorer call failed", append(attrs, "err", err)...)
		return
	}
	l.logger.DebugContext(ctx, "scorer call", attrs...)
}
