// Package audit records authentication outcomes. The sink is strictly
// fire-and-forget: callers log emission failures and move on, a broken
// audit pipeline must never block a login.
package audit

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Event kinds.
const (
	KindLogin  = "login"
	KindLogout = "logout"
	KindKick   = "kick"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one authentication outcome record.
type Event struct {
	Kind      string
	Outcome   string
	TenantID  string
	Username  string
	ClientIP  string
	UserAgent string
	Message   string
	At        time.Time
}

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

type ctxKey struct{}

// WithRequestID attaches a request identifier enriching recorded events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// Log is a Sink emitting events through the structured logger.
type Log struct {
	log *zap.Logger
}

// NewLog builds a logger-backed sink.
func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

// Record writes one event. It never returns an error; the signature is
// kept for sinks with real delivery (queue, database).
func (l *Log) Record(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.String("outcome", ev.Outcome),
		zap.String("tenant_id", ev.TenantID),
		zap.String("username", ev.Username),
		zap.Time("at", ev.At),
	}
	if ev.ClientIP != "" {
		fields = append(fields, zap.String("client_ip", ev.ClientIP))
	}
	if ev.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", ev.UserAgent))
	}
	if ev.Message != "" {
		fields = append(fields, zap.String("message", ev.Message))
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	l.log.Info("audit", fields...)
	return nil
}

// Nop discards events. Test and bootstrap use.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
