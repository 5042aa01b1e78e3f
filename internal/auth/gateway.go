// Package auth implements credential verification and the login path.
package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/audit"
	"atrium.org/internal/identity"
	"atrium.org/internal/session"
)

// SessionStore is the slice of the session store the gateway uses.
type SessionStore interface {
	Create(ctx context.Context, username, tenantID string, snapshot session.Snapshot, clientIP, userAgent string) (string, error)
	Get(ctx context.Context, token string) (session.Session, bool, error)
	Remove(ctx context.Context, token string) error
}

// LoginResult is returned to the client on success.
type LoginResult struct {
	Token    string
	Username string
	TenantID string
}

// Gateway orchestrates login and logout.
type Gateway struct {
	verifier CredentialVerifier
	sessions SessionStore
	sink     audit.Sink
	log      *zap.Logger
	observe  func(outcome string)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithAuditSink sets the audit sink.
func WithAuditSink(sink audit.Sink) GatewayOption {
	return func(g *Gateway) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithLoginObserver registers a hook counting login outcomes.
func WithLoginObserver(observe func(outcome string)) GatewayOption {
	return func(g *Gateway) { g.observe = observe }
}

// NewGateway builds a Gateway.
func NewGateway(verifier CredentialVerifier, sessions SessionStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		verifier: verifier,
		sessions: sessions,
		sink:     audit.Nop{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login authenticates (tenantID, username, password) and issues a
// session token. The identity is bound for the duration of this call
// only; the credential check must run inside the right tenant scope.
// No token is created on failure.
func (g *Gateway) Login(ctx context.Context, tenantID, username, password, clientIP, userAgent string) (LoginResult, error) {
	scoped := identity.WithIdentity(ctx, identity.Identity{TenantID: tenantID, Username: username})

	user, err := g.verifier.Verify(scoped, username, password)
	if err != nil {
		g.record(ctx, audit.Event{
			Kind:      audit.KindLogin,
			Outcome:   audit.OutcomeFailure,
			TenantID:  tenantID,
			Username:  username,
			ClientIP:  clientIP,
			UserAgent: userAgent,
			Message:   failureMessage(err),
		})
		g.count(audit.OutcomeFailure)
		return LoginResult{}, err
	}

	snapshot := session.Snapshot{
		UserID:      user.ID,
		Nickname:    user.Nickname,
		TenantAdmin: user.TenantAdmin,
	}
	token, err := g.sessions.Create(ctx, user.Username, user.TenantID, snapshot, clientIP, userAgent)
	if err != nil {
		g.record(ctx, audit.Event{
			Kind:      audit.KindLogin,
			Outcome:   audit.OutcomeFailure,
			TenantID:  tenantID,
			Username:  username,
			ClientIP:  clientIP,
			UserAgent: userAgent,
			Message:   "session create failed",
		})
		g.count(audit.OutcomeFailure)
		return LoginResult{}, err
	}

	g.record(ctx, audit.Event{
		Kind:      audit.KindLogin,
		Outcome:   audit.OutcomeSuccess,
		TenantID:  user.TenantID,
		Username:  user.Username,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	})
	g.count(audit.OutcomeSuccess)
	return LoginResult{Token: token, Username: user.Username, TenantID: user.TenantID}, nil
}

// Logout removes the session bound to token. Unknown tokens are a
// no-op, so a double logout never errors.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	ev := audit.Event{Kind: audit.KindLogout, Outcome: audit.OutcomeSuccess}
	if sess, ok, err := g.sessions.Get(ctx, token); err == nil && ok {
		ev.TenantID = sess.TenantID
		ev.Username = sess.Username
	}
	if err := g.sessions.Remove(ctx, token); err != nil {
		return err
	}
	g.record(ctx, ev)
	return nil
}

// record is fire-and-forget: sink failures are warn-logged, never
// propagated into the login path.
func (g *Gateway) record(ctx context.Context, ev audit.Event) {
	ev.At = time.Now().UTC()
	if err := g.sink.Record(ctx, ev); err != nil {
		g.log.Warn("audit record failed",
			zap.String("kind", ev.Kind),
			zap.String("outcome", ev.Outcome),
			zap.Error(err))
	}
}

func (g *Gateway) count(outcome string) {
	if g.observe != nil {
		g.observe(outcome)
	}
}

// failureMessage keeps credential detail out of the audit trail.
func failureMessage(err error) string {
	if errors.Is(err, ErrAuthenticationFailed) {
		return "invalid credentials"
	}
	return err.Error()
}
