package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken marks tokens that fail signature or shape validation.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims is the payload carried by issued tokens. Expiry is enforced by
// the store TTL, which slides on activity, so tokens carry no exp claim;
// the signature only proves the token was minted by us.
type Claims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// Minter issues and parses bearer tokens as HS256 JWTs. Possession alone
// does not authenticate: the store record keyed by the token hash is the
// source of truth for revocation.
type Minter struct {
	secret []byte
	now    func() time.Time
}

// NewMinter builds a Minter with the given signing secret.
func NewMinter(secret []byte) *Minter {
	return &Minter{secret: secret, now: time.Now}
}

// SetClock overrides the time source. Test use only.
func (m *Minter) SetClock(now func() time.Time) { m.now = now }

// Mint issues a signed token for the principal. Each call produces a
// distinct token via the jti claim, so one user may hold many sessions.
func (m *Minter) Mint(username, tenantID string) (string, error) {
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(m.now().UTC()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return token, nil
}

// Parse validates the signature and returns the embedded claims.
func (m *Minter) Parse(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return Claims{}, fmt.Errorf("%w: missing principal claims", ErrInvalidToken)
	}
	return claims, nil
}
