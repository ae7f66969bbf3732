// Package auth issues and validates the bearer credentials presented by
// viewers and API clients.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// Failure reasons recorded in logs and metrics. Callers only ever see
// core.ErrUnauthorized.
const (
	ReasonMissing     = "missing"
	ReasonMalformed   = "malformed"
	ReasonExpired     = "expired"
	ReasonSignature   = "signature"
	ReasonClaims      = "claims"
	ReasonCredentials = "credentials"
)

// MinKeyLength is the shortest accepted HMAC signing key.
const MinKeyLength = 16

// dummyHash keeps the cost of a login for an unknown user equal to a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("seawatch-dummy-password"), bcrypt.DefaultCost)

// Config is the process-level configuration of a Guard.
type Config struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
}

// Principal is an authenticated identity.
type Principal struct {
	Subject   string
	ExpiresAt time.Time
}

// Credential is the bearer token returned by a successful login.
type Credential struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Guard issues HS256 JWTs and validates them.
type Guard struct {
	key    []byte
	issuer string
	ttl    time.Duration
	users  core.UserStore
	logger log.Logger
	now    func() time.Time
}

// NewGuard returns a Guard. users may be nil when the process only validates.
func NewGuard(cfg Config, users core.UserStore) (*Guard, error) {
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Guard{
		key:    cfg.SigningKey,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		users:  users,
		logger: log.WithName("auth"),
		now:    time.Now,
	}, nil
}

// IssueCredential checks username and password and returns a signed token.
func (g *Guard) IssueCredential(ctx context.Context, username, password string) (*Credential, error) {
	if g.users == nil || username == "" {
		g.fail(ReasonCredentials, errors.New("no user store or empty username"))
		return nil, core.ErrUnauthorized
	}

	user, err := g.users.GetUser(ctx, username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		if !errors.Is(err, core.ErrUnauthorized) {
			g.logger.Error(err, "User lookup failed", "username", username)
		}
		g.fail(ReasonCredentials, err, "username", username)
		return nil, core.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		g.fail(ReasonCredentials, err, "username", username)
		return nil, core.ErrUnauthorized
	}

	now := g.now()
	exp := now.Add(g.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		Issuer:    g.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	g.logger.Info("Credential issued", "username", user.Username, "expiresAt", exp)
	return &Credential{AccessToken: token, ExpiresAt: exp}, nil
}

// Validate verifies a bearer token and returns its principal.
func (g *Guard) Validate(material string) (*Principal, error) {
	p, reason, err := g.verify(material)
	if err != nil {
		g.fail(reason, err)
		return nil, core.ErrUnauthorized
	}
	return p, nil
}

// verify returns the principal or the internal rejection reason.
func (g *Guard) verify(material string) (*Principal, string, error) {
	if material == "" {
		return nil, ReasonMissing, errors.New("no credential presented")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(material, claims, func(*jwt.Token) (any, error) {
		return g.key, nil
	}, opts...)
	if err != nil {
		return nil, reasonFor(err), err
	}
	if claims.Subject == "" {
		return nil, ReasonClaims, errors.New("token has no subject")
	}

	return &Principal{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, "", nil
}

// FromRequest extracts the credential of an HTTP request or websocket
// handshake and validates it. Sources, in order: the Authorization bearer
// header, the "token" query parameter and a "bearer, <jwt>" websocket
// subprotocol pair.
func (g *Guard) FromRequest(r *http.Request) (*Principal, error) {
	return g.Validate(TokenFromRequest(r))
}

// TokenFromRequest returns the raw bearer token carried by r, or "".
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	protocols := websocketProtocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if strings.EqualFold(protocols[i], "bearer") {
			return protocols[i+1]
		}
	}
	return ""
}

func websocketProtocols(r *http.Request) []string {
	var out []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (g *Guard) fail(reason string, err error, keysAndValues ...any) {
	metrics.AuthFailures.WithLabelValues(reason).Inc()
	g.logger.Warn("Credential rejected", append([]any{"reason", reason, "error", err.Error()}, keysAndValues...)...)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	default:
		return ReasonClaims
	}
}

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
