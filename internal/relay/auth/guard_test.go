package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch-io/seawatch/internal/relay/core"
)

const testKey = "0123456789abcdef0123456789abcdef"

type memUsers map[string][]byte

func (m memUsers) GetUser(_ context.Context, username string) (*core.User, error) {
	hash, ok := m[username]
	if !ok {
		return nil, core.ErrUnauthorized
	}
	return &core.User{Username: username, PasswordHash: hash}, nil
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	g, err := NewGuard(Config{SigningKey: []byte(testKey), Issuer: "seawatch-relay", TTL: time.Hour}, memUsers{"alice": hash})
	require.NoError(t, err)
	return g
}

func TestNewGuardRejectsShortKey(t *testing.T) {
	_, err := NewGuard(Config{SigningKey: []byte("short")}, nil)
	assert.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	g := newTestGuard(t)

	cred, err := g.IssueCredential(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, cred.AccessToken)

	p, err := g.Validate(cred.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.ExpiresAt, 5*time.Second)
}

func TestIssueCredentialRejects(t *testing.T) {
	g := newTestGuard(t)

	_, err := g.IssueCredential(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = g.IssueCredential(context.Background(), "mallory", "s3cret")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = g.IssueCredential(context.Background(), "", "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestValidateReasons(t *testing.T) {
	g := newTestGuard(t)

	past := newTestGuard(t)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.IssueCredential(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	otherKey, err := NewGuard(Config{SigningKey: []byte("fedcba9876543210fedcba9876543210"), Issuer: "seawatch-relay"}, g.users)
	require.NoError(t, err)
	forged, err := otherKey.IssueCredential(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	otherIssuer, err := NewGuard(Config{SigningKey: []byte(testKey), Issuer: "someone-else"}, g.users)
	require.NoError(t, err)
	foreign, err := otherIssuer.IssueCredential(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "seawatch-relay",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "seawatch-relay",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"missing", "", ReasonMissing},
		{"malformed", "not-a-jwt", ReasonMalformed},
		{"expired", expired.AccessToken, ReasonExpired},
		{"signature", forged.AccessToken, ReasonSignature},
		{"algorithm", hs512, ReasonSignature},
		{"issuer", foreign.AccessToken, ReasonClaims},
		{"subject", noSubject, ReasonClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, err := g.verify(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.reason, reason)

			// Callers see one generic error regardless of the reason.
			_, err = g.Validate(tt.token)
			assert.Equal(t, core.ErrUnauthorized, err)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/all?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/all", nil)
	r.Header.Set("Sec-WebSocket-Protocol", "bearer, p")
	assert.Equal(t, "p", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws/all", nil)
	assert.Equal(t, "", TokenFromRequest(r))
}

func TestRequireAuth(t *testing.T) {
	g := newTestGuard(t)
	cred, err := g.IssueCredential(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(g.RequireAuth())
	router.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(p.Subject))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}
