package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intramind/config"
	"intramind/internal/domain"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:       true,
		JWTSecret:     "test-secret",
		Algorithm:     "HS256",
		RequiredGroup: "RAG-App-Users",
	}
}

func TestVerify_ValidToken(t *testing.T) {
	cfg := testAuthConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	token, err := MintToken(cfg, "ajay@company.com", "Ajay", []string{"RAG-App-Users", "Other"}, time.Hour)
	require.NoError(t, err)

	caller, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ajay@company.com", caller.Subject)
	assert.Equal(t, []string{"RAG-App-Users", "Other"}, caller.Groups)
}

func TestVerify_MissingGroup(t *testing.T) {
	cfg := testAuthConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	token, err := MintToken(cfg, "bob", "", []string{"Finance"}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerify_InvalidTokens(t *testing.T) {
	cfg := testAuthConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	wrongSecret := cfg
	wrongSecret.JWTSecret = "other-secret"
	forged, err := MintToken(wrongSecret, "eve", "", []string{"RAG-App-Users"}, time.Hour)
	require.NoError(t, err)

	expiredClaims := Claims{
		Groups: []string{"RAG-App-Users"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "old",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	otherAlg := cfg
	otherAlg.Algorithm = "HS512"
	hs512, err := MintToken(otherAlg, "mallory", "", []string{"RAG-App-Users"}, time.Hour)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": forged,
		"expired":      expired,
		"wrong alg":    hs512,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerify_Disabled(t *testing.T) {
	v, err := NewVerifier(config.AuthConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, v.Enabled())

	caller, err := v.Verify("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", caller.Subject)
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTSecret = ""
	_, err := NewVerifier(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(r), "header %q", header)
	}
}

func TestMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	var seen domain.Caller
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	good, err := MintToken(cfg, "alice", "", []string{"RAG-App-Users"}, 0)
	require.NoError(t, err)
	outsider, err := MintToken(cfg, "bob", "", nil, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"missing group", "Bearer " + outsider, http.StatusForbidden},
		{"valid", "Bearer " + good, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/query", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusNoContent {
				assert.Contains(t, w.Body.String(), `"detail"`)
			}
		})
	}
	assert.Equal(t, "alice", seen.Subject)
}
