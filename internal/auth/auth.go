package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"

	"intramind/config"
	"intramind/internal/domain"
)

// DefaultTokenTTL is the lifetime of minted development tokens.
const DefaultTokenTTL = time.Hour

var (
	ErrMissingToken = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid or expired JWT")
	ErrForbidden    = errors.New("user not authorized for this application")
)

type contextKey string

const callerContextKey contextKey = "caller"

// Claims are the token claims IntraMind reads.
type Claims struct {
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens signed with a shared HMAC secret.
type Verifier struct {
	enabled       bool
	secret        []byte
	method        jwt.SigningMethod
	requiredGroup string
}

// NewVerifier builds a Verifier from cfg. A disabled config yields a
// Verifier that admits every request as an anonymous caller.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Verifier{enabled: cfg.Enabled, requiredGroup: cfg.RequiredGroup}
	if !cfg.Enabled {
		return v, nil
	}
	v.secret = []byte(cfg.JWTSecret)
	v.method = jwt.GetSigningMethod(cfg.Algorithm)
	return v, nil
}

// Enabled reports whether tokens are checked.
func (v *Verifier) Enabled() bool { return v.enabled }

// Verify validates tokenString and returns the caller it identifies.
// Signature, algorithm and expiry failures wrap ErrInvalidToken; a valid
// token without the required group wraps ErrForbidden.
func (v *Verifier) Verify(tokenString string) (domain.Caller, error) {
	if !v.enabled {
		return domain.Caller{Subject: "anonymous"}, nil
	}
	if tokenString == "" {
		return domain.Caller{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Caller{}, ErrInvalidToken
	}

	if v.requiredGroup != "" && !slices.Contains(claims.Groups, v.requiredGroup) {
		return domain.Caller{}, fmt.Errorf("%w: missing group %q", ErrForbidden, v.requiredGroup)
	}

	subject := claims.Subject
	if subject == "" {
		subject = "unknown"
	}
	return domain.Caller{Subject: subject, Groups: claims.Groups}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a valid token and stores the caller
// in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := v.Verify(BearerToken(r))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrForbidden) {
				status = http.StatusForbidden
			}
			hlog.FromRequest(r).Warn().Err(err).Int("status", status).Msg("request rejected")

			w.Header().Set("Content-Type", "application/json")
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail(err)})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func detail(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrMissingToken):
		return ErrMissingToken.Error()
	default:
		return ErrInvalidToken.Error()
	}
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the caller stored by Middleware.
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(domain.Caller)
	return caller, ok
}

// MintToken signs a development token for subject with the given groups.
func MintToken(cfg config.AuthConfig, subject, name string, groups []string, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", domain.NewConfigurationError("auth", "auth.jwt_secret is required to mint tokens")
	}
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return "", domain.NewConfigurationError("auth", "unsupported auth.algorithm %q", cfg.Algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return "", domain.NewConfigurationError("auth", "unsupported auth.algorithm %q", cfg.Algorithm)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		Name:   name,
		Groups: groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(method, claims).SignedString([]byte(cfg.JWTSecret))
}
