package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// The caller's user ID is resolved once per request and carried as a typed
// context value. Handlers never read identity from the request body.
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (shared.UserID, error)
}

var (
	// ErrMissingCredentials is returned when a request carries no identity.
	ErrMissingCredentials = shared.NewDomainError("auth", "Authenticate", shared.ErrUnauthorized, "credentials are required")

	// ErrInvalidCredentials is returned when the identity cannot be verified.
	ErrInvalidCredentials = shared.NewDomainError("auth", "Authenticate", shared.ErrUnauthorized, "credentials are invalid")
)

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user.
func WithUserID(ctx context.Context, id shared.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (shared.UserID, bool) {
	id, ok := ctx.Value(userIDKey{}).(shared.UserID)
	return id, ok && id.IsValid()
}

// ─────────────────────────────────────────────────────────────────────────────
// JWT bearer
// ─────────────────────────────────────────────────────────────────────────────

// JWTAuthenticator accepts HS256 bearer tokens and takes the user from "sub".
type JWTAuthenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// JWTOption configures a JWTAuthenticator.
type JWTOption func(*JWTAuthenticator)

// WithIssuer requires tokens to carry the given "iss" claim.
func WithIssuer(iss string) JWTOption {
	return func(a *JWTAuthenticator) { a.issuer = iss }
}

// WithLeeway tolerates clock skew when checking time claims.
func WithLeeway(d time.Duration) JWTOption {
	return func(a *JWTAuthenticator) { a.leeway = d }
}

// NewJWTAuthenticator creates a JWT authenticator with a shared secret.
func NewJWTAuthenticator(secret string, opts ...JWTOption) (*JWTAuthenticator, error) {
	if len(secret) < 16 {
		return nil, shared.NewDomainError("auth", "NewJWTAuthenticator", shared.ErrInvalidConfig, "JWT secret must be at least 16 bytes")
	}
	a := &JWTAuthenticator{secret: []byte(secret), leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (shared.UserID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidCredentials
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		return "", shared.WrapError("auth", "Authenticate", shared.ErrUnauthorized, "credentials are invalid", err)
	}

	id, err := shared.NewUserID(claims.Subject)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

// IssueToken signs a token for userID. Used by tooling and tests.
func (a *JWTAuthenticator) IssueToken(userID shared.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ─────────────────────────────────────────────────────────────────────────────
// Trusted proxy header
// ─────────────────────────────────────────────────────────────────────────────

// DefaultUserHeader is the header a trusted gateway sets after authenticating.
const DefaultUserHeader = "X-User-ID"

// HeaderAuthenticator trusts a header set by an authenticating proxy.
// Only deploy it behind a proxy that strips the header from client requests.
type HeaderAuthenticator struct {
	header string
}

// NewHeaderAuthenticator creates a header authenticator. An empty name uses
// DefaultUserHeader.
func NewHeaderAuthenticator(header string) *HeaderAuthenticator {
	if header == "" {
		header = DefaultUserHeader
	}
	return &HeaderAuthenticator{header: header}
}

// Authenticate implements Authenticator.
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (shared.UserID, error) {
	raw := r.Header.Get(a.header)
	if raw == "" {
		return "", ErrMissingCredentials
	}
	id, err := shared.NewUserID(raw)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireIdentity rejects requests the authenticator cannot resolve.
func (s *Server) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.auth.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrMissingCredentials) {
				s.logger.Debug("authentication failed",
					logger.String("request_id", getRequestID(r.Context())),
					logger.Err(err),
				)
			}
			s.writeError(w, r, err)
			return
		}
		if rw, ok := w.(*responseWriter); ok {
			rw.userID = id
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	}
}
