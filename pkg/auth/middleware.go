package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader               = "Authorization"
	tokenPrefix               = "Bearer "
	tokenQueryParam           = "token"
	UserClaimsKey  contextKey = "user_claims"
	UserIDKey      contextKey = "user_id"
)

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrBadFormat    = errors.New("invalid authorization header format")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// InterceptorOption configures NewAuthInterceptor.
type InterceptorOption func(*interceptorConfig)

type interceptorConfig struct {
	public map[string]bool
}

// WithPublicProcedures lets the listed procedures through without a token.
// A token that is present is still validated and injected.
func WithPublicProcedures(procedures ...string) InterceptorOption {
	return func(c *interceptorConfig) {
		for _, p := range procedures {
			c.public[p] = true
		}
	}
}

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
func NewAuthInterceptor(signer *Signer, opts ...InterceptorOption) connect.UnaryInterceptorFunc {
	cfg := &interceptorConfig{public: make(map[string]bool)}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" && cfg.public[req.Spec().Procedure] {
				return next(ctx, req)
			}

			claims, err := claimsFromHeader(signer, authHeader)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithClaims(ctx, claims), req)
		}
	}
}

// AuthenticateRequest validates the bearer token of a plain HTTP request.
// Browsers cannot set headers on WebSocket upgrades, so the token query
// parameter is accepted as a fallback.
func AuthenticateRequest(signer *Signer, r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get(tokenHeader)
	if authHeader == "" {
		if token := r.URL.Query().Get(tokenQueryParam); token != "" {
			authHeader = tokenPrefix + token
		}
	}
	return claimsFromHeader(signer, authHeader)
}

func claimsFromHeader(signer *Signer, authHeader string) (*Claims, error) {
	if authHeader == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(authHeader, tokenPrefix) {
		return nil, ErrBadFormat
	}

	claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WithClaims injects validated claims into the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserClaimsKey, claims)
	return context.WithValue(ctx, UserIDKey, claims.Subject)
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetUserID retrieves the user ID from the context.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := GetUserID(ctx)
	if !ok {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}
