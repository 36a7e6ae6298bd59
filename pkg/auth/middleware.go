package auth

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	UserClaimsKey contextKey = "user_claims"
	UserIDKey     contextKey = "user_id"
)

// ErrUnauthenticated is returned by MustGetUserID when the request carried no valid token.
var ErrUnauthenticated = errors.New("unauthenticated")

// NewAuthInterceptor creates a ConnectRPC interceptor for authentication.
// Procedures listed in public may be called without a token; a token is still
// validated if one is sent.
func NewAuthInterceptor(signer *Signer, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				if _, ok := open[req.Spec().Procedure]; ok {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			userID, err := claims.UserID()
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			ctx = context.WithValue(ctx, UserClaimsKey, claims)
			ctx = context.WithValue(ctx, UserIDKey, userID)

			return next(ctx, req)
		}
	}
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetUserID retrieves the user ID from the context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

// MustGetUserID is GetUserID for handlers that sit behind the interceptor.
func MustGetUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := GetUserID(ctx)
	if !ok {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, ErrUnauthenticated)
	}
	return id, nil
}
