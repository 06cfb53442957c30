// Package auth resolves the caller identity from an HS256 bearer token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/identity"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey string

const userKey contextKey = "caller"

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssueToken signs a token whose subject is username.
func IssueToken(secret []byte, issuer, username string, role identity.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type Authenticator struct {
	secret    []byte
	issuer    string
	directory identity.Directory
	logger    zerolog.Logger
}

func NewAuthenticator(secret []byte, issuer string, directory identity.Directory, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret:    secret,
		issuer:    issuer,
		directory: directory,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Issue signs a token with this authenticator's key and issuer.
func (a *Authenticator) Issue(username string, role identity.Role, ttl time.Duration) (string, error) {
	return IssueToken(a.secret, a.issuer, username, role, ttl)
}

// Parse validates a raw token and returns its claims.
func (a *Authenticator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware attaches the stored user named by the token subject to the
// request context. The stored role is authoritative, not the claim.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		claims, err := a.Parse(raw)
		if err != nil {
			a.logger.Debug().Err(err).Msg("rejecting token")
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrInvalidToken.Error())
			return
		}

		user, err := a.directory.GetUserByUsername(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
				return
			}
			a.logger.Error().Err(err).Str("username", claims.Subject).Msg("load user")
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load user")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), *user)))
	})
}

// RequireRole lets through only callers whose role is listed.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", ErrMissingToken.Error())
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("role %s may not access this resource", user.Role))
		})
	}
}

func WithUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userKey).(identity.User)
	return u, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "details": details})
}
