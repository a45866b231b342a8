// Package auth verifies bearer tokens issued by the sign-in front end and
// attaches the caller's account to the request context.
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
	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// ErrUnauthorized covers missing, malformed, expired and forged tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Claims are the identity assertions carried by a session token.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewVerifier builds a Verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, parser: jwt.NewParser(opts...)}, nil
}

// Verify parses token and returns the principal it asserts.
func (v *Verifier) Verify(token string) (portfolio.Principal, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return portfolio.Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return portfolio.Principal{}, fmt.Errorf("%w: token lacks subject or email", ErrUnauthorized)
	}
	return portfolio.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  portfolio.Optional(claims.Name),
		Image: portfolio.Optional(claims.Picture),
	}, nil
}

// Sign mints a token for p valid for ttl. Used by tooling and tests.
func (v *Verifier) Sign(p portfolio.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   p.Email,
		Name:    portfolio.Deref(p.Name),
		Picture: portfolio.Deref(p.Image),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, user portfolio.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (portfolio.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(portfolio.User)
	return user, ok
}

// Middleware rejects unauthenticated requests with 401. Verified callers are
// upserted into users so their row always exists before any handler runs.
func Middleware(v *Verifier, users portfolio.UserStore, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			principal, err := v.Verify(token)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				unauthorized(w)
				return
			}
			user, err := users.EnsureUser(r.Context(), principal)
			if err != nil {
				logger.Error("ensure user failed", zap.String("user_id", principal.ID), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="portfolio"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
