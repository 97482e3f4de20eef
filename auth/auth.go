/*
Package auth resolves who is calling and on behalf of which gym.

PURPOSE:
  Every request carries a signed token. The middleware parses it once into
  a Principal and stores it in the request context; handlers never read
  headers or claims themselves.

TENANT RESOLUTION:
  Non-admin staff always act on their own gym. Admins may act on any gym
  named in the X-Gimnasio header, and on their own gym when it is absent.

ROLES:
  ADMIN      all gyms, all operations
  GERENTE    own gym, catalog, stock counts, cancellations and reports
  RECEPCION  own gym, sales, memberships, check-in and its cash session
             from open to close

SEE ALSO:
  - api/server.go: Middleware wiring
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/gym-desk/generic"
)

// Role is a staff role.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleGerente   Role = "GERENTE"
	RoleRecepcion Role = "RECEPCION"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleGerente || r == RoleRecepcion }

// TenantHeader names the gym an admin is acting on.
const TenantHeader = "X-Gimnasio"

// Principal is the authenticated caller.
type Principal struct {
	UserID   string
	Role     Role
	TenantID generic.TenantID
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// EffectiveTenant returns the tenant the request acts on. viewTenant is the
// value of the X-Gimnasio header, possibly empty.
func (p Principal) EffectiveTenant(viewTenant string) (generic.TenantID, error) {
	viewTenant = strings.TrimSpace(viewTenant)
	if viewTenant == "" || generic.TenantID(viewTenant) == p.TenantID {
		if p.TenantID == "" {
			return "", generic.ErrForbiddenTenant
		}
		return p.TenantID, nil
	}
	if !p.IsAdmin() {
		return "", generic.ErrForbiddenTenant
	}
	return generic.TenantID(viewTenant), nil
}

// =============================================================================
// TOKENS
// =============================================================================

// Claims are the JWT claims carried by staff tokens.
type Claims struct {
	Role     string `json:"role"`
	TenantID string `json:"gym"`
	jwt.RegisteredClaims
}

// Maker signs and parses HS256 tokens.
type Maker struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewMaker(secretKey string, ttl time.Duration) *Maker {
	return &Maker{secretKey: secretKey, tokenTTL: ttl, now: time.Now}
}

// GenerateToken signs a token for p.
func (m *Maker) GenerateToken(p Principal) (string, error) {
	now := m.now()
	claims := Claims{
		Role:     string(p.Role),
		TenantID: string(p.TenantID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// ParseToken validates tokenStr and returns its principal.
func (m *Maker) ParseToken(tokenStr string) (*Principal, error) {
	const op = "auth.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%s: unknown role %q", op, claims.Role)
	}
	return &Principal{
		UserID:   claims.Subject,
		Role:     role,
		TenantID: generic.TenantID(claims.TenantID),
	}, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

var errUnauthenticated = errors.New("missing or invalid authorization header")

type errorBody struct {
	Error string `json:"error"`
}

// Middleware authenticates the Bearer token and stores the principal.
func Middleware(maker *Maker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				deny(w, r, http.StatusUnauthorized, errUnauthenticated.Error())
				return
			}
			p, err := maker.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				deny(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *p)))
		})
	}
}

// RequireRole rejects principals whose role is not listed. Admins always pass.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, errUnauthenticated.Error())
				return
			}
			if p.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, r, http.StatusForbidden, "role not allowed")
		})
	}
}

// Tenant resolves the request's effective tenant from its principal and
// the X-Gimnasio header.
func Tenant(r *http.Request) (generic.TenantID, error) {
	p, ok := FromContext(r.Context())
	if !ok {
		return "", generic.ErrForbiddenTenant
	}
	return p.EffectiveTenant(r.Header.Get(TenantHeader))
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: msg})
}
