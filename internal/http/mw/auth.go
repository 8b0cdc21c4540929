// Package mw contains HTTP middleware for the recherche-api.
package mw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/service"
)

// Security scheme names shared between operation registrations, the
// OpenAPI config and the auth middleware.
const (
	// SchemePartnerKey marks partner operations authenticated via X-API-Key.
	SchemePartnerKey = "partnerKey"
	// SchemeAdminToken marks admin operations authenticated via bearer JWT.
	SchemeAdminToken = "adminToken"
)

// HeaderAPIKey is the request header carrying the partner API key.
const HeaderAPIKey = "X-API-Key"

// ContextKey is a type for context keys.
type ContextKey string

const (
	// PartnerContextKey is the context key for the authenticated partner.
	PartnerContextKey ContextKey = "partner"
	// AdminClaimsContextKey is the context key for admin token claims.
	AdminClaimsContextKey ContextKey = "admin_claims"
)

// AdminClaims are the JWT claims accepted on the admin surface.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig holds dependencies for the auth middleware.
type AuthConfig struct {
	Partners  *service.PartnerService
	JWTSecret []byte
}

// Auth returns a Huma middleware that authenticates based on operation
// security. Partner operations resolve X-API-Key to a partner row; admin
// operations validate an HS256 JWT with role=admin. Operations without a
// security requirement pass through untouched.
func Auth(api huma.API, cfg AuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil {
			next(ctx)
			return
		}

		switch RequiredScheme(op) {
		case SchemePartnerKey:
			authenticatePartner(api, ctx, next, cfg.Partners)
		case SchemeAdminToken:
			authenticateAdmin(api, ctx, next, cfg.JWTSecret)
		default:
			next(ctx)
		}
	}
}

func authenticatePartner(api huma.API, ctx huma.Context, next func(huma.Context), partners *service.PartnerService) {
	key := ctx.Header(HeaderAPIKey)
	if key == "" {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing api key")
		return
	}

	partner, err := partners.Authenticate(ctx.Context(), key)
	if err != nil {
		slog.Error("api key lookup failed", "error", err)
		huma.WriteErr(api, ctx, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	if partner == nil {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid api key")
		return
	}
	if partner.Suspended {
		huma.WriteErr(api, ctx, http.StatusForbidden, "partner suspended")
		return
	}

	newCtx := context.WithValue(ctx.Context(), PartnerContextKey, partner)
	next(huma.WithContext(ctx, newCtx))
}

func authenticateAdmin(api huma.API, ctx huma.Context, next func(huma.Context), secret []byte) {
	authHeader := ctx.Header("Authorization")
	if authHeader == "" {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
		return
	}

	token := authHeader
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	claims, err := ParseAdminToken(token, secret)
	if err != nil {
		slog.Debug("admin token rejected", "error", err)
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
		return
	}
	if claims.Role != "admin" {
		huma.WriteErr(api, ctx, http.StatusForbidden, "admin access required")
		return
	}

	newCtx := context.WithValue(ctx.Context(), AdminClaimsContextKey, claims)
	next(huma.WithContext(ctx, newCtx))
}

// ParseAdminToken validates an HS256 admin JWT and returns its claims.
func ParseAdminToken(token string, secret []byte) (*AdminClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequiredScheme returns the security scheme an operation declares, or
// the empty string for public operations.
func RequiredScheme(op *huma.Operation) string {
	for _, req := range op.Security {
		if _, ok := req[SchemePartnerKey]; ok {
			return SchemePartnerKey
		}
		if _, ok := req[SchemeAdminToken]; ok {
			return SchemeAdminToken
		}
	}
	return ""
}

// GetPartner retrieves the authenticated partner from context.
func GetPartner(ctx context.Context) *models.Partner {
	partner, ok := ctx.Value(PartnerContextKey).(*models.Partner)
	if !ok {
		return nil
	}
	return partner
}

// GetAdminClaims retrieves admin token claims from context.
func GetAdminClaims(ctx context.Context) *AdminClaims {
	claims, ok := ctx.Value(AdminClaimsContextKey).(*AdminClaims)
	if !ok {
		return nil
	}
	return claims
}
