package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware authenticates interaction webhooks and attaches the
// acting principal to the request context.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs the middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle verifies the bearer token and stores the principal.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return apperrors.NewUnauthorized("malformed authorization header")
	}

	claims, err := m.tokens.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	principal := claims.Principal()
	c.Locals(principalKey, &principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok
}

// RequirePrincipal ensures a principal is attached to the request.
func RequirePrincipal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
