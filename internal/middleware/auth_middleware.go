package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ ID пользователя (HTTP middleware и gRPC interceptor).
	ContextUserIDKey ContextKey = "userID"
	// ContextRoleKey ключ роли пользователя из claim role.
	ContextRoleKey ContextKey = "userRole"
	// ContextScopeKey ключ claim scope (список через пробел).
	ContextScopeKey ContextKey = "tokenScope"

	authHeaderPrefix = "Bearer "
)

// Роли, которым доступ к премиальному контенту открыт без подписки.
const (
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

const (
	// ScopeAdmin открывает административные маршруты.
	ScopeAdmin = "admin"
	// ScopeAccessCheck разрешает сервисам проверять доступ чужих пользователей.
	ScopeAccessCheck = "billing:access"
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims - claims токена, выпущенного подсистемой пользователей.
type TokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope проверяет наличие scope в списке через пробел.
func (c *TokenClaims) HasScope(scope string) bool {
	return ScopeGranted(c.Scope, scope)
}

// ScopeGranted проверяет scope в строке claim scope.
func ScopeGranted(scopes, scope string) bool {
	return slices.Contains(strings.Fields(scopes), scope)
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth проверяет Bearer токен и кладет ID и роль пользователя в контекст.
// Если переданы scopes, токен должен содержать хотя бы один из них.
func (m *JWTMiddleware) RequireAuth(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, http.StatusUnauthorized, "Missing authorization token")
			return
		}
		if !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.validator.Validate(strings.TrimPrefix(authHeader, authHeaderPrefix))
		if err != nil {
			m.handleAuthError(c, http.StatusUnauthorized, fmt.Sprintf("Token validation failed: %v", err))
			return
		}

		if claims.Subject == "" {
			m.handleAuthError(c, http.StatusUnauthorized, "User ID (sub) missing in token")
			return
		}

		if len(requiredScopes) > 0 && !slices.ContainsFunc(requiredScopes, claims.HasScope) {
			m.handleAuthError(c, http.StatusForbidden, "Insufficient token permissions")
			return
		}

		c.Set(string(ContextUserIDKey), claims.Subject)
		c.Set(string(ContextRoleKey), claims.Role)
		m.log.Debugw("User authenticated via HTTP", "userID", claims.Subject, "role", claims.Role)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, status int, message string) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "error", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: status,
	}, status)
	c.Abort()
}

// UserID возвращает ID пользователя, положенный RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(string(ContextUserIDKey))
}

// Role возвращает роль пользователя, положенную RequireAuth.
func Role(c *gin.Context) string {
	return c.GetString(string(ContextRoleKey))
}

// DefaultTokenValidator проверяет HMAC подпись токена общим секретом.
type DefaultTokenValidator struct {
	Secret []byte
}

func NewTokenValidator(secret string) *DefaultTokenValidator {
	return &DefaultTokenValidator{Secret: []byte(secret)}
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
