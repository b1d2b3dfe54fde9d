// Package auth provides bearer-token authentication for the gateway
package auth

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apperrors "github.com/lifeboard/lifeboard/internal/common/errors"
)

const (
	// ContextKeyUserID is the gin context key the authenticated user id is stored under
	ContextKeyUserID = "user_id"
)

// Claims represents the JWT claims issued by the lifeboard auth service
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens and resolves the calling user
type Validator struct {
	secret []byte
	logger *zap.Logger
}

// NewValidator creates a token validator with the shared HMAC secret
func NewValidator(secret string, logger *zap.Logger) *Validator {
	return &Validator{
		secret: []byte(secret),
		logger: logger,
	}
}

// ParseToken validates the token signature and expiry and returns its claims
func (v *Validator) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		// Fall back to the registered subject claim
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user identity")
	}

	return claims, nil
}

// RequireUser returns a middleware that rejects requests without a valid
// bearer token and stores the resolved user id in the context.
func (v *Validator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			apperrors.HandleError(c, apperrors.Unauthorized("Missing or invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := v.ParseToken(tokenString)
		if err != nil {
			v.logger.Debug("Token validation failed", zap.Error(err))
			apperrors.HandleError(c, apperrors.Unauthorized("Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID retrieves the authenticated user id from the gin context
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get(ContextKeyUserID); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// extractBearerToken pulls the token out of the Authorization header
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
