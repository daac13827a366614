package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/easydeed/reportscompany-sub005/internal/models"
	appErrors "github.com/easydeed/reportscompany-sub005/pkg/errors"
	"github.com/easydeed/reportscompany-sub005/pkg/response"
)

// ContextAccountKey is the gin context key storing account claims.
const ContextAccountKey = "currentAccount"

// ParseAccountToken validates an access token and returns its claims.
func ParseAccountToken(tokenString, secret string) (*models.AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccountClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AccountClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.AccountID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing account")
	}

	return claims, nil
}

// JWT protects routes by requiring a valid account access token.
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := ParseAccountToken(parts[1], secret)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextAccountKey, claims)
		c.Next()
	}
}
