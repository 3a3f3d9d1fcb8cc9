package middleware

import (
	"errors"
	"net/http"

	"storefront-order-service/internal/auth"
	"storefront-order-service/internal/dto"
	"storefront-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys for user info
const (
	CtxUserID   = "user_id"
	CtxUserRole = "user_role"
)

// AuthRequired проверяет Bearer токен и кладёт личность в контекст запроса.
func AuthRequired(v auth.Verifier, log *zap.Logger) gin.HandlerFunc {
	return authenticate(v, log, true)
}

// AuthOptional пропускает запросы без заголовка Authorization как гостевые,
// но неверный токен всё равно отклоняет.
func AuthOptional(v auth.Verifier, log *zap.Logger) gin.HandlerFunc {
	return authenticate(v, log, false)
}

func authenticate(v auth.Verifier, log *zap.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("missing Authorization header"))
				return
			}
			c.Next()
			return
		}
		token, ok := auth.ExtractBearerToken(authz)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid Authorization header"))
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("empty token"))
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				log.Warn("token verification failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid token"))
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Set(CtxUserID, id.UserID.String())
		c.Set(CtxUserRole, string(id.Role))
		c.Next()
	}
}

// AdminOnly must run after AuthRequired.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := service.RoleFromContext(c.Request.Context()); role != service.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}
