package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mindcheck/internal/domain/auth"
	apperrors "github.com/yanqian/mindcheck/pkg/errors"
)

func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "Missing Authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <token>", nil))
			return
		}
		claims, err := svc.ValidateToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			status := http.StatusForbidden
			code := auth.CodeInvalidToken
			message := "Invalid or expired token"
			if !apperrors.IsCode(err, auth.CodeInvalidToken) {
				status = http.StatusInternalServerError
				code = "auth_failed"
				message = "failed to validate token"
			}
			abortWithError(c, NewHTTPError(status, code, message, err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}
