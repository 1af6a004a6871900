package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/tally"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextNameKey stores the member's roster name; the access log reads it too.
	ContextNameKey = "userName"
	// ContextTokenKey keeps the raw bearer token for logout.
	ContextTokenKey = "token"
	// ContextClaimsKey keeps the parsed claims.
	ContextClaimsKey = "claims"
)

// TokenChecker confirms a parsed token still matches the member's stored
// credential version.
type TokenChecker interface {
	CheckToken(ctx context.Context, name string, version uint) error
}

// AuthRequired ensures the request is authenticated via JWT. With a non-nil
// checker, tokens issued before a password change or reset are refused.
func AuthRequired(checker TokenChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(ctx.Request.Context(), tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		if checker != nil {
			if err := checker.CheckToken(ctx.Request.Context(), claims.Name, claims.Version); err != nil {
				if errors.Is(err, usecase.ErrPersistence) {
					utils.Sugar.Errorw("token check failed", "name", claims.Name, "err", err)
					utils.Error(ctx, http.StatusInternalServerError, 50010, "could not verify session, please retry")
				} else {
					utils.Error(ctx, http.StatusUnauthorized, 40108, "session expired, please log in again")
				}
				ctx.Abort()
				return
			}
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextNameKey, claims.Name)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// AdminRequired lets through members listed in admins. Must run after AuthRequired.
func AdminRequired(admins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		allowed[tally.FoldName(a)] = struct{}{}
	}
	return func(ctx *gin.Context) {
		name := ctx.GetString(ContextNameKey)
		if _, ok := allowed[tally.FoldName(name)]; !ok || name == "" {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin only")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// CurrentName returns the authenticated member's roster name.
func CurrentName(ctx *gin.Context) string {
	return ctx.GetString(ContextNameKey)
}
