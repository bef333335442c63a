// README: Auth middleware. Verifies the bearer ID token, upserts the user and
// attaches the stored role as the request actor.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/infra"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

const (
	ctxUserKey  = "unieats.user"
	ctxActorKey = "unieats.actor"
)

// SignInFunc resolves a verified identity to the stored user.
type SignInFunc func(ctx context.Context, id user.Identity) (*user.User, error)

func Auth(verifier infra.TokenVerifier, signIn SignInFunc, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			logger.Debug("token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		u, err := signIn(c.Request.Context(), id)
		if errors.Is(err, errs.ErrValidation) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}
		if err != nil {
			logger.Error("sign in failed", "subject", id.Subject, "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user directory unavailable"})
			return
		}
		c.Set(ctxUserKey, u)
		c.Set(ctxActorKey, u.Actor())
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// Actor returns the authenticated caller.
func Actor(c *gin.Context) (types.Actor, bool) {
	v, ok := c.Get(ctxActorKey)
	if !ok {
		return types.Actor{}, false
	}
	a, ok := v.(types.Actor)
	return a, ok
}

func CurrentUser(c *gin.Context) *user.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}
