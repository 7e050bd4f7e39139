package middleware

import (
	"context"
	"strings"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/core/services"
	apperrors "splitstream/pkg/errors"
	"splitstream/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ActorKey = "actor_id"
	TierKey  = "tier"
)

type identityKey struct{}

type identity struct {
	actor domain.ActorID
	tier  domain.Tier
}

// ContextIdentity reads the identity stored by IdentityMiddleware.
type ContextIdentity struct{}

var _ ports.IdentityProvider = ContextIdentity{}

func (ContextIdentity) CurrentActor(ctx context.Context) (domain.ActorID, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	if !ok || id.actor.IsAnonymous() {
		return "", false
	}
	return id.actor, true
}

// CurrentTier returns the effective tier stored in ctx, or free.
func CurrentTier(ctx context.Context) domain.Tier {
	if id, ok := ctx.Value(identityKey{}).(identity); ok && id.tier != "" {
		return id.tier
	}
	return domain.TierFree
}

func withIdentity(ctx context.Context, actor domain.ActorID, tier domain.Tier) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, identity{actor: actor, tier: tier})
	if !actor.IsAnonymous() {
		ctx = logger.WithActorID(ctx, string(actor))
	}
	return ctx
}

// IdentityMiddleware resolves an optional bearer token. Requests without one
// continue as anonymous on the free tier; a malformed or invalid token is rejected.
func IdentityMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Request = c.Request.WithContext(withIdentity(c.Request.Context(), "", domain.TierFree))
			c.Set(TierKey, domain.TierFree)
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			abortWithError(c, apperrors.WrapError(err, apperrors.ErrCodeUnauthorized, err.Error(), 401))
			return
		}

		tier := authService.EffectiveTier(claims)
		c.Set(ActorKey, claims.ActorID)
		c.Set(TierKey, tier)
		c.Request = c.Request.WithContext(withIdentity(c.Request.Context(), claims.ActorID, tier))
		c.Next()
	}
}

// RequireActor rejects anonymous requests.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := (ContextIdentity{}).CurrentActor(c.Request.Context()); !ok {
			abortWithError(c, apperrors.FromDomain(domain.ErrAuthRequired))
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(appErr))
}

func errorBody(appErr *apperrors.AppError) gin.H {
	body := gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Context) > 0 {
		body["details"] = appErr.Context
	}
	return body
}
