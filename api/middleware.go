package api

import (
	"errors"
	"net/http"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/avolkoff/tourbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// ActorFromHeaders pulls the acting identity from headers set by the auth
// proxy in front of this service. Authentication itself happens upstream.
func ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorKey, booking.Actor{
			ID:    c.GetHeader("X-Actor-Id"),
			Role:  c.GetHeader("X-Actor-Role"),
			Email: c.GetHeader("X-Actor-Email"),
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) booking.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(booking.Actor); ok {
			return actor
		}
	}
	return booking.Actor{}
}

// RequireRoles rejects requests whose actor role is not in the allow list.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if _, ok := allowed[actor.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// statusFor maps the error taxonomy onto HTTP statuses. A version conflict
// gets its own status so callers know to re-read and retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
