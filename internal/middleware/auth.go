package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fixnow-app/fixnow/internal/engine"
	"github.com/fixnow-app/fixnow/internal/utils"
)

// ActorAuth validates the bearer token and stores the actor identity on the
// request context for handlers to read via Actor().
func ActorAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := utils.ParseActorToken(c.Request().Header.Get("Authorization"), secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set("actor", actor)
			return next(c)
		}
	}
}

// Actor returns the authenticated actor set by ActorAuth.
func Actor(c echo.Context) (engine.Actor, bool) {
	actor, ok := c.Get("actor").(engine.Actor)
	return actor, ok && actor.ID != ""
}
