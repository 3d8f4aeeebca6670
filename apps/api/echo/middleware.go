package echoapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/darasahq/darasa/core/ratelimit"
	"github.com/darasahq/darasa/core/user"
)

// rateLimitMiddleware counts every request against the (route, client IP)
// key and rejects over-limit ones before any other processing. Limit state
// headers go out on every response, allowed or not.
func rateLimitMiddleware(store ratelimit.Store, rules *ratelimit.Rules) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			policy := rules.PolicyFor(req.Method, ctx.Path())
			res := store.Take(ratelimit.Key(ctx.Path(), ctx.RealIP()), policy)

			h := ctx.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", res.ResetAt.UTC().Format(time.RFC3339))

			if !res.Allowed {
				retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return ctx.JSON(http.StatusTooManyRequests, echo.Map{
					"error":      "too many requests",
					"retryAfter": retryAfter,
				})
			}
			return next(ctx)
		}
	}
}

// adminMiddleware requires the session principal to be an admin; with roles
// given, one of those exact roles.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPayload(ctx)
			if err != nil {
				return err
			}
			if !strings.HasPrefix(p.Role, user.RoleAdmin) {
				return errHttpForbidden
			}
			if len(roles) > 0 {
				for _, role := range roles {
					if p.Role == role {
						return next(ctx)
					}
				}
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
