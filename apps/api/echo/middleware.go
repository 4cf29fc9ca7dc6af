package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/user"
	metricsvc "github.com/newstandard/academy/services/metrics"
	ratelimitsvc "github.com/newstandard/academy/services/ratelimit"
)

// adminMiddleware only lets admins through; when roles are given the admin must also hold one of them.
func adminMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return userMiddleware(svc, func(ctx echo.Context, usr user.User) bool {
		return usr.IsAdmin() && contextHasAnyRole(ctx, roles)
	})
}

// contentManagerMiddleware lets admins and editors through.
func contentManagerMiddleware(svc user.Service) echo.MiddlewareFunc {
	return userMiddleware(svc, func(_ echo.Context, usr user.User) bool {
		return usr.CanManageContent()
	})
}

func leaderMiddleware(svc user.Service) echo.MiddlewareFunc {
	return userMiddleware(svc, func(_ echo.Context, usr user.User) bool {
		return usr.IsLeader() || usr.IsAdmin()
	})
}

func userMiddleware(svc user.Service, allowed func(echo.Context, user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allowed(ctx, usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware limits hits per client IP on the route. Limiter failures let the request through.
func rateLimitMiddleware(limiter ratelimitsvc.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limiter == nil {
				return next(ctx)
			}
			key := ctx.Path() + ":" + ctx.RealIP()
			ok, err := limiter.Allow(ctx.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", errors.Wrap(err, key))
				return next(ctx)
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// metricsMiddleware counts requests per route and status code.
func metricsMiddleware(m *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the status before reading it
				ctx.Error(err)
			}
			m.ObserveRequest(ctx.Request().Method, ctx.Path(), ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
