package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// contractHeader stamps every response with the contract version so
// clients can detect a server speaking a different wire format.
func contractHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			c.Response().Header().Set(ContractHeader, ContractVersion)
			return next(c)
		}
	}
}

// requestID assigns an id to each request unless the client supplied one.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := c.Request().Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, id)
			return next(c)
		}
	}
}

// rateLimit serializes paste bombs and runaway clients behind a token
// bucket shared across all callers. A limit of zero disables it.
func rateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if perSecond > 0 && !limiter.Allow() {
				return writeError(c, http.StatusTooManyRequests, "rate_limit_error",
					"too many requests", "slow down and retry")
			}
			return next(c)
		}
	}
}
