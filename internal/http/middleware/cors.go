package middleware

import (
	echo "github.com/labstack/echo/v4"
)

// CORS allows any origin to POST to the relay. Headers are set before the
// handler runs so error responses carry them too. Preflight requests are
// answered by the handler itself with 200.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
			h.Set(echo.HeaderAccessControlAllowHeaders, echo.HeaderContentType)
			return next(c)
		}
	}
}
