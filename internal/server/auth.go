package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ragchat/internal/core"
)

const bearerPrefix = "Bearer "

// AuthMiddleware requires "Authorization: Bearer <masterKey>" on every
// request except skipPaths and CORS preflights. An empty masterKey disables
// the check.
func AuthMiddleware(masterKey string, skipPaths []string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	want := []byte(masterKey)

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(c echo.Context) bool {
			req := c.Request()
			return masterKey == "" || req.Method == http.MethodOptions || skip[req.URL.Path]
		},
		KeyLookup: "header:" + echo.HeaderAuthorization + ":" + bearerPrefix,
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), want) == 1, nil
		},
		ErrorHandler: func(_ error, c echo.Context) error {
			return handleError(c, core.NewAuthenticationError("", authFailure(c.Request().Header.Get(echo.HeaderAuthorization))))
		},
	})
}

// authFailure explains why header was rejected.
func authFailure(header string) string {
	switch {
	case header == "":
		return "missing authorization header"
	case !strings.HasPrefix(header, bearerPrefix):
		return "invalid authorization header format, expected 'Bearer <token>'"
	default:
		return "invalid master key"
	}
}
