package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aotms/lms-backend/supabase"
)

const contextTokenKey = "bearerToken"

// bearerToken extracts the raw bearer token from the Authorization header.
// No validation happens here: the token's meaning is resolved by the backend
// when a token-bound client uses it.
func bearerToken(ctx echo.Context) string {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// tokenRequired rejects requests without a bearer token before any backend
// call and stashes the raw token for handlers.
func tokenRequired() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := bearerToken(ctx)
			if token == "" {
				return errMissingToken
			}
			ctx.Set(contextTokenKey, token)
			return next(ctx)
		}
	}
}

func contextToken(ctx echo.Context) string {
	if token, ok := ctx.Get(contextTokenKey).(string); ok {
		return token
	}
	return bearerToken(ctx)
}

// currentUser resolves the caller's identity from their token and returns the
// token-bound client alongside, so follow-up calls stay scoped to the caller.
func currentUser(ctx echo.Context, supa *supabase.Client) (*supabase.User, *supabase.Client, error) {
	client := supa.WithToken(contextToken(ctx))
	usr, err := client.GetUser(ctx.Request().Context())
	if err != nil {
		return nil, nil, errInvalidToken
	}
	return usr, client, nil
}
