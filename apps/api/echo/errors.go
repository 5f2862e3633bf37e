package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/core"
	"github.com/aotms/lms-backend/supabase"
)

var (
	errMissingToken   = echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
	errInvalidToken   = echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	errTableForbidden = echo.NewHTTPError(http.StatusForbidden, "Access denied to table")
	errNoFileUploaded = echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")

	// fixed message the frontend matches on; keep verbatim
	payloadTooLargeMsg = "Request entity too large. Please reduce the size of your data or " +
		"upload images via the dedicated endpoint."
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Backend (Supabase) error messages are passed through verbatim on 500s: this
// is an internal tool and the raw reason is worth more than a sanitized one.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
			if code == http.StatusRequestEntityTooLarge {
				message = payloadTooLargeMsg
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *supabase.AuthError:
			// handlers translate auth failures themselves; this is the fallback
			code = origErr.Status
			message = origErr.Message
		case *supabase.Error:
			// any backend table/storage error the handler did not shim
			code = http.StatusInternalServerError
			message = origErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = "Internal server error"

			if logger != nil {
				logger.Error("Internal server error", errors.Wrap(err, "unhandled"))
			}
			// shutting down...
			if core.IsShutdown(err) && logger != nil {
				logger.Fatal("shutdown error", err)
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
