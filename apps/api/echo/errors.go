package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// statusOf maps an error to its HTTP status and response body. ok is false for unexpected errors.
func statusOf(err error) (code int, message interface{}, ok bool) {
	var (
		httpErr *echo.HTTPError
		valErrs validator.ValidationErrors
		appErr  *core.ValidationError
	)
	switch {
	case errors.Is(err, middleware.ErrJWTMissing):
		return http.StatusUnauthorized, middleware.ErrJWTMissing.Message, true

	case errors.As(err, &httpErr):
		if inner, isHTTP := httpErr.Internal.(*echo.HTTPError); isHTTP {
			httpErr = inner
		}
		return httpErr.Code, httpErr.Message, true

	case errors.As(err, &valErrs):
		flds := make(map[string]string, len(valErrs))
		for _, fe := range valErrs {
			flds[fe.Field()] = fe.Error()
		}
		return http.StatusBadRequest, flds, true

	case errors.As(err, &appErr):
		if len(appErr.Fields) == 0 {
			return http.StatusBadRequest, appErr.Error(), true
		}
		flds := make(map[string]string, len(appErr.Fields))
		for _, fe := range appErr.Fields {
			flds[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, flds, true

	case errors.Is(err, core.ErrAlreadyRunning):
		return http.StatusConflict, core.ErrAlreadyRunning.Error(), true

	case errors.Is(err, core.ErrDisposed):
		return http.StatusServiceUnavailable, core.ErrDisposed.Error(), true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler renders errors as JSON. Unexpected errors are logged and hidden
// behind a 500 unless the server runs in debug mode.
func newAppHTTPErrorHandler(logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message, ok := statusOf(err)
		if !ok {
			args := []interface{}{"error", err, "path", ctx.Path()}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, "subject", claims.Subject)
			}
			logger.Error("request failed", args...)
		}
		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, isStr := message.(string); isStr {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
