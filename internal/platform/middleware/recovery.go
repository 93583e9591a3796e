package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperror"
)

const maxStackBytes = 8 << 10

// Recovery converts a handler panic into an internal apperror, so the body
// is rendered by apperror.HTTPErrorHandler like any other 500.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause := panicCause(r)

				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				logger.Error().
					Err(cause).
					Str("request_id", c.Response().Header().Get(RequestIDHeader)).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Bytes("stack", stack).
					Msg("handler panicked")

				err = apperror.Wrap(apperror.KindInternal, cause, "internal server error")
			}()
			return next(c)
		}
	}
}

func panicCause(r interface{}) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", e)
	}
	return errors.New(fmt.Sprint("panic: ", r))
}
