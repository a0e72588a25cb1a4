package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorHandler renders classified errors as ErrorResponse. Internal errors
// are logged with the request id and reported with a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Classify(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

// Classify maps err to a status code and a caller-safe body.
func Classify(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind.HTTPStatus(), ErrorResponse{Error: ae.Kind.String(), Message: apperr.PublicMessage(ae)}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Code < http.StatusInternalServerError {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorResponse{Error: codeForStatus(he.Code), Message: msg}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   apperr.Internal.String(),
		Message: apperr.PublicMessage(err),
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.Validation.String()
	case http.StatusUnauthorized:
		return apperr.Unauthorized.String()
	case http.StatusForbidden:
		return apperr.Forbidden.String()
	case http.StatusNotFound:
		return apperr.NotFound.String()
	case http.StatusConflict:
		return apperr.Conflict.String()
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	}
	if status >= http.StatusInternalServerError {
		return apperr.Internal.String()
	}
	return "HTTP_ERROR"
}
