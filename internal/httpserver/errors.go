package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/internal/transport"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// httpStatus maps domain errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrQuantityExceeded),
		errors.Is(err, service.ErrReturnWindowExpired),
		errors.Is(err, service.ErrMissingDeliveryRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrValidation), errors.Is(err, carrier.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, carrier.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyProcessed), errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstreamCarrier):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func httpError(err error) (int, transport.ErrorResponse) {
	code := httpStatus(err)
	body := transport.ErrorResponse{Error: err.Error()}
	if code == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	var te *service.TransitionError
	if errors.As(err, &te) {
		body.Current = te.From
		body.Available = te.Available
	}
	return code, body
}

// fail logs err under event and writes the mapped response.
func fail(c echo.Context, event string, err error) error {
	code, body := httpError(err)
	l := logging.FromContext(c.Request().Context())
	if code >= http.StatusInternalServerError {
		l.Error(event, "status", code, "error", err)
	} else {
		l.Warn(event, "status", code, "error", err)
	}
	return c.JSON(code, body)
}

func badRequest(c echo.Context, event, msg string) error {
	logging.FromContext(c.Request().Context()).Warn(event, "status", http.StatusBadRequest, "error", msg)
	return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: msg})
}
