package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

var (
	ErrValidation            = errors.New("validation")               // 400
	ErrForbidden             = errors.New("forbidden")                // 403
	ErrOrderNotFound         = errors.New("order not found")          // 404
	ErrItemNotFound          = errors.New("item not found")           // 404
	ErrAlreadyProcessed      = errors.New("already processed")        // 409
	ErrConflict              = errors.New("conflict")                 // 409
	ErrInvalidTransition     = errors.New("invalid transition")       // 422
	ErrQuantityExceeded      = errors.New("quantity exceeded")        // 422
	ErrReturnWindowExpired   = errors.New("return window expired")    // 422
	ErrMissingDeliveryRecord = errors.New("missing delivery record")  // 422
	ErrUpstreamCarrier       = errors.New("upstream carrier failure") // 502
)

// TransitionError describes a rejected status change together with the
// statuses that would have been accepted.
type TransitionError struct {
	From      status.Status
	To        status.Status
	Available []status.Status
}

func (e *TransitionError) Error() string {
	avail := "none"
	if len(e.Available) > 0 {
		names := make([]string, len(e.Available))
		for i, s := range e.Available {
			names[i] = s.String()
		}
		avail = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s: cannot move from %q to %q (available: %s)", ErrInvalidTransition, e.From, e.To, avail)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func invalidTransition(from, to status.Status) error {
	return &TransitionError{From: from, To: to, Available: status.Next(from)}
}
