package carrier

import (
	"fmt"
	"strings"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

var statusTable = map[string]status.Status{
	"NEW":           status.Ordered,
	"PROCESSING":    status.Ordered,
	"READY_TO_SHIP": status.Ordered,
	"SHIPPED":       status.Shipped,
	"DELIVERED":     status.Delivered,
	"CANCELLED":     status.Cancelled,
	"LOST":          status.Cancelled,
	"RTO":           status.Returned,
	"RTO_DELIVERED": status.Returned,
	"DAMAGED":       status.Returned,
	"RETURNED":      status.Returned,
	"RTO_CANCELLED": status.ReturnCancelled,
	"REFUNDED":      status.Refunded,
}

var notes = map[string]string{
	"NEW":           "Order registered with carrier",
	"PROCESSING":    "Carrier is processing the order",
	"READY_TO_SHIP": "Package is ready to ship",
	"SHIPPED":       "Package shipped",
	"DELIVERED":     "Package delivered",
	"CANCELLED":     "Shipment cancelled by carrier",
	"LOST":          "Package reported lost in transit",
	"RTO":           "Package is returning to origin",
	"RTO_DELIVERED": "Package returned to origin",
	"DAMAGED":       "Package damaged in transit and returned",
	"RETURNED":      "Package returned",
	"RTO_CANCELLED": "Return to origin cancelled",
	"REFUNDED":      "Refund processed by carrier",
}

// CanonicalStatus folds an external status into the table key form:
// upper case with single underscores between words.
func CanonicalStatus(ext string) string {
	r := strings.NewReplacer("-", " ", "_", " ")
	return strings.Join(strings.Fields(strings.ToUpper(r.Replace(ext))), "_")
}

// MapStatus translates a carrier status into the internal vocabulary. Unknown
// values return (status.Ordered, false); callers must not apply them.
func MapStatus(ext string) (status.Status, bool) {
	s, ok := statusTable[CanonicalStatus(ext)]
	if !ok {
		return status.Ordered, false
	}
	return s, true
}

// IsReturnToOrigin reports whether ext means the shipment is coming back to
// the seller without having been delivered.
func IsReturnToOrigin(ext string) bool {
	switch CanonicalStatus(ext) {
	case "RTO", "RTO_DELIVERED", "DAMAGED":
		return true
	}
	return false
}

// AuditNote renders the history note recorded for a carrier-driven change.
func AuditNote(ext, courier string) string {
	key := CanonicalStatus(ext)
	note, ok := notes[key]
	if !ok {
		note = fmt.Sprintf("Carrier reported status %s", key)
	}
	if courier = strings.TrimSpace(courier); courier != "" {
		note += " via " + courier
	}
	return note
}
