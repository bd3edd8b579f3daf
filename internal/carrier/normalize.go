package carrier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedPayload = errors.New("malformed payload")

// Family selects how a webhook is applied.
type Family string

const (
	FamilyOrder    Family = "order"
	FamilyReturn   Family = "return"
	FamilyTracking Family = "tracking"
)

// Event is the canonical form of a carrier callback, whatever shape it
// arrived in.
type Event struct {
	OrderID         string          `json:"order_id"`
	ShipmentID      string          `json:"shipment_id,omitempty"`
	Status          string          `json:"status,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	CourierName     string          `json:"courier_name,omitempty"`
	AWBCode         string          `json:"awb_code,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Reason          string          `json:"reason,omitempty"`
	RawTrackingData json.RawMessage `json:"raw_tracking_data,omitempty"`
}

// Field precedence, most specific first.
var (
	orderIDKeys   = []string{"order_id", "external_order_id", "channel_order_id"}
	statusKeys    = []string{"current_status", "shipment_status", "status"}
	shipmentKeys  = []string{"shipment_id", "sr_shipment_id"}
	awbKeys       = []string{"awb", "awb_code"}
	courierKeys   = []string{"courier_name", "courier"}
	trackingKeys  = []string{"tracking_number", "tracking_id", "awb", "awb_code"}
	timestampKeys = []string{"current_timestamp", "timestamp", "event_time"}
	reasonKeys    = []string{"reason", "status_reason", "remarks"}
	rawKeys       = []string{"tracking_data", "scans", "shipment_track_activities"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02 01 2006 15:04:05",
	"2006-01-02",
}

// Normalize resolves the canonical event from a raw payload. Timestamps
// without a zone are read as UTC; a missing or unreadable timestamp falls
// back to receivedAt.
func Normalize(raw []byte, receivedAt time.Time) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m == nil {
		return Event{}, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	ev := Event{
		OrderID:        firstString(m, orderIDKeys),
		ShipmentID:     firstString(m, shipmentKeys),
		Status:         firstString(m, statusKeys),
		TrackingNumber: firstString(m, trackingKeys),
		CourierName:    firstString(m, courierKeys),
		AWBCode:        firstString(m, awbKeys),
		Reason:         firstString(m, reasonKeys),
		Timestamp:      receivedAt.UTC(),
	}
	if ts, ok := firstTime(m, timestampKeys); ok {
		ev.Timestamp = ts
	}

	ev.RawTrackingData = json.RawMessage(bytes.TrimSpace(raw))
	for _, k := range rawKeys {
		if v, ok := m[k]; ok && v != nil {
			b, err := json.Marshal(v)
			if err == nil {
				ev.RawTrackingData = b
			}
			break
		}
	}

	if ev.OrderID == "" {
		return Event{}, fmt.Errorf("%w: order id missing", ErrMalformedPayload)
	}
	return ev, nil
}

// Validate checks the fields a family needs beyond the order id.
func (e Event) Validate(f Family) error {
	switch f {
	case FamilyOrder, FamilyReturn:
		if e.Status == "" {
			return fmt.Errorf("%w: status missing", ErrMalformedPayload)
		}
	case FamilyTracking:
	default:
		return fmt.Errorf("%w: unknown event family %q", ErrMalformedPayload, f)
	}
	return nil
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func firstTime(m map[string]any, keys []string) (time.Time, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case json.Number:
			if sec, err := v.Int64(); err == nil && sec > 0 {
				if sec > 1e12 {
					return time.UnixMilli(sec).UTC(), true
				}
				return time.Unix(sec, 0).UTC(), true
			}
		case string:
			if ts, ok := parseTime(strings.TrimSpace(v)); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}
