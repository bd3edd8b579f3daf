package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

const carrierActor = "carrier"

// returnTrack is what a return-family webhook may drive an item to.
var returnTrack = map[status.Status]bool{
	status.ReturnRequested:      true,
	status.DepartedForReturning: true,
	status.Returned:             true,
	status.ReturnCancelled:      true,
	status.Refunded:             true,
}

type WebhookResult struct {
	CarrierOrderID string        `json:"carrier_order_id"`
	MappedStatus   status.Status `json:"mapped_status,omitempty"`
	Orders         int           `json:"orders"`
	Items          int           `json:"items"`
	Changed        int           `json:"changed"`
	Unchanged      int           `json:"unchanged"`
	Detached       int           `json:"detached"`
	UnknownStatus  bool          `json:"unknown_status,omitempty"`
}

// IngestCarrierEvent applies a normalized carrier event to every item
// handed over under ev.OrderID, across all matching orders, in one commit.
// Items already at the mapped status only get their carrier data refreshed.
// Cancelled and terminal items that cannot take the mapped status are left
// alone; any other illegal move fails the whole event.
func (s *OrderService) IngestCarrierEvent(ctx context.Context, family carrier.Family, ev carrier.Event) (*WebhookResult, error) {
	l := logging.FromContext(ctx).With("family", family, "carrier_order_id", ev.OrderID, "carrier_status", ev.Status)

	if err := ev.Validate(family); err != nil {
		return nil, err
	}

	res := &WebhookResult{CarrierOrderID: ev.OrderID}
	var target status.Status
	if family != carrier.FamilyTracking {
		mapped, known := carrier.MapStatus(ev.Status)
		if !known {
			// Unknown statuses never move an item.
			l.Warn("carrier_status_unknown")
			res.UnknownStatus = true
		} else {
			if family == carrier.FamilyReturn && !returnTrack[mapped] {
				return nil, fmt.Errorf("%w: %q is not a return status", ErrValidation, ev.Status)
			}
			target = mapped
			res.MappedStatus = mapped
		}
	}

	ids, err := s.repo.OrderIDsByCarrierOrderID(ctx, ev.OrderID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		l.Warn("carrier_order_unknown")
		return nil, fmt.Errorf("%w: carrier order %q", ErrOrderNotFound, ev.OrderID)
	}

	c := change{
		target:         target,
		note:           carrier.AuditNote(ev.Status, ev.CourierName),
		source:         models.SourceWebhook,
		actor:          carrierActor,
		returnToOrigin: carrier.IsReturnToOrigin(ev.Status),
	}
	if ev.Reason != "" {
		c.note += ": " + ev.Reason
	}

	var changes []models.StatusChange
	err = s.repo.WithOrders(ctx, ids, func(orders []*models.Order) error {
		now := s.clock()
		for _, o := range orders {
			var matched []uuid.UUID
			for i := range o.Items {
				if o.Items[i].Carrier.OrderID == ev.OrderID {
					matched = append(matched, o.Items[i].ID)
				}
			}
			for _, id := range matched {
				idx := o.ItemIndex(id)
				refreshCarrier(&o.Items[idx].Carrier, ev, family)
				res.Items++

				if target == "" {
					continue
				}
				item := &o.Items[idx]
				if item.Status == target {
					res.Unchanged++
					continue
				}
				if !status.CanTransition(item.Status, target) &&
					!(c.returnToOrigin && status.CanReturnToOrigin(item.Status, target)) &&
					detached(item.Status) {
					res.Detached++
					continue
				}

				applied, err := s.applyToItem(o, idx, c, now)
				if err != nil {
					return fmt.Errorf("item %s: %w", id, err)
				}
				res.Changed++
				changes = append(changes, s.statusChange(o, applied))
			}
		}
		res.Orders = len(orders)
		return nil
	})
	if err != nil {
		l.Warn("carrier_event_error", "error", err)
		return nil, storeErr(err)
	}

	l.Info("carrier_event_success", "items", res.Items, "changed", res.Changed, "unchanged", res.Unchanged)
	s.publish(ctx, changes)
	return res, nil
}

// detached items have left the shipment flow; carrier updates for the rest
// of the shipment do not apply to them.
func detached(s status.Status) bool {
	return s == status.Cancelled || status.IsTerminal(s)
}

func refreshCarrier(c *models.CarrierShipment, ev carrier.Event, family carrier.Family) {
	if ev.ShipmentID != "" {
		c.ShipmentID = ev.ShipmentID
	}
	if ev.AWBCode != "" {
		c.AWBCode = ev.AWBCode
	}
	if ev.TrackingNumber != "" {
		c.TrackingNumber = ev.TrackingNumber
	}
	if ev.CourierName != "" {
		c.CourierName = ev.CourierName
	}
	if ev.Status != "" {
		c.LastStatus = carrier.CanonicalStatus(ev.Status)
	}
	if family == carrier.FamilyTracking && len(ev.RawTrackingData) > 0 {
		c.RawTracking = string(ev.RawTrackingData)
	}
	ts := ev.Timestamp
	c.LastEventAt = &ts
}
