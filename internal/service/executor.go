package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// TransitionCommand asks for one item to move to Target. A zero Quantity
// means the whole item. A non-nil UserID restricts the command to orders
// owned by that user.
type TransitionCommand struct {
	OrderID      uuid.UUID
	ItemID       uuid.UUID
	UserID       uuid.UUID
	Target       status.Status
	Quantity     int
	Note         string
	RefundAmount *int64
	Source       models.Source
	Actor        string
}

type TransitionResult struct {
	Order    *models.Order
	Item     models.OrderItem
	Previous status.Status
	Split    bool
}

type TransitionOption struct {
	Status      status.Status `json:"status"`
	Description string        `json:"description"`
}

type AvailableTransitions struct {
	CurrentStatus status.Status      `json:"current_status"`
	Options       []TransitionOption `json:"options"`
}

// change is what one item transition needs besides the target.
type change struct {
	target       status.Status
	quantity     int
	note         string
	refundAmount *int64
	source       models.Source
	actor        string
	// returnToOrigin admits the carrier-only return edges.
	returnToOrigin bool
}

type applied struct {
	index    int
	previous status.Status
	quantity int
	split    bool
	entry    models.HistoryEntry
}

func (s *OrderService) ApplyTransition(ctx context.Context, cmd TransitionCommand) (*TransitionResult, error) {
	l := logging.FromContext(ctx).With("order_id", cmd.OrderID, "item_id", cmd.ItemID, "target", cmd.Target)

	if cmd.OrderID == uuid.Nil || cmd.ItemID == uuid.Nil {
		return nil, fmt.Errorf("%w: order and item ids are required", ErrValidation)
	}
	if !status.Valid(cmd.Target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, cmd.Target)
	}
	if cmd.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if cmd.RefundAmount != nil && *cmd.RefundAmount < 0 {
		return nil, fmt.Errorf("%w: refund amount must be >= 0", ErrValidation)
	}
	if cmd.Source == "" {
		cmd.Source = models.SourceSystem
	}

	var (
		res     TransitionResult
		changes []models.StatusChange
	)
	err := s.repo.WithOrder(ctx, cmd.OrderID, func(order *models.Order) error {
		if cmd.UserID != uuid.Nil && order.UserID != cmd.UserID {
			return ErrForbidden
		}
		idx := order.ItemIndex(cmd.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}

		out, err := s.applyToItem(order, idx, change{
			target:       cmd.Target,
			quantity:     cmd.Quantity,
			note:         cmd.Note,
			refundAmount: cmd.RefundAmount,
			source:       cmd.Source,
			actor:        cmd.Actor,
		}, s.clock())
		if err != nil {
			return err
		}

		res = TransitionResult{
			Order:    order,
			Item:     order.Items[out.index].Clone(),
			Previous: out.previous,
			Split:    out.split,
		}
		changes = append(changes, s.statusChange(order, out))
		return nil
	})
	if err != nil {
		l.Warn("apply_transition_error", "error", err)
		return nil, storeErr(err)
	}

	l.Info("apply_transition_success", "previous", res.Previous, "split", res.Split, "quantity", res.Item.Quantity)
	s.publish(ctx, changes)
	return &res, nil
}

// AvailableTransitions lists exactly the targets the graph accepts from the
// item's current status.
func (s *OrderService) AvailableTransitions(ctx context.Context, orderID, itemID, userID uuid.UUID) (*AvailableTransitions, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, ErrForbidden
	}
	idx := order.ItemIndex(itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	return s.availableFor(order.Items[idx], s.clock()), nil
}

// availableFor lists the targets ApplyTransition would accept for the item
// at now. Return Requested is left out once the return window has closed.
func (s *OrderService) availableFor(item models.OrderItem, now time.Time) *AvailableTransitions {
	current := item.Status
	next := status.Next(current)
	out := &AvailableTransitions{CurrentStatus: current, Options: make([]TransitionOption, 0, len(next))}
	for _, n := range next {
		if n == status.ReturnRequested && checkReturnWindow(item.StatusHistory, now, s.returnWindowDays) != nil {
			continue
		}
		out.Options = append(out.Options, TransitionOption{Status: n, Description: status.Describe(n)})
	}
	return out
}

// applyToItem validates and applies one transition to order.Items[idx] in
// memory, splitting the item when only part of it moves.
func (s *OrderService) applyToItem(order *models.Order, idx int, c change, now time.Time) (applied, error) {
	item := &order.Items[idx]
	current := item.Status

	legal := status.CanTransition(current, c.target) ||
		(c.returnToOrigin && status.CanReturnToOrigin(current, c.target))
	if !legal {
		return applied{}, invalidTransition(current, c.target)
	}

	qty := c.quantity
	if qty == 0 {
		qty = item.Quantity
	}
	if qty < 0 {
		return applied{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if qty > item.Quantity {
		return applied{}, fmt.Errorf("%w: requested %d, item has %d", ErrQuantityExceeded, qty, item.Quantity)
	}

	if item.Refund.Open() {
		if qty < item.Quantity {
			return applied{}, fmt.Errorf("%w: item has an open refund request, move the whole quantity or settle it first", ErrConflict)
		}
		if c.target == status.Refunded && c.refundAmount != nil && *c.refundAmount > item.Refund.RequestedAmount {
			return applied{}, fmt.Errorf("%w: refund amount exceeds requested %d", ErrValidation, item.Refund.RequestedAmount)
		}
	}

	if c.target == status.ReturnRequested {
		if err := checkReturnWindow(item.StatusHistory, now, s.returnWindowDays); err != nil {
			return applied{}, err
		}
	}

	entry := models.HistoryEntry{
		Status:    c.target,
		Note:      c.note,
		Timestamp: now,
		Source:    c.source,
		Actor:     c.actor,
	}
	if last, ok := item.StatusHistory.Last(); ok && last.Timestamp.After(entry.Timestamp) {
		entry.Timestamp = last.Timestamp
	}

	out := applied{index: idx, previous: current, quantity: qty, entry: entry}
	if qty < item.Quantity {
		out.index = splitItem(order, idx, qty, s.newID())
		out.split = true
	}
	s.applyEffects(&order.Items[out.index], c, entry)
	return out, nil
}

func (s *OrderService) applyEffects(item *models.OrderItem, c change, entry models.HistoryEntry) {
	item.Status = c.target
	item.StatusHistory = item.StatusHistory.Append(entry)

	switch c.target {
	case status.Shipped:
		item.ShippedAt = timePtr(entry.Timestamp)
	case status.Delivered:
		item.DeliveredAt = timePtr(entry.Timestamp)
	case status.Cancelled:
		item.CancelledAt = timePtr(entry.Timestamp)
		item.CancelID = s.newRef("CAN")
	case status.ReturnRequested:
		item.ReturnRequestedAt = timePtr(entry.Timestamp)
		item.ReturnRequestNote = c.note
		item.ReturnID = s.newRef("RET")
	case status.DepartedForReturning:
		item.ReturnDepartedAt = timePtr(entry.Timestamp)
	case status.Returned:
		item.ReturnedAt = timePtr(entry.Timestamp)
	case status.Refunded:
		item.Refund.ProcessedAt = timePtr(entry.Timestamp)
		if c.refundAmount != nil {
			item.Refund.Amount = *c.refundAmount
		}
		// Reaching Refunded by any path settles a pending request.
		if item.Refund.Open() {
			if c.refundAmount == nil {
				item.Refund.Amount = item.Refund.RequestedAmount
			}
			item.Refund.Status = models.RefundRefunded
			item.Refund.ApprovedAt = timePtr(entry.Timestamp)
			item.Refund.ApprovedBy = c.actor
		}
	}
}

// checkReturnWindow compares calendar days in UTC: delivered on the 1st,
// a request on the 8th is still in a 7 day window.
func checkReturnWindow(h models.StatusHistory, now time.Time, days int) error {
	delivered, ok := h.LastOf(status.Delivered)
	if !ok {
		return fmt.Errorf("%w: no delivery recorded for item", ErrMissingDeliveryRecord)
	}
	if elapsed := calendarDays(delivered.Timestamp, now); elapsed > days {
		return fmt.Errorf("%w: delivered %d days ago, window is %d days", ErrReturnWindowExpired, elapsed, days)
	}
	return nil
}

func calendarDays(from, to time.Time) int {
	f := truncateDay(from)
	t := truncateDay(to)
	return int(t.Sub(f).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *OrderService) statusChange(order *models.Order, out applied) models.StatusChange {
	item := order.Items[out.index]
	return models.StatusChange{
		EventID:        s.newID(),
		OrderID:        order.ID,
		ItemID:         item.ID,
		UserID:         order.UserID,
		PreviousStatus: out.previous,
		Status:         item.Status,
		Quantity:       out.quantity,
		Split:          out.split,
		Note:           out.entry.Note,
		Source:         out.entry.Source,
		Actor:          out.entry.Actor,
		OccurredAt:     out.entry.Timestamp,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
