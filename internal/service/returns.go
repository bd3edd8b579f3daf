package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

// UserItemAction is a customer request against one of their own items.
type UserItemAction struct {
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	UserID   uuid.UUID
	Quantity int
	Note     string
}

// CancelItem cancels all or part of an item that has not shipped yet.
// Stock is not restored here.
func (s *OrderService) CancelItem(ctx context.Context, a UserItemAction) (*TransitionResult, error) {
	return s.userTransition(ctx, a, status.Cancelled)
}

// RequestReturn opens a return for a delivered item inside the return window.
func (s *OrderService) RequestReturn(ctx context.Context, a UserItemAction) (*TransitionResult, error) {
	return s.userTransition(ctx, a, status.ReturnRequested)
}

func (s *OrderService) userTransition(ctx context.Context, a UserItemAction, target status.Status) (*TransitionResult, error) {
	if a.UserID == uuid.Nil {
		return nil, ErrForbidden
	}
	return s.ApplyTransition(ctx, TransitionCommand{
		OrderID:  a.OrderID,
		ItemID:   a.ItemID,
		UserID:   a.UserID,
		Target:   target,
		Quantity: a.Quantity,
		Note:     a.Note,
		Source:   models.SourceUser,
		Actor:    a.UserID.String(),
	})
}
