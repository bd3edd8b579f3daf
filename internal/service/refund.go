package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// Payout is where a refund is sent: a bank account or a UPI id.
type Payout struct {
	BankAccount   string
	IFSC          string
	AccountHolder string
	UPIID         string
}

func (p Payout) validate() error {
	if strings.TrimSpace(p.UPIID) != "" {
		return nil
	}
	if strings.TrimSpace(p.BankAccount) == "" || strings.TrimSpace(p.IFSC) == "" || strings.TrimSpace(p.AccountHolder) == "" {
		return fmt.Errorf("%w: bank_account, ifsc and account_holder, or upi_id, are required", ErrValidation)
	}
	return nil
}

type RefundRequest struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	UserID  uuid.UUID
	Payout  Payout
	Note    string
}

type RefundDecision struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Admin   string
	// Amount overrides the requested amount on approval.
	Amount *int64
	Reason string
}

var refundEligible = map[status.Status]bool{
	status.Cancelled: true,
	status.Returned:  true,
}

// RequestRefund opens a refund for a cancelled or returned item paid online.
func (s *OrderService) RequestRefund(ctx context.Context, req RefundRequest) (*models.OrderItem, error) {
	l := logging.FromContext(ctx).With("order_id", req.OrderID, "item_id", req.ItemID)

	if req.UserID == uuid.Nil {
		return nil, ErrForbidden
	}
	if err := req.Payout.validate(); err != nil {
		return nil, err
	}

	var out models.OrderItem
	err := s.repo.WithOrder(ctx, req.OrderID, func(order *models.Order) error {
		if order.UserID != req.UserID {
			return ErrForbidden
		}
		idx := order.ItemIndex(req.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &order.Items[idx]

		if order.PaymentMethod != models.PaymentOnline {
			return fmt.Errorf("%w: refunds apply to online payments only", ErrValidation)
		}
		switch {
		case item.Status == status.Refunded || item.Refund.Status == models.RefundRefunded:
			return fmt.Errorf("%w: item already refunded", ErrAlreadyProcessed)
		case item.Refund.Open():
			return fmt.Errorf("%w: refund request already open", ErrAlreadyProcessed)
		case !refundEligible[item.Status]:
			return fmt.Errorf("%w: item in status %q is not eligible for refund", ErrValidation, item.Status)
		}

		now := s.clock()
		item.Refund = models.Refund{
			Status:          models.RefundPending,
			RequestedAmount: item.LineTotal(),
			Note:            req.Note,
			BankAccount:     strings.TrimSpace(req.Payout.BankAccount),
			IFSC:            strings.ToUpper(strings.TrimSpace(req.Payout.IFSC)),
			AccountHolder:   strings.TrimSpace(req.Payout.AccountHolder),
			UPIID:           strings.TrimSpace(req.Payout.UPIID),
			RequestedAt:     timePtr(now),
		}
		out = item.Clone()
		return nil
	})
	if err != nil {
		l.Warn("request_refund_error", "error", err)
		return nil, storeErr(err)
	}

	l.Info("request_refund_success", "amount", out.Refund.RequestedAmount)
	return &out, nil
}

// ApproveRefund settles a pending refund and moves the item to Refunded.
func (s *OrderService) ApproveRefund(ctx context.Context, d RefundDecision) (*models.OrderItem, error) {
	l := logging.FromContext(ctx).With("order_id", d.OrderID, "item_id", d.ItemID)

	var (
		out     models.OrderItem
		changes []models.StatusChange
	)
	err := s.repo.WithOrder(ctx, d.OrderID, func(order *models.Order) error {
		idx := order.ItemIndex(d.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &order.Items[idx]
		if item.Refund.Status != models.RefundPending {
			return fmt.Errorf("%w: refund is %q", ErrAlreadyProcessed, refundState(item.Refund))
		}

		amount := item.Refund.RequestedAmount
		if d.Amount != nil {
			amount = *d.Amount
		}
		if amount <= 0 || amount > item.Refund.RequestedAmount {
			return fmt.Errorf("%w: amount must be between 1 and %d", ErrValidation, item.Refund.RequestedAmount)
		}

		now := s.clock()
		applied, err := s.applyToItem(order, idx, change{
			target:       status.Refunded,
			note:         fmt.Sprintf("Refund of %d approved", amount),
			refundAmount: &amount,
			source:       models.SourceAdmin,
			actor:        d.Admin,
		}, now)
		if err != nil {
			return err
		}

		item = &order.Items[applied.index]
		item.Refund.Status = models.RefundRefunded
		item.Refund.ApprovedAt = timePtr(now)
		item.Refund.ApprovedBy = d.Admin

		out = item.Clone()
		changes = append(changes, s.statusChange(order, applied))
		return nil
	})
	if err != nil {
		l.Warn("approve_refund_error", "error", err)
		return nil, storeErr(err)
	}

	l.Info("approve_refund_success", "amount", out.Refund.Amount)
	s.publish(ctx, changes)
	return &out, nil
}

// RejectRefund closes a pending refund without touching the item status.
func (s *OrderService) RejectRefund(ctx context.Context, d RefundDecision) (*models.OrderItem, error) {
	l := logging.FromContext(ctx).With("order_id", d.OrderID, "item_id", d.ItemID)

	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason required", ErrValidation)
	}

	var out models.OrderItem
	err := s.repo.WithOrder(ctx, d.OrderID, func(order *models.Order) error {
		idx := order.ItemIndex(d.ItemID)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &order.Items[idx]
		if item.Refund.Status != models.RefundPending {
			return fmt.Errorf("%w: refund is %q", ErrAlreadyProcessed, refundState(item.Refund))
		}

		item.Refund.Status = models.RefundRejected
		item.Refund.RejectedAt = timePtr(s.clock())
		item.Refund.RejectedBy = d.Admin
		item.Refund.RejectionReason = reason
		out = item.Clone()
		return nil
	})
	if err != nil {
		l.Warn("reject_refund_error", "error", err)
		return nil, storeErr(err)
	}

	l.Info("reject_refund_success")
	return &out, nil
}

func refundState(r models.Refund) string {
	if r.Status == "" {
		return "not requested"
	}
	return string(r.Status)
}
