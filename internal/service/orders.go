package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type NewOrderItem struct {
	ProductID    uuid.UUID
	ProductName  string
	ProductImage string
	Color        string
	Size         string
	Quantity     int
	Amount       int64
}

type NewOrder struct {
	UserID         uuid.UUID
	Items          []NewOrderItem
	Shipping       models.Address
	PaymentMethod  models.PaymentMethod
	PaymentStatus  models.PaymentStatus
	ShippingCharge int64
	// TotalAmount, when set, must equal items plus shipping.
	TotalAmount int64
}

// CreateOrder persists an order handed over by checkout. Every item starts
// at Ordered with a single history entry.
func (s *OrderService) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	switch in.PaymentMethod {
	case models.PaymentCOD, models.PaymentOnline:
	default:
		return nil, fmt.Errorf("%w: payment_method must be cod or online", ErrValidation)
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = models.PaymentPending
	}
	if in.ShippingCharge < 0 {
		return nil, fmt.Errorf("%w: shipping_charge must be >= 0", ErrValidation)
	}

	now := s.clock()
	order := &models.Order{
		ID:             s.newID(),
		UserID:         in.UserID,
		Shipping:       in.Shipping,
		PaymentMethod:  in.PaymentMethod,
		PaymentStatus:  in.PaymentStatus,
		ShippingCharge: in.ShippingCharge,
		Version:        1,
		CreatedAt:      now,
	}

	for i, it := range in.Items {
		if it.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: items[%d]: product_id required", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: items[%d]: quantity must be > 0", ErrValidation, i)
		}
		if it.Amount < 0 {
			return nil, fmt.Errorf("%w: items[%d]: amount must be >= 0", ErrValidation, i)
		}

		item := models.OrderItem{
			ID:           s.newID(),
			OrderID:      order.ID,
			Position:     i,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Color:        it.Color,
			Size:         it.Size,
			Quantity:     it.Quantity,
			Amount:       it.Amount,
			Status:       status.Ordered,
			StatusHistory: models.StatusHistory{
				{Status: status.Ordered, Note: "Order placed", Timestamp: now, Source: models.SourceSystem},
			},
		}
		order.ItemsTotal += item.LineTotal()
		order.Items = append(order.Items, item)
	}

	total := order.ItemsTotal + order.ShippingCharge
	if in.TotalAmount != 0 && in.TotalAmount != total {
		return nil, fmt.Errorf("%w: total_amount %d does not match items %d + shipping %d",
			ErrValidation, in.TotalAmount, order.ItemsTotal, order.ShippingCharge)
	}
	order.TotalAmount = total

	return s.repo.CreateOrder(ctx, order)
}

// GetOrder loads one order. A non-nil userID must own it.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if userID != uuid.Nil && order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id required", ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, userID, limit, offset)
}
