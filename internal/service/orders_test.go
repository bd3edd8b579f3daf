package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

func TestCreateOrder_Totals(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(t, 2, 1)

	assert.EqualValues(t, 3*99900, order.ItemsTotal)
	assert.EqualValues(t, 3*99900+4900, order.TotalAmount)
	for i, it := range order.Items {
		assert.Equal(t, i, it.Position)
		assert.Equal(t, status.Ordered, it.Status)
		require.Len(t, it.StatusHistory, 1)
		assert.Equal(t, t0, it.StatusHistory[0].Timestamp)
	}

	got, err := env.svc.GetOrder(context.Background(), order.ID, order.UserID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmount, got.TotalAmount)
	assert.Equal(t, "Pune", got.Shipping.City)
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := NewOrderItem{ProductID: uuid.New(), ProductName: "x", Quantity: 1, Amount: 100}

	cases := map[string]NewOrder{
		"no user":        {Items: []NewOrderItem{item}, PaymentMethod: models.PaymentCOD},
		"no items":       {UserID: uuid.New(), PaymentMethod: models.PaymentCOD},
		"bad method":     {UserID: uuid.New(), Items: []NewOrderItem{item}, PaymentMethod: "card"},
		"zero quantity":  {UserID: uuid.New(), Items: []NewOrderItem{{ProductID: uuid.New(), Amount: 1}}, PaymentMethod: models.PaymentCOD},
		"no product":     {UserID: uuid.New(), Items: []NewOrderItem{{Quantity: 1}}, PaymentMethod: models.PaymentCOD},
		"total mismatch": {UserID: uuid.New(), Items: []NewOrderItem{item}, PaymentMethod: models.PaymentCOD, ShippingCharge: 10, TotalAmount: 100},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.CreateOrder(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	order, err := env.svc.CreateOrder(ctx, NewOrder{
		UserID: uuid.New(), Items: []NewOrderItem{item}, PaymentMethod: models.PaymentCOD, ShippingCharge: 10, TotalAmount: 110,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
}

func TestGetAndListOrders_Ownership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)

	_, err := env.svc.GetOrder(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.GetOrder(ctx, uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	list, err := env.svc.ListOrders(ctx, order.UserID, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = env.svc.ListOrders(ctx, uuid.Nil, 10, 0)
	assert.ErrorIs(t, err, ErrValidation)
}
