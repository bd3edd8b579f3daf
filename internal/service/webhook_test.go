package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

// engage hands every item of the order to the carrier under carrierOrderID.
func (e *testEnv) engage(t *testing.T, order *models.Order, carrierOrderID string) {
	t.Helper()
	e.carrier.orderID = carrierOrderID
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ID)
	}
	_, err := e.svc.CreateCarrierOrder(context.Background(), ShipmentCommand{OrderID: order.ID, ItemIDs: ids})
	require.NoError(t, err)
}

func event(t *testing.T, raw string) carrier.Event {
	t.Helper()
	ev, err := carrier.Normalize([]byte(raw), t0)
	require.NoError(t, err)
	return ev
}

func TestIngest_ReturnToOriginFromShipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR123")
	env.advance(t, order, order.Items[0].ID, status.Shipped)

	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyReturn,
		event(t, `{"order_id":"SR123","current_status":"RTO_DELIVERED","courier_name":"Delhivery"}`))
	require.NoError(t, err)
	assert.Equal(t, status.Returned, res.MappedStatus)
	assert.Equal(t, 1, res.Changed)

	got := env.reload(t, order.ID)
	it := got.Items[0]
	assert.Equal(t, status.Returned, it.Status)
	require.NotNil(t, it.ReturnedAt)
	require.Len(t, it.StatusHistory, 3)
	last := it.StatusHistory[2]
	assert.Equal(t, status.Returned, last.Status)
	assert.Equal(t, "Package returned to origin via Delhivery", last.Note)
	assert.Equal(t, models.SourceWebhook, last.Source)
	assert.Equal(t, "RTO_DELIVERED", it.Carrier.LastStatus)
}

func TestIngest_ReplayIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR5")

	raw := `{"order_id":"SR5","shipment_status":"SHIPPED","awb":"AWB5","courier_name":"BlueDart"}`
	first, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Changed)

	env.clock.Advance(time.Minute)
	second, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	assert.Equal(t, 1, second.Unchanged)

	got := env.reload(t, order.ID)
	it := got.Items[0]
	assert.Equal(t, status.Shipped, it.Status)
	assert.Len(t, it.StatusHistory, 2)
	assert.Equal(t, "AWB5", it.Carrier.AWBCode)
	assert.Equal(t, "BlueDart", it.Carrier.CourierName)
}

func TestIngest_UpdatesEveryItemOfTheShipment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 2, 3)
	env.engage(t, order, "SR77")
	other := env.placeOrder(t, 1)
	env.engage(t, other, "SR78")

	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR77","status":"shipped"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Orders)
	assert.Equal(t, 2, res.Changed)

	for _, it := range env.reload(t, order.ID).Items {
		assert.Equal(t, status.Shipped, it.Status)
	}
	assert.Equal(t, status.Ordered, env.reload(t, other.ID).Items[0].Status)
}

func TestIngest_IllegalMoveFailsWholeEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1, 1)
	env.engage(t, order, "SR9")
	env.advance(t, order, order.Items[1].ID, status.Shipped)

	_, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR9","status":"DELIVERED"}`))
	require.ErrorIs(t, err, ErrInvalidTransition)

	got := env.reload(t, order.ID)
	assert.Equal(t, status.Ordered, got.Items[0].Status)
	assert.Equal(t, status.Shipped, got.Items[1].Status)
	assert.Equal(t, "NEW", got.Items[1].Carrier.LastStatus)
}

func TestIngest_DetachedItemsAreSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 3)
	env.engage(t, order, "SR10")

	_, err := env.svc.CancelItem(ctx, UserItemAction{OrderID: order.ID, ItemID: order.Items[0].ID, UserID: order.UserID, Quantity: 1})
	require.NoError(t, err)

	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR10","status":"SHIPPED"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Detached)

	got := env.reload(t, order.ID)
	assert.Len(t, itemByStatus(got, status.Shipped), 1)
	assert.Len(t, itemByStatus(got, status.Cancelled), 1)
}

func TestIngest_UnknownStatusIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR11")
	env.advance(t, order, order.Items[0].ID, status.Shipped)

	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR11","status":"OUT_FOR_DELIVERY"}`))
	require.NoError(t, err)
	assert.True(t, res.UnknownStatus)
	assert.Equal(t, 0, res.Changed)

	it := env.reload(t, order.ID).Items[0]
	assert.Equal(t, status.Shipped, it.Status)
	assert.Equal(t, "OUT_FOR_DELIVERY", it.Carrier.LastStatus)
}

func TestIngest_TrackingOnlyRefreshesMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR12")

	raw := `{"order_id":"SR12","current_status":"DELIVERED","awb":"A12","scans":[{"location":"Pune","status":"IN TRANSIT"}]}`
	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyTracking, event(t, raw))
	require.NoError(t, err)
	assert.Empty(t, res.MappedStatus)

	it := env.reload(t, order.ID).Items[0]
	assert.Equal(t, status.Ordered, it.Status)
	assert.Equal(t, "A12", it.Carrier.AWBCode)
	assert.JSONEq(t, `[{"location":"Pune","status":"IN TRANSIT"}]`, it.Carrier.RawTracking)
	require.NotNil(t, it.Carrier.LastEventAt)
}

func TestIngest_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR13")

	_, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"NOPE","status":"SHIPPED"}`))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR13"}`))
	assert.ErrorIs(t, err, carrier.ErrMalformedPayload)

	_, err = env.svc.IngestCarrierEvent(ctx, carrier.FamilyReturn, event(t, `{"order_id":"SR13","status":"SHIPPED"}`))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, status.Ordered, env.reload(t, order.ID).Items[0].Status)
}

func TestIngest_CancelledThenRefundedByCarrier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	env.engage(t, order, "SR14")

	_, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR14","status":"LOST"}`))
	require.NoError(t, err)
	res, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyReturn, event(t, `{"order_id":"SR14","status":"REFUNDED"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)

	it := env.reload(t, order.ID).Items[0]
	assert.Equal(t, status.Refunded, it.Status)
	assert.NotEmpty(t, it.CancelID)
	require.NotNil(t, it.Refund.ProcessedAt)
}

func TestIngest_CarrierRefundSettlesOpenRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, 1)
	itemID := order.Items[0].ID
	env.engage(t, order, "SR15")

	_, err := env.svc.IngestCarrierEvent(ctx, carrier.FamilyOrder, event(t, `{"order_id":"SR15","status":"LOST"}`))
	require.NoError(t, err)
	_, err = env.svc.RequestRefund(ctx, RefundRequest{OrderID: order.ID, ItemID: itemID, UserID: order.UserID, Payout: bank})
	require.NoError(t, err)

	_, err = env.svc.IngestCarrierEvent(ctx, carrier.FamilyReturn, event(t, `{"order_id":"SR15","status":"REFUNDED"}`))
	require.NoError(t, err)

	it := env.reload(t, order.ID).Items[0]
	assert.Equal(t, status.Refunded, it.Status)
	assert.Equal(t, models.RefundRefunded, it.Refund.Status)
	assert.Equal(t, carrierActor, it.Refund.ApprovedBy)
	assert.Equal(t, it.Refund.RequestedAmount, it.Refund.Amount)
	require.NotNil(t, it.Refund.ApprovedAt)

	_, err = env.svc.ApproveRefund(ctx, RefundDecision{OrderID: order.ID, ItemID: itemID, Admin: "admin-1"})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}
