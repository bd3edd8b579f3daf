package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

func TestOrderItemClone_SharesNothing(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := OrderItem{
		ID:       uuid.New(),
		Quantity: 4,
		Status:   status.Shipped,
		StatusHistory: StatusHistory{
			{Status: status.Ordered, Timestamp: now},
			{Status: status.Shipped, Timestamp: now.Add(time.Hour)},
		},
		ShippedAt: &now,
		Refund:    Refund{RequestedAt: &now},
		Carrier:   CarrierShipment{OrderID: "SR1", LastEventAt: &now},
	}

	c := orig.Clone()
	c.StatusHistory[0].Note = "changed"
	*c.ShippedAt = now.Add(24 * time.Hour)
	*c.Refund.RequestedAt = now.Add(24 * time.Hour)
	*c.Carrier.LastEventAt = now.Add(24 * time.Hour)

	assert.Empty(t, orig.StatusHistory[0].Note)
	assert.Equal(t, now, *orig.ShippedAt)
	assert.Equal(t, now, *orig.Refund.RequestedAt)
	assert.Equal(t, now, *orig.Carrier.LastEventAt)
}

func TestStatusHistory_AppendDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := make(StatusHistory, 1, 4)
	base[0] = HistoryEntry{Status: status.Ordered}

	a := base.Append(HistoryEntry{Status: status.Shipped})
	b := base.Append(HistoryEntry{Status: status.Cancelled})

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, status.Shipped, a[1].Status)
	assert.Equal(t, status.Cancelled, b[1].Status)
	assert.Len(t, base, 1)
}

func TestStatusHistory_LastOf(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := StatusHistory{
		{Status: status.Ordered, Timestamp: t0},
		{Status: status.Delivered, Timestamp: t0.Add(time.Hour), Note: "first"},
		{Status: status.Delivered, Timestamp: t0.Add(2 * time.Hour), Note: "second"},
	}

	e, ok := h.LastOf(status.Delivered)
	require.True(t, ok)
	assert.Equal(t, "second", e.Note)

	_, ok = h.LastOf(status.Returned)
	assert.False(t, ok)

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "second", last.Note)
	assert.True(t, h.Monotonic())

	h[0].Timestamp = t0.Add(3 * time.Hour)
	assert.False(t, h.Monotonic())
}

func TestOrder_ItemIndexAndQuantity(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	o := Order{Items: []OrderItem{{ID: a, Quantity: 2}, {ID: b, Quantity: 3}}}

	assert.Equal(t, 1, o.ItemIndex(b))
	assert.Equal(t, -1, o.ItemIndex(uuid.New()))
	assert.Equal(t, 5, o.TotalQuantity())
	assert.False(t, o.Items[0].Carrier.Engaged())
}
