package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
)

// splitItem moves qty units of order.Items[idx] into a new sibling appended
// to the order and returns the sibling's index. The sibling is a deep copy
// of the original taken before the decrement, so the two never share
// history or carrier data. Refund state stays with the original; the
// sibling starts without one. The caller applies the new status.
func splitItem(order *models.Order, idx, qty int, id uuid.UUID) int {
	sib := order.Items[idx].Clone()
	sib.ID = id
	sib.Quantity = qty
	sib.Position = nextPosition(order)
	sib.Refund = models.Refund{}
	sib.CreatedAt = time.Time{}
	sib.UpdatedAt = time.Time{}

	order.Items[idx].Quantity -= qty
	order.Items = append(order.Items, sib)
	return len(order.Items) - 1
}

func nextPosition(order *models.Order) int {
	next := 0
	for i := range order.Items {
		if p := order.Items[i].Position + 1; p > next {
			next = p
		}
	}
	return next
}
