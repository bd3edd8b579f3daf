package transport

import (
	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type ErrorResponse struct {
	Error     string          `json:"error"`
	Current   status.Status   `json:"current_status,omitempty"`
	Available []status.Status `json:"available,omitempty"`
}

type ItemActionRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

type RefundRequest struct {
	Note          string `json:"note"`
	BankAccount   string `json:"bank_account"`
	IFSC          string `json:"ifsc"`
	AccountHolder string `json:"account_holder"`
	UPIID         string `json:"upi_id"`
}

type TransitionRequest struct {
	Status       string `json:"status"`
	Quantity     int    `json:"quantity"`
	Note         string `json:"note"`
	RefundAmount *int64 `json:"refund_amount"`
}

type TransitionResponse struct {
	OrderID        uuid.UUID        `json:"order_id"`
	PreviousStatus status.Status    `json:"previous_status"`
	Split          bool             `json:"split"`
	Item           models.OrderItem `json:"item"`
	OrderVersion   int64            `json:"order_version"`
}

type ApproveRefundRequest struct {
	Amount *int64 `json:"amount"`
}

type RejectRefundRequest struct {
	Reason string `json:"reason"`
}

type ShipmentRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
}

type CreateOrderItem struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductImage string    `json:"product_image"`
	Color        string    `json:"color"`
	Size         string    `json:"size"`
	Quantity     int       `json:"quantity"`
	Amount       int64     `json:"amount"`
}

type CreateOrderRequest struct {
	UserID          uuid.UUID            `json:"user_id"`
	Items           []CreateOrderItem    `json:"items"`
	ShippingAddress models.Address       `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	ShippingCharge  int64                `json:"shipping_charge"`
	TotalAmount     int64                `json:"total_amount"`
}

type ListOrdersResponse struct {
	Orders []models.Order `json:"orders"`
	Page   int            `json:"page"`
	Size   int            `json:"size"`
}

type TransitionSearchResponse struct {
	Total       int64                 `json:"total"`
	Transitions []models.StatusChange `json:"transitions"`
}
