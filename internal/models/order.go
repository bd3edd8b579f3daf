package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is never deleted; items mutate in place and new split items are appended.
// Amounts are in minor currency units.
type Order struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID     `gorm:"type:uuid;index;not null" json:"user_id"`
	Items          []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	Shipping       Address       `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	PaymentMethod  PaymentMethod `gorm:"type:varchar(16);not null" json:"payment_method"`
	PaymentStatus  PaymentStatus `gorm:"type:varchar(16);not null" json:"payment_status"`
	ShippingCharge int64         `gorm:"not null;default:0" json:"shipping_charge"`
	ItemsTotal     int64         `gorm:"not null" json:"items_total"`
	TotalAmount    int64         `gorm:"not null" json:"total_amount"`
	Version        int64         `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ItemIndex returns the position of the item in o.Items, or -1.
func (o *Order) ItemIndex(itemID uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// TotalQuantity sums the quantity of all items, split siblings included.
func (o *Order) TotalQuantity() int {
	total := 0
	for i := range o.Items {
		total += o.Items[i].Quantity
	}
	return total
}

type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	Position     int       `gorm:"not null" json:"position"`
	ProductID    uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	ProductName  string    `gorm:"not null" json:"product_name"`
	ProductImage string    `json:"product_image,omitempty"`
	Color        string    `json:"color,omitempty"`
	Size         string    `json:"size,omitempty"`
	Quantity     int       `gorm:"not null;check:quantity>0" json:"quantity"`
	Amount       int64     `gorm:"not null" json:"amount"`

	Status        status.Status `gorm:"type:varchar(32);not null;index" json:"status"`
	StatusHistory StatusHistory `gorm:"serializer:json;type:text" json:"status_history"`

	CancelID    string     `gorm:"index" json:"cancel_id,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	ReturnID          string     `gorm:"index" json:"return_id,omitempty"`
	ReturnRequestedAt *time.Time `json:"return_requested_at,omitempty"`
	ReturnRequestNote string     `json:"return_request_note,omitempty"`
	ReturnDepartedAt  *time.Time `json:"return_departed_at,omitempty"`
	ReturnedAt        *time.Time `json:"returned_at,omitempty"`

	Refund  Refund          `gorm:"embedded;embeddedPrefix:refund_" json:"refund"`
	Carrier CarrierShipment `gorm:"embedded;embeddedPrefix:carrier_" json:"carrier"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Clone returns a deep copy that shares no memory with i.
func (i OrderItem) Clone() OrderItem {
	c := i
	c.StatusHistory = i.StatusHistory.Clone()
	c.CancelledAt = cloneTime(i.CancelledAt)
	c.ShippedAt = cloneTime(i.ShippedAt)
	c.DeliveredAt = cloneTime(i.DeliveredAt)
	c.ReturnRequestedAt = cloneTime(i.ReturnRequestedAt)
	c.ReturnDepartedAt = cloneTime(i.ReturnDepartedAt)
	c.ReturnedAt = cloneTime(i.ReturnedAt)
	c.Refund = i.Refund.clone()
	c.Carrier = i.Carrier.clone()
	return c
}

// LineTotal is quantity times the unit amount.
func (i *OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.Amount
}

type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundRefunded RefundStatus = "REFUNDED"
	RefundRejected RefundStatus = "REJECTED"
)

// Refund is a side channel on the item, not a node of the status graph.
// An empty Status means no refund was ever requested.
type Refund struct {
	Status          RefundStatus `gorm:"type:varchar(16)" json:"status,omitempty"`
	RequestedAmount int64        `json:"requested_amount,omitempty"`
	Amount          int64        `json:"amount,omitempty"`
	Note            string       `json:"note,omitempty"`

	BankAccount   string `json:"bank_account,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`

	RequestedAt *time.Time `json:"requested_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	ApprovedBy      string `json:"approved_by,omitempty"`
	RejectedBy      string `json:"rejected_by,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func (r Refund) Open() bool {
	return r.Status == RefundPending
}

func (r Refund) clone() Refund {
	c := r
	c.RequestedAt = cloneTime(r.RequestedAt)
	c.ApprovedAt = cloneTime(r.ApprovedAt)
	c.RejectedAt = cloneTime(r.RejectedAt)
	c.ProcessedAt = cloneTime(r.ProcessedAt)
	return c
}

// CarrierShipment links an item to the external carrier. The flags drive the
// outbound handoff: adhoc order -> AWB -> pickup.
type CarrierShipment struct {
	OrderID        string `gorm:"index" json:"order_id,omitempty"`
	ShipmentID     string `json:"shipment_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	AWBCode        string `json:"awb_code,omitempty"`
	CourierName    string `json:"courier_name,omitempty"`
	LastStatus     string `json:"last_status,omitempty"`
	RawTracking    string `gorm:"type:text" json:"raw_tracking,omitempty"`

	AdhocOrderCreated bool `json:"adhoc_order_created"`
	AWBAssigned       bool `json:"awb_assigned"`
	PickupGenerated   bool `json:"pickup_generated"`

	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

func (c CarrierShipment) Engaged() bool {
	return c.OrderID != ""
}

func (c CarrierShipment) clone() CarrierShipment {
	cp := c
	cp.LastEventAt = cloneTime(c.LastEventAt)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
