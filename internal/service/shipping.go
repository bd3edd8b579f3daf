package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// ShipmentCommand selects the items of one order an admin hands to the
// carrier. For AWB and pickup the items identify the carrier order; every
// item sharing it is updated.
type ShipmentCommand struct {
	OrderID uuid.UUID
	ItemIDs []uuid.UUID
	Admin   string
}

type ShipmentResult struct {
	CarrierOrderID string             `json:"carrier_order_id"`
	ShipmentID     string             `json:"shipment_id"`
	AWBCode        string             `json:"awb_code,omitempty"`
	CourierName    string             `json:"courier_name,omitempty"`
	PickupToken    string             `json:"pickup_token,omitempty"`
	Items          []models.OrderItem `json:"items"`
}

type shipmentStep int

const (
	stepAdhoc shipmentStep = iota
	stepAWB
	stepPickup
)

func (st shipmentStep) String() string {
	return [...]string{"create carrier order", "assign awb", "generate pickup"}[st]
}

// ready reports whether c may run st: the previous flag is set and st's is not.
func (st shipmentStep) ready(c models.CarrierShipment) error {
	var prev, done bool
	switch st {
	case stepAdhoc:
		prev, done = true, c.AdhocOrderCreated
	case stepAWB:
		prev, done = c.AdhocOrderCreated, c.AWBAssigned
	case stepPickup:
		prev, done = c.AWBAssigned, c.PickupGenerated
	}
	if done {
		return fmt.Errorf("%w: %s already done", ErrAlreadyProcessed, st)
	}
	if !prev {
		return fmt.Errorf("%w: %s requires the previous step", ErrValidation, st)
	}
	return nil
}

// CreateCarrierOrder registers the selected Ordered items with the carrier
// as one shipment.
func (s *OrderService) CreateCarrierOrder(ctx context.Context, cmd ShipmentCommand) (*ShipmentResult, error) {
	l := logging.FromContext(ctx).With("order_id", cmd.OrderID, "step", stepAdhoc.String())

	order, err := s.loadForShipment(ctx, cmd)
	if err != nil {
		return nil, err
	}
	items, err := pickItems(order, cmd.ItemIDs)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Status != status.Ordered {
			return nil, fmt.Errorf("%w: item %s is %q", ErrValidation, it.ID, it.Status)
		}
		if err := stepAdhoc.ready(it.Carrier); err != nil {
			return nil, err
		}
	}

	created, err := callCarrier(ctx, s.carrierTimeout, func(cctx context.Context) (*carrier.AdhocOrderResult, error) {
		return s.carrier.CreateAdhocOrder(cctx, adhocOrder(order, items, s.clock()))
	})
	if err != nil {
		l.Warn("carrier_call_error", "error", err)
		return nil, err
	}

	out := &ShipmentResult{CarrierOrderID: created.OrderID, ShipmentID: created.ShipmentID}
	err = s.repo.WithOrder(ctx, cmd.OrderID, func(o *models.Order) error {
		for _, id := range cmd.ItemIDs {
			idx := o.ItemIndex(id)
			if idx < 0 {
				return ErrItemNotFound
			}
			it := &o.Items[idx]
			if it.Status != status.Ordered {
				return fmt.Errorf("%w: item %s is %q", ErrValidation, it.ID, it.Status)
			}
			if err := stepAdhoc.ready(it.Carrier); err != nil {
				return err
			}
			it.Carrier.OrderID = created.OrderID
			it.Carrier.ShipmentID = created.ShipmentID
			it.Carrier.LastStatus = created.Status
			it.Carrier.AdhocOrderCreated = true
			out.Items = append(out.Items, it.Clone())
		}
		return nil
	})
	if err != nil {
		l.Error("shipment_apply_error", "carrier_order_id", created.OrderID, "error", err)
		return nil, storeErr(err)
	}

	l.Info("shipment_step_success", "carrier_order_id", created.OrderID)
	return out, nil
}

// AssignAWB fetches a waybill for the carrier order the items belong to.
func (s *OrderService) AssignAWB(ctx context.Context, cmd ShipmentCommand) (*ShipmentResult, error) {
	l := logging.FromContext(ctx).With("order_id", cmd.OrderID, "step", stepAWB.String())

	ship, err := s.prepareStep(ctx, cmd, stepAWB)
	if err != nil {
		return nil, err
	}

	awb, err := callCarrier(ctx, s.carrierTimeout, func(cctx context.Context) (*carrier.AWBResult, error) {
		return s.carrier.AssignAWB(cctx, ship.ShipmentID)
	})
	if err != nil {
		l.Warn("carrier_call_error", "error", err)
		return nil, err
	}

	out := &ShipmentResult{
		CarrierOrderID: ship.OrderID,
		ShipmentID:     ship.ShipmentID,
		AWBCode:        awb.AWBCode,
		CourierName:    awb.CourierName,
	}
	err = s.repo.WithOrder(ctx, cmd.OrderID, func(o *models.Order) error {
		return forShipment(o, ship.OrderID, stepAWB, func(it *models.OrderItem) {
			it.Carrier.AWBCode = awb.AWBCode
			it.Carrier.TrackingNumber = awb.AWBCode
			it.Carrier.CourierName = awb.CourierName
			it.Carrier.AWBAssigned = true
			out.Items = append(out.Items, it.Clone())
		})
	})
	if err != nil {
		l.Error("shipment_apply_error", "carrier_order_id", ship.OrderID, "error", err)
		return nil, storeErr(err)
	}

	l.Info("shipment_step_success", "carrier_order_id", ship.OrderID, "awb", awb.AWBCode)
	return out, nil
}

// GeneratePickup books the pickup and ships every Ordered item of the
// carrier order in the same commit.
func (s *OrderService) GeneratePickup(ctx context.Context, cmd ShipmentCommand) (*ShipmentResult, error) {
	l := logging.FromContext(ctx).With("order_id", cmd.OrderID, "step", stepPickup.String())

	ship, err := s.prepareStep(ctx, cmd, stepPickup)
	if err != nil {
		return nil, err
	}

	pickup, err := callCarrier(ctx, s.carrierTimeout, func(cctx context.Context) (*carrier.PickupResult, error) {
		return s.carrier.GeneratePickup(cctx, ship.ShipmentID)
	})
	if err != nil {
		l.Warn("carrier_call_error", "error", err)
		return nil, err
	}

	out := &ShipmentResult{
		CarrierOrderID: ship.OrderID,
		ShipmentID:     ship.ShipmentID,
		AWBCode:        ship.AWBCode,
		CourierName:    ship.CourierName,
		PickupToken:    pickup.Token,
	}
	var changes []models.StatusChange
	err = s.repo.WithOrder(ctx, cmd.OrderID, func(o *models.Order) error {
		var toShip []uuid.UUID
		err := forShipment(o, ship.OrderID, stepPickup, func(it *models.OrderItem) {
			it.Carrier.PickupGenerated = true
			if it.Status == status.Ordered {
				toShip = append(toShip, it.ID)
			}
		})
		if err != nil {
			return err
		}

		now := s.clock()
		note := "Pickup generated"
		if ship.CourierName != "" {
			note += " with " + ship.CourierName
		}
		for _, id := range toShip {
			applied, err := s.applyToItem(o, o.ItemIndex(id), change{
				target: status.Shipped,
				note:   note,
				source: models.SourceAdmin,
				actor:  cmd.Admin,
			}, now)
			if err != nil {
				return err
			}
			changes = append(changes, s.statusChange(o, applied))
		}

		for i := range o.Items {
			if o.Items[i].Carrier.OrderID == ship.OrderID {
				out.Items = append(out.Items, o.Items[i].Clone())
			}
		}
		return nil
	})
	if err != nil {
		l.Error("shipment_apply_error", "carrier_order_id", ship.OrderID, "error", err)
		return nil, storeErr(err)
	}

	l.Info("shipment_step_success", "carrier_order_id", ship.OrderID, "shipped", len(changes))
	s.publish(ctx, changes)
	return out, nil
}

func (s *OrderService) loadForShipment(ctx context.Context, cmd ShipmentCommand) (*models.Order, error) {
	if s.carrier == nil {
		return nil, fmt.Errorf("%w: carrier client not configured", ErrUpstreamCarrier)
	}
	if len(cmd.ItemIDs) == 0 {
		return nil, fmt.Errorf("%w: item_ids required", ErrValidation)
	}
	order, err := s.repo.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, storeErr(err)
	}
	return order, nil
}

// prepareStep resolves the carrier shipment named by the items and checks
// that all of its items are ready for st.
func (s *OrderService) prepareStep(ctx context.Context, cmd ShipmentCommand, st shipmentStep) (models.CarrierShipment, error) {
	order, err := s.loadForShipment(ctx, cmd)
	if err != nil {
		return models.CarrierShipment{}, err
	}
	items, err := pickItems(order, cmd.ItemIDs)
	if err != nil {
		return models.CarrierShipment{}, err
	}

	ship := items[0].Carrier
	if !ship.Engaged() {
		return models.CarrierShipment{}, fmt.Errorf("%w: %s requires the previous step", ErrValidation, st)
	}
	for _, it := range items[1:] {
		if it.Carrier.OrderID != ship.OrderID {
			return models.CarrierShipment{}, fmt.Errorf("%w: items belong to different carrier orders", ErrValidation)
		}
	}
	if err := forShipment(order, ship.OrderID, st, func(*models.OrderItem) {}); err != nil {
		return models.CarrierShipment{}, err
	}
	return ship, nil
}

// forShipment checks st against every item of the carrier order and then
// calls fn on each of them. Nothing is touched if one item is not ready.
func forShipment(o *models.Order, carrierOrderID string, st shipmentStep, fn func(*models.OrderItem)) error {
	var idx []int
	for i := range o.Items {
		if o.Items[i].Carrier.OrderID != carrierOrderID {
			continue
		}
		if err := st.ready(o.Items[i].Carrier); err != nil {
			return err
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return ErrItemNotFound
	}
	for _, i := range idx {
		fn(&o.Items[i])
	}
	return nil
}

func pickItems(order *models.Order, ids []uuid.UUID) ([]models.OrderItem, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate item %s", ErrValidation, id)
		}
		seen[id] = true
		idx := order.ItemIndex(id)
		if idx < 0 {
			return nil, ErrItemNotFound
		}
		out = append(out, order.Items[idx])
	}
	return out, nil
}

// callCarrier bounds a carrier call by the configured timeout and folds its
// failures into ErrUpstreamCarrier.
func callCarrier[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (*T, error)) (*T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := call(cctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", ErrUpstreamCarrier, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamCarrier, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUpstreamCarrier)
	}
	return res, nil
}

func adhocOrder(o *models.Order, items []models.OrderItem, now time.Time) carrier.AdhocOrder {
	method := "Prepaid"
	if o.PaymentMethod == models.PaymentCOD {
		method = "COD"
	}
	req := carrier.AdhocOrder{
		OrderID:           o.ID.String(),
		OrderDate:         now.Format("2006-01-02 15:04"),
		PaymentMethod:     method,
		Name:              o.Shipping.Name,
		Address:           o.Shipping.Line1,
		Address2:          o.Shipping.Line2,
		City:              o.Shipping.City,
		State:             o.Shipping.State,
		Pincode:           o.Shipping.PostalCode,
		Country:           o.Shipping.Country,
		Phone:             o.Shipping.Phone,
		ShippingIsBilling: true,
	}
	for _, it := range items {
		sku := it.ProductID.String()
		if v := strings.Trim(it.Color+"-"+it.Size, "-"); v != "" {
			sku += "-" + v
		}
		req.Items = append(req.Items, carrier.AdhocItem{
			Name:         it.ProductName,
			SKU:          sku,
			Units:        it.Quantity,
			SellingPrice: it.Amount,
		})
		req.SubTotal += it.LineTotal()
	}
	return req
}
