package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_lifecycle/internal/audit"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
	"github.com/Skotchmaster/order_lifecycle/internal/transport"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// TransitionSearcher queries the transition audit index.
type TransitionSearcher interface {
	Search(ctx context.Context, q audit.Query) (int64, []models.StatusChange, error)
}

// AdminHTTP serves the operator endpoints. Search is optional.
type AdminHTTP struct {
	Svc    *service.OrderService
	Search TransitionSearcher
}

func (h *AdminHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.order")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "create_order_error", "invalid body")
	}

	in := service.NewOrder{
		UserID:         req.UserID,
		Shipping:       req.ShippingAddress,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  req.PaymentStatus,
		ShippingCharge: req.ShippingCharge,
		TotalAmount:    req.TotalAmount,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.NewOrderItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Color:        it.Color,
			Size:         it.Size,
			Quantity:     it.Quantity,
			Amount:       it.Amount,
		})
	}

	order, err := h.Svc.CreateOrder(ctx, in)
	if err != nil {
		return fail(c, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID, "items", len(order.Items))
	return c.JSON(http.StatusCreated, order)
}

func (h *AdminHTTP) GetOrder(c echo.Context) error {
	orderID, _, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "admin_get_order_error", err.Error())
	}
	order, err := h.Svc.GetOrder(c.Request().Context(), orderID, uuid.Nil)
	if err != nil {
		return fail(c, "admin_get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *AdminHTTP) AvailableTransitions(c echo.Context) error {
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "available_transitions_error", err.Error())
	}
	out, err := h.Svc.AvailableTransitions(c.Request().Context(), orderID, itemID, uuid.Nil)
	if err != nil {
		return fail(c, "available_transitions_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHTTP) ApplyTransition(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "apply.transition")

	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "apply_transition_error", err.Error())
	}

	var req transport.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "apply_transition_error", "invalid body")
	}
	target, ok := status.Parse(req.Status)
	if !ok {
		return badRequest(c, "apply_transition_error", "unknown status "+req.Status)
	}

	res, err := h.Svc.ApplyTransition(ctx, service.TransitionCommand{
		OrderID:      orderID,
		ItemID:       itemID,
		Target:       target,
		Quantity:     req.Quantity,
		Note:         req.Note,
		RefundAmount: req.RefundAmount,
		Source:       models.SourceAdmin,
		Actor:        actor(c),
	})
	if err != nil {
		return fail(c, "apply_transition_error", err)
	}

	l.Info("apply_transition_success", "order_id", orderID, "item_id", res.Item.ID, "status", res.Item.Status)
	return c.JSON(http.StatusOK, transitionResponse(res))
}

func (h *AdminHTTP) ApproveRefund(c echo.Context) error {
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "approve_refund_error", err.Error())
	}
	var req transport.ApproveRefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "approve_refund_error", "invalid body")
	}

	item, err := h.Svc.ApproveRefund(c.Request().Context(), service.RefundDecision{
		OrderID: orderID,
		ItemID:  itemID,
		Admin:   actor(c),
		Amount:  req.Amount,
	})
	if err != nil {
		return fail(c, "approve_refund_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHTTP) RejectRefund(c echo.Context) error {
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "reject_refund_error", err.Error())
	}
	var req transport.RejectRefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "reject_refund_error", "invalid body")
	}

	item, err := h.Svc.RejectRefund(c.Request().Context(), service.RefundDecision{
		OrderID: orderID,
		ItemID:  itemID,
		Admin:   actor(c),
		Reason:  req.Reason,
	})
	if err != nil {
		return fail(c, "reject_refund_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHTTP) CreateShipment(c echo.Context) error {
	return h.shipmentStep(c, "create_shipment", h.Svc.CreateCarrierOrder)
}

func (h *AdminHTTP) AssignAWB(c echo.Context) error {
	return h.shipmentStep(c, "assign_awb", h.Svc.AssignAWB)
}

func (h *AdminHTTP) GeneratePickup(c echo.Context) error {
	return h.shipmentStep(c, "generate_pickup", h.Svc.GeneratePickup)
}

func (h *AdminHTTP) shipmentStep(c echo.Context, event string, step func(context.Context, service.ShipmentCommand) (*service.ShipmentResult, error)) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", event)

	orderID, _, err := pathIDs(c)
	if err != nil {
		return badRequest(c, event+"_error", err.Error())
	}
	var req transport.ShipmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, event+"_error", "invalid body")
	}
	if len(req.ItemIDs) == 0 {
		return badRequest(c, event+"_error", "item_ids required")
	}

	out, err := step(ctx, service.ShipmentCommand{OrderID: orderID, ItemIDs: req.ItemIDs, Admin: actor(c)})
	if err != nil {
		return fail(c, event+"_error", err)
	}

	l.Info(event+"_success", "order_id", orderID, "carrier_order_id", out.CarrierOrderID)
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHTTP) SearchTransitions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.transitions")

	if h.Search == nil {
		l.Warn("search_transitions_error", "status", 503, "error", "audit index not configured")
		return c.JSON(http.StatusServiceUnavailable, transport.ErrorResponse{Error: "audit search not configured"})
	}

	q := audit.Query{
		Text:    c.QueryParam("q"),
		OrderID: c.QueryParam("order_id"),
		ItemID:  c.QueryParam("item_id"),
		From:    queryInt(c, "from", 0),
		Size:    queryInt(c, "size", 20),
	}
	if v := c.QueryParam("status"); v != "" {
		st, ok := status.Parse(v)
		if !ok {
			return badRequest(c, "search_transitions_error", "unknown status "+v)
		}
		q.Status = st.String()
	}
	if q.From < 0 || q.Size <= 0 || q.Size > 100 {
		return badRequest(c, "search_transitions_error", "from must be >= 0 and size in 1..100")
	}

	total, hits, err := h.Search.Search(ctx, q)
	if err != nil {
		l.Error("search_transitions_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, transport.ErrorResponse{Error: "search failed"})
	}
	return c.JSON(http.StatusOK, transport.TransitionSearchResponse{Total: total, Transitions: hits})
}
