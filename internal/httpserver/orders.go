package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/internal/transport"
	"github.com/Skotchmaster/order_lifecycle/internal/util"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

// OrderHTTP serves the customer-facing order endpoints.
type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.orders")

	uid, err := userID(c)
	if err != nil {
		l.Warn("list_orders_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{Error: "unauthorized"})
	}

	page := queryInt(c, "page", 1)
	offset, size := util.Calculate(page, queryInt(c, "size", util.DefaultPageSize))
	orders, err := h.Svc.ListOrders(ctx, uid, size, offset)
	if err != nil {
		return fail(c, "list_orders_error", err)
	}

	return c.JSON(http.StatusOK, transport.ListOrdersResponse{Orders: orders, Page: offset/size + 1, Size: size})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{Error: "unauthorized"})
	}
	orderID, _, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "get_order_error", err.Error())
	}

	order, err := h.Svc.GetOrder(ctx, orderID, uid)
	if err != nil {
		return fail(c, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) AvailableTransitions(c echo.Context) error {
	ctx := c.Request().Context()

	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{Error: "unauthorized"})
	}
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "available_transitions_error", err.Error())
	}

	out, err := h.Svc.AvailableTransitions(ctx, orderID, itemID, uid)
	if err != nil {
		return fail(c, "available_transitions_error", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) CancelItem(c echo.Context) error {
	return h.itemAction(c, "cancel_item", h.Svc.CancelItem)
}

func (h *OrderHTTP) RequestReturn(c echo.Context) error {
	return h.itemAction(c, "request_return", h.Svc.RequestReturn)
}

func (h *OrderHTTP) itemAction(c echo.Context, event string, act func(context.Context, service.UserItemAction) (*service.TransitionResult, error)) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", event)

	uid, err := userID(c)
	if err != nil {
		l.Warn(event+"_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{Error: "unauthorized"})
	}
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, event+"_error", err.Error())
	}

	var req transport.ItemActionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, event+"_error", "invalid body")
	}

	res, err := act(ctx, service.UserItemAction{
		OrderID:  orderID,
		ItemID:   itemID,
		UserID:   uid,
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		return fail(c, event+"_error", err)
	}

	l.Info(event+"_success", "order_id", orderID, "item_id", res.Item.ID, "split", res.Split)
	return c.JSON(http.StatusOK, transitionResponse(res))
}

func (h *OrderHTTP) RequestRefund(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "request.refund")

	uid, err := userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{Error: "unauthorized"})
	}
	orderID, itemID, err := pathIDs(c)
	if err != nil {
		return badRequest(c, "request_refund_error", err.Error())
	}

	var req transport.RefundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "request_refund_error", "invalid body")
	}

	item, err := h.Svc.RequestRefund(ctx, service.RefundRequest{
		OrderID: orderID,
		ItemID:  itemID,
		UserID:  uid,
		Note:    req.Note,
		Payout: service.Payout{
			BankAccount:   req.BankAccount,
			IFSC:          req.IFSC,
			AccountHolder: req.AccountHolder,
			UPIID:         req.UPIID,
		},
	})
	if err != nil {
		return fail(c, "request_refund_error", err)
	}

	l.Info("request_refund_success", "order_id", orderID, "item_id", itemID)
	return c.JSON(http.StatusAccepted, item)
}

func transitionResponse(res *service.TransitionResult) transport.TransitionResponse {
	return transport.TransitionResponse{
		OrderID:        res.Order.ID,
		PreviousStatus: res.Previous,
		Split:          res.Split,
		Item:           res.Item,
		OrderVersion:   res.Order.Version,
	}
}
