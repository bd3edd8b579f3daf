package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

const maxWebhookBody = 1 << 20

// WebhookHTTP accepts carrier callbacks. Each family has its own verifier.
type WebhookHTTP struct {
	Svc       *service.OrderService
	Verifiers map[carrier.Family]carrier.Verifier
	Clock     func() time.Time
}

func (h *WebhookHTTP) Order(c echo.Context) error {
	return h.ingest(c, carrier.FamilyOrder)
}

func (h *WebhookHTTP) Return(c echo.Context) error {
	return h.ingest(c, carrier.FamilyReturn)
}

func (h *WebhookHTTP) Tracking(c echo.Context) error {
	return h.ingest(c, carrier.FamilyTracking)
}

func (h *WebhookHTTP) ingest(c echo.Context, family carrier.Family) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "carrier.webhook", "family", family)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, "webhook_error", "read body")
	}
	if len(body) > maxWebhookBody {
		return badRequest(c, "webhook_error", "body too large")
	}

	v, ok := h.Verifiers[family]
	if !ok {
		return fail(c, "webhook_auth_error", fmt.Errorf("%w: no verifier for %s", carrier.ErrAuthenticationFailed, family))
	}
	if err := v.Verify(c.Request().Header, body); err != nil {
		return fail(c, "webhook_auth_error", err)
	}

	ev, err := carrier.Normalize(body, h.now())
	if err != nil {
		return fail(c, "webhook_payload_error", err)
	}

	res, err := h.Svc.IngestCarrierEvent(ctx, family, ev)
	if err != nil {
		return fail(c, "webhook_apply_error", err)
	}

	l.Info("webhook_success", "carrier_order_id", res.CarrierOrderID, "changed", res.Changed, "unchanged", res.Unchanged)
	return c.JSON(http.StatusOK, res)
}

func (h *WebhookHTTP) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}
