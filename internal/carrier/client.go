package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUpstream = errors.New("carrier upstream error")

// Client is the outbound side of the carrier integration.
type Client interface {
	CreateAdhocOrder(ctx context.Context, o AdhocOrder) (*AdhocOrderResult, error)
	AssignAWB(ctx context.Context, shipmentID string) (*AWBResult, error)
	GeneratePickup(ctx context.Context, shipmentID string) (*PickupResult, error)
}

type AdhocOrder struct {
	OrderID           string      `json:"order_id"`
	OrderDate         string      `json:"order_date"`
	PaymentMethod     string      `json:"payment_method"`
	Name              string      `json:"billing_customer_name"`
	Address           string      `json:"billing_address"`
	Address2          string      `json:"billing_address_2,omitempty"`
	City              string      `json:"billing_city"`
	State             string      `json:"billing_state"`
	Pincode           string      `json:"billing_pincode"`
	Country           string      `json:"billing_country"`
	Phone             string      `json:"billing_phone"`
	ShippingIsBilling bool        `json:"shipping_is_billing"`
	Items             []AdhocItem `json:"order_items"`
	SubTotal          int64       `json:"sub_total"`
}

type AdhocItem struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Units        int    `json:"units"`
	SellingPrice int64  `json:"selling_price"`
}

type AdhocOrderResult struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	Status     string `json:"status"`
}

type AWBResult struct {
	AWBCode     string `json:"awb_code"`
	CourierName string `json:"courier_name"`
}

type PickupResult struct {
	ScheduledDate string `json:"pickup_scheduled_date"`
	Token         string `json:"pickup_token_number"`
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) CreateAdhocOrder(ctx context.Context, o AdhocOrder) (*AdhocOrderResult, error) {
	var raw struct {
		OrderID    json.Number `json:"order_id"`
		ShipmentID json.Number `json:"shipment_id"`
		Status     string      `json:"status"`
	}
	if err := c.post(ctx, "/orders/create/adhoc", o, &raw); err != nil {
		return nil, err
	}
	if raw.OrderID == "" || raw.ShipmentID == "" {
		return nil, fmt.Errorf("%w: adhoc order response without ids", ErrUpstream)
	}
	return &AdhocOrderResult{
		OrderID:    raw.OrderID.String(),
		ShipmentID: raw.ShipmentID.String(),
		Status:     raw.Status,
	}, nil
}

func (c *HTTPClient) AssignAWB(ctx context.Context, shipmentID string) (*AWBResult, error) {
	var raw struct {
		AssignStatus int `json:"awb_assign_status"`
		Response     struct {
			Data AWBResult `json:"data"`
		} `json:"response"`
	}
	if err := c.post(ctx, "/courier/assign/awb", map[string]string{"shipment_id": shipmentID}, &raw); err != nil {
		return nil, err
	}
	if raw.AssignStatus != 1 || raw.Response.Data.AWBCode == "" {
		return nil, fmt.Errorf("%w: awb not assigned", ErrUpstream)
	}
	return &raw.Response.Data, nil
}

func (c *HTTPClient) GeneratePickup(ctx context.Context, shipmentID string) (*PickupResult, error) {
	var raw struct {
		PickupStatus int          `json:"pickup_status"`
		Response     PickupResult `json:"response"`
	}
	body := map[string][]string{"shipment_id": {shipmentID}}
	if err := c.post(ctx, "/courier/generate/pickup", body, &raw); err != nil {
		return nil, err
	}
	if raw.PickupStatus != 1 {
		return nil, fmt.Errorf("%w: pickup not generated", ErrUpstream)
	}
	return &raw.Response, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
