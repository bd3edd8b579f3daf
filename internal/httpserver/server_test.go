package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_lifecycle/internal/audit"
	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/repo"
	"github.com/Skotchmaster/order_lifecycle/internal/service"
	"github.com/Skotchmaster/order_lifecycle/internal/transport"
	"github.com/Skotchmaster/order_lifecycle/pkg/db"
	loggingmw "github.com/Skotchmaster/order_lifecycle/pkg/middleware/logging"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
	"github.com/Skotchmaster/order_lifecycle/pkg/tokens"
)

const (
	jwtSecret    = "http-test-secret"
	hookSecret   = "hook-secret"
	hookHMACKey  = "hook-hmac"
	carrierOrder = "SR900"
)

type stubCarrier struct{}

func (stubCarrier) CreateAdhocOrder(context.Context, carrier.AdhocOrder) (*carrier.AdhocOrderResult, error) {
	return &carrier.AdhocOrderResult{OrderID: carrierOrder, ShipmentID: "SH900", Status: "NEW"}, nil
}

func (stubCarrier) AssignAWB(_ context.Context, shipmentID string) (*carrier.AWBResult, error) {
	return &carrier.AWBResult{AWBCode: "AWB-" + shipmentID, CourierName: "Delhivery"}, nil
}

func (stubCarrier) GeneratePickup(_ context.Context, shipmentID string) (*carrier.PickupResult, error) {
	return &carrier.PickupResult{Token: "PK-" + shipmentID}, nil
}

type stubSearch struct {
	got  audit.Query
	hits []models.StatusChange
}

func (s *stubSearch) Search(_ context.Context, q audit.Query) (int64, []models.StatusChange, error) {
	s.got = q
	return int64(len(s.hits)), s.hits, nil
}

type server struct {
	e      *echo.Echo
	svc    *service.OrderService
	search *stubSearch
	user   uuid.UUID
	admin  uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	r := &repo.GormRepo{DB: gdb}
	require.NoError(t, r.Migrate(context.Background()))

	svc, err := service.NewOrderService(service.Deps{Repo: r, Carrier: stubCarrier{}})
	require.NoError(t, err)

	s := &server{e: echo.New(), svc: svc, search: &stubSearch{}, user: uuid.New(), admin: uuid.New()}
	s.e.Use(loggingmw.RequestLogger(logging.NewWithWriter(&bytes.Buffer{}, "error")))
	Register(s.e, &Deps{
		OrderHandler: &OrderHTTP{Svc: svc},
		AdminHandler: &AdminHTTP{Svc: svc, Search: s.search},
		WebhookHandler: &WebhookHTTP{
			Svc: svc,
			Verifiers: map[carrier.Family]carrier.Verifier{
				carrier.FamilyOrder:    carrier.NewSharedSecret(hookSecret),
				carrier.FamilyReturn:   carrier.NewSharedSecret(hookSecret),
				carrier.FamilyTracking: carrier.NewHMACSHA256(hookHMACKey),
			},
		},
		JWTSecret: []byte(jwtSecret),
		DB:        gdb,
	})
	return s
}

func (s *server) token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(id.String(), role, time.Now().Add(time.Hour), []byte(jwtSecret))
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, bearer string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case []byte:
			buf.Write(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) asUser(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, s.token(t, s.user, tokens.RoleUser), body)
}

func (s *server) asAdmin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, s.token(t, s.admin, tokens.RoleAdmin), body)
}

// placeOrder creates an order for s.user through the admin endpoint.
func (s *server) placeOrder(t *testing.T, method models.PaymentMethod, qty ...int) models.Order {
	t.Helper()
	req := transport.CreateOrderRequest{
		UserID:         s.user,
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentPaid,
		ShippingCharge: 4900,
		ShippingAddress: models.Address{
			Name: "Ravi", Phone: "9000000000", Line1: "4 Park St",
			City: "Kolkata", State: "WB", PostalCode: "700016", Country: "India",
		},
	}
	for _, q := range qty {
		req.Items = append(req.Items, transport.CreateOrderItem{
			ProductID: uuid.New(), ProductName: "Kurta", Quantity: q, Amount: 120000,
		})
	}
	rec := s.asAdmin(t, http.MethodPost, "/admin/orders", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	decode(t, rec, &order)
	return order
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func itemPath(order models.Order, idx int, suffix string) string {
	return "/orders/" + order.ID.String() + "/items/" + order.Items[idx].ID.String() + suffix
}
