package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/repo"
	"github.com/Skotchmaster/order_lifecycle/internal/status"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu      sync.Mutex
	changes []models.StatusChange
	err     error
}

func (r *recorder) StatusChanged(_ context.Context, ev models.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ev)
	return r.err
}

func (r *recorder) IndexTransition(ctx context.Context, ev models.StatusChange) error {
	return r.StatusChanged(ctx, ev)
}

func (r *recorder) snapshot() []models.StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.StatusChange(nil), r.changes...)
}

type fakeCarrier struct {
	mu      sync.Mutex
	calls   []string
	err     error
	delay   time.Duration
	orderID string
	// during runs inside each call, while no transaction is open.
	during func(name string)
}

func (f *fakeCarrier) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	delay, err, during := f.delay, f.err, f.during
	f.mu.Unlock()
	if during != nil {
		during(name)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (f *fakeCarrier) CreateAdhocOrder(ctx context.Context, o carrier.AdhocOrder) (*carrier.AdhocOrderResult, error) {
	if err := f.record("adhoc"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := f.orderID
	if id == "" {
		id = "SR123"
	}
	return &carrier.AdhocOrderResult{OrderID: id, ShipmentID: "SH-" + id, Status: "NEW"}, nil
}

func (f *fakeCarrier) AssignAWB(ctx context.Context, shipmentID string) (*carrier.AWBResult, error) {
	if err := f.record("awb"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &carrier.AWBResult{AWBCode: "AWB-" + shipmentID, CourierName: "Delhivery"}, nil
}

func (f *fakeCarrier) GeneratePickup(ctx context.Context, shipmentID string) (*carrier.PickupResult, error) {
	if err := f.record("pickup"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &carrier.PickupResult{Token: "PK-" + shipmentID}, nil
}

var errCarrierDown = errors.New("carrier down")

type testEnv struct {
	svc      *OrderService
	repo     *repo.GormRepo
	clock    *fakeClock
	notified *recorder
	indexed  *recorder
	carrier  *fakeCarrier
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(context.Background()))

	env := &testEnv{
		repo:     r,
		clock:    &fakeClock{now: t0},
		notified: &recorder{},
		indexed:  &recorder{},
		carrier:  &fakeCarrier{},
	}
	env.svc, err = NewOrderService(Deps{
		Repo:           r,
		Carrier:        env.carrier,
		Notifier:       env.notified,
		Indexer:        env.indexed,
		Clock:          env.clock.Now,
		CarrierTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	return env
}

// placeOrder creates an online-paid order with one item per quantity given.
func (e *testEnv) placeOrder(t *testing.T, qty ...int) *models.Order {
	t.Helper()
	return e.placeOrderPaidBy(t, models.PaymentOnline, qty...)
}

func (e *testEnv) placeOrderPaidBy(t *testing.T, method models.PaymentMethod, qty ...int) *models.Order {
	t.Helper()

	in := NewOrder{
		UserID:         uuid.New(),
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentPaid,
		ShippingCharge: 4900,
		Shipping: models.Address{
			Name: "Asha", Phone: "9999999999", Line1: "12 MG Road",
			City: "Pune", State: "MH", PostalCode: "411001", Country: "India",
		},
	}
	for _, q := range qty {
		in.Items = append(in.Items, NewOrderItem{
			ProductID:   uuid.New(),
			ProductName: "Linen shirt",
			Color:       "blue",
			Size:        "M",
			Quantity:    q,
			Amount:      99900,
		})
	}
	order, err := e.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	return order
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := e.repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return order
}

// advance runs a chain of admin transitions on the whole item, one hour apart.
func (e *testEnv) advance(t *testing.T, order *models.Order, itemID uuid.UUID, path ...status.Status) {
	t.Helper()
	for _, st := range path {
		e.clock.Advance(time.Hour)
		_, err := e.svc.ApplyTransition(context.Background(), TransitionCommand{
			OrderID: order.ID,
			ItemID:  itemID,
			Target:  st,
			Source:  models.SourceAdmin,
			Actor:   "admin-1",
		})
		require.NoError(t, err, "advance to %s", st)
	}
}

func itemByStatus(order *models.Order, st status.Status) []models.OrderItem {
	var out []models.OrderItem
	for _, it := range order.Items {
		if it.Status == st {
			out = append(out, it)
		}
	}
	return out
}
