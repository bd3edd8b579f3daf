package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_lifecycle/internal/audit"
	"github.com/Skotchmaster/order_lifecycle/internal/carrier"
	"github.com/Skotchmaster/order_lifecycle/internal/models"
	"github.com/Skotchmaster/order_lifecycle/internal/notify"
	"github.com/Skotchmaster/order_lifecycle/internal/repo"
	"github.com/Skotchmaster/order_lifecycle/pkg/logging"
)

const (
	defaultReturnWindowDays = 7
	defaultCarrierTimeout   = 10 * time.Second
	defaultNotifyTimeout    = 5 * time.Second
)

type Deps struct {
	Repo     *repo.GormRepo
	Carrier  carrier.Client
	Notifier notify.Notifier
	Indexer  audit.Indexer

	Clock func() time.Time
	NewID func() uuid.UUID
	// NewRef builds human-facing references such as cancel and return ids.
	NewRef func(prefix string) string

	ReturnWindowDays int
	CarrierTimeout   time.Duration
	NotifyTimeout    time.Duration
}

type OrderService struct {
	repo     *repo.GormRepo
	carrier  carrier.Client
	notifier notify.Notifier
	indexer  audit.Indexer

	now    func() time.Time
	newID  func() uuid.UUID
	newRef func(prefix string) string

	returnWindowDays int
	carrierTimeout   time.Duration
	notifyTimeout    time.Duration

	inflight sync.WaitGroup
}

func NewOrderService(d Deps) (*OrderService, error) {
	if d.Repo == nil {
		return nil, errors.New("service: repo is required")
	}
	s := &OrderService{
		repo:             d.Repo,
		carrier:          d.Carrier,
		notifier:         d.Notifier,
		indexer:          d.Indexer,
		now:              d.Clock,
		newID:            d.NewID,
		newRef:           d.NewRef,
		returnWindowDays: d.ReturnWindowDays,
		carrierTimeout:   d.CarrierTimeout,
		notifyTimeout:    d.NotifyTimeout,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.indexer == nil {
		s.indexer = audit.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	if s.newRef == nil {
		s.newRef = func(prefix string) string { return prefix + "-" + ulid.Make().String() }
	}
	if s.returnWindowDays <= 0 {
		s.returnWindowDays = defaultReturnWindowDays
	}
	if s.carrierTimeout <= 0 {
		s.carrierTimeout = defaultCarrierTimeout
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	return s, nil
}

func (s *OrderService) clock() time.Time {
	return s.now().UTC()
}

// publish hands committed changes to the notifier and the audit index. It
// never blocks the caller and never fails the operation.
func (s *OrderService) publish(ctx context.Context, changes []models.StatusChange) {
	if len(changes) == 0 {
		return
	}
	l := logging.FromContext(ctx)
	base := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		pctx, cancel := context.WithTimeout(base, s.notifyTimeout)
		defer cancel()

		for _, ch := range changes {
			if err := s.notifier.StatusChanged(pctx, ch); err != nil {
				l.Warn("notify_status_changed_error", "order_id", ch.OrderID, "item_id", ch.ItemID, "error", err)
			}
			if err := s.indexer.IndexTransition(pctx, ch); err != nil {
				l.Warn("audit_index_error", "order_id", ch.OrderID, "item_id", ch.ItemID, "error", err)
			}
		}
	}()
}

// Wait blocks until every publish started so far has finished, or ctx is
// done. Call it on shutdown before closing the notifier's producer.
func (s *OrderService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// storeErr translates persistence failures into the service taxonomy.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repo.ErrVersionConflict):
		return ErrConflict
	default:
		return err
	}
}
