package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
)

// ErrVersionConflict is returned when another writer committed the order
// between our read and our write.
var ErrVersionConflict = errors.New("order version conflict")

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(&models.Order{}, &models.OrderItem{})
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", byPosition).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var orders []models.Order
	err := q.Preload("Items", byPosition).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderIDsByCarrierOrderID finds the orders whose items were handed to the
// carrier under carrierOrderID.
func (r *GormRepo) OrderIDsByCarrierOrderID(ctx context.Context, carrierOrderID string) ([]uuid.UUID, error) {
	var raw []string
	err := r.DB.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("carrier_order_id = ?", carrierOrderID).
		Distinct().
		Order("order_id").
		Pluck("order_id", &raw).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("order id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WithOrder runs fn against a locked, freshly read copy of the order and
// persists whatever fn left in it. Nothing is written if fn fails.
func (r *GormRepo) WithOrder(ctx context.Context, id uuid.UUID, fn func(order *models.Order) error) error {
	return r.WithOrders(ctx, []uuid.UUID{id}, func(orders []*models.Order) error {
		return fn(orders[0])
	})
}

// WithOrders is WithOrder for several orders in one transaction. Rows are
// locked in id order so concurrent callers cannot deadlock each other.
func (r *GormRepo) WithOrders(ctx context.Context, ids []uuid.UUID, fn func(orders []*models.Order) error) error {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders, err := loadLocked(tx, ids)
		if err != nil {
			return err
		}

		versions := make([]int64, len(orders))
		known := make([]map[uuid.UUID]struct{}, len(orders))
		for i, o := range orders {
			versions[i] = o.Version
			known[i] = make(map[uuid.UUID]struct{}, len(o.Items))
			for _, it := range o.Items {
				known[i][it.ID] = struct{}{}
			}
		}

		if err := fn(orders); err != nil {
			return err
		}

		for i, o := range orders {
			if err := saveOrder(tx, o, versions[i], known[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadLocked(tx *gorm.DB, ids []uuid.UUID) ([]*models.Order, error) {
	q := tx.Preload("Items", byPosition).Where("id IN ?", ids).Order("id")
	// sqlite serializes writers on its own and has no FOR UPDATE.
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var orders []*models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) != len(ids) {
		return nil, gorm.ErrRecordNotFound
	}
	return orders, nil
}

func saveOrder(tx *gorm.DB, o *models.Order, version int64, known map[uuid.UUID]struct{}) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND version = ?", o.ID, version).
		Updates(map[string]any{
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("bump order version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	o.Version = version + 1

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		if _, ok := known[item.ID]; ok {
			if err := tx.Select("*").Omit("created_at").Save(item).Error; err != nil {
				return fmt.Errorf("save item %s: %w", item.ID, err)
			}
			continue
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create item %s: %w", item.ID, err)
		}
	}
	return nil
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
