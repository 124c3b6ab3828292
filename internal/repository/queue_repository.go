package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"supplier-import-service/internal/models"
)

const queueStatsCacheTTL = 1 * time.Minute

var (
	ErrQueueItemNotFound  = errors.New("queue item not found")
	ErrInvalidTransition  = errors.New("invalid queue status transition")
	ErrQueueItemImmutable = errors.New("imported queue items are immutable")
)

// QueueRepositoryInterface abstracts the import queue store for the
// service layer and its tests
type QueueRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedProduct, error)
	GetBySupplierProductID(ctx context.Context, supplierProductID string) (*models.QueuedProduct, error)
	List(ctx context.Context, status models.QueueStatus, batchID string, limit, offset int) ([]models.QueuedProduct, int64, error)
	Create(ctx context.Context, item *models.QueuedProduct) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus, reviewedBy string) error
	MarkImported(ctx context.Context, id uuid.UUID, catalogProductID uuid.UUID) error
	UpdatePrice(ctx context.Context, id uuid.UUID, price float64) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.QueueStats, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.QueuedProduct, error)
}

// QueueRepository is the gorm-backed queue store with a short-lived redis
// cache over the dashboard stats
type QueueRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewQueueRepository creates a QueueRepository. The redis client may be
// nil; caching is then skipped.
func NewQueueRepository(db *gorm.DB, redisClient *redis.Client) *QueueRepository {
	return &QueueRepository{db: db, redis: redisClient}
}

func (r *QueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedProduct, error) {
	var item models.QueuedProduct
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *QueueRepository) GetBySupplierProductID(ctx context.Context, supplierProductID string) (*models.QueuedProduct, error) {
	var item models.QueuedProduct
	err := r.db.WithContext(ctx).
		First(&item, "supplier_product_id = ?", supplierProductID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *QueueRepository) List(ctx context.Context, status models.QueueStatus, batchID string, limit, offset int) ([]models.QueuedProduct, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.QueuedProduct{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.QueuedProduct
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (r *QueueRepository) Create(ctx context.Context, item *models.QueuedProduct) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if err == nil {
		r.invalidateStats(ctx)
	}
	return err
}

// UpdateStatus moves an item between queue states, enforcing the state
// machine inside a single conditional UPDATE: the transition only applies
// if the row is still in the expected source state, so two concurrent
// admins cannot both win.
func (r *QueueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus, reviewedBy string) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      to,
		"reviewed_at": now,
		"updated_at":  now,
	}
	if reviewedBy != "" {
		updates["reviewed_by"] = reviewedBy
	}

	result := r.db.WithContext(ctx).Model(&models.QueuedProduct{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is gone or someone else transitioned it first.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %s, found %s", ErrInvalidTransition, from, current.Status)
	}

	r.invalidateStats(ctx)
	return nil
}

// MarkImported finalizes a row after the catalog commit. The row becomes
// immutable apart from the audit timestamp.
func (r *QueueRepository) MarkImported(ctx context.Context, id uuid.UUID, catalogProductID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.QueuedProduct{}).
		Where("id = ? AND status = ?", id, models.QueueStatusApproved).
		Updates(map[string]interface{}{
			"status":             models.QueueStatusImported,
			"catalog_product_id": catalogProductID,
			"imported_at":        now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == models.QueueStatusImported {
			// A concurrent worker already committed this row.
			return nil
		}
		return fmt.Errorf("%w: expected %s, found %s", ErrInvalidTransition, models.QueueStatusApproved, current.Status)
	}

	r.invalidateStats(ctx)
	return nil
}

func (r *QueueRepository) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) error {
	item, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Status == models.QueueStatusImported {
		return ErrQueueItemImmutable
	}
	return r.db.WithContext(ctx).Model(&models.QueuedProduct{}).
		Where("id = ?", id).
		Update("price", price).Error
}

// Delete removes a queue row. Imported rows are the audit trail of the
// catalog and stay.
func (r *QueueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	item, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.Status == models.QueueStatusImported {
		return ErrQueueItemImmutable
	}
	err = r.db.WithContext(ctx).Delete(&models.QueuedProduct{}, "id = ?", id).Error
	if err == nil {
		r.invalidateStats(ctx)
	}
	return err
}

func (r *QueueRepository) Stats(ctx context.Context) (*models.QueueStats, error) {
	const cacheKey = "import:queue:stats"

	if r.redis != nil {
		if val, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
			var stats models.QueueStats
			if err := json.Unmarshal([]byte(val), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	var rows []struct {
		Status models.QueueStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.QueuedProduct{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.QueueStats{}
	for _, row := range rows {
		switch row.Status {
		case models.QueueStatusPending:
			stats.Pending = row.Count
		case models.QueueStatusApproved:
			stats.Approved = row.Count
		case models.QueueStatusRejected:
			stats.Rejected = row.Count
		case models.QueueStatusImported:
			stats.Imported = row.Count
		}
		stats.Total += row.Count
	}

	if r.redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			r.redis.Set(ctx, cacheKey, data, queueStatsCacheTTL)
		}
	}
	return stats, nil
}

// ListStalePending returns PENDING rows older than the given age, used by
// the escalation job.
func (r *QueueRepository) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.QueuedProduct, error) {
	cutoff := time.Now().Add(-olderThan)
	var items []models.QueuedProduct
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.QueueStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *QueueRepository) invalidateStats(ctx context.Context) {
	if r.redis != nil {
		r.redis.Del(ctx, "import:queue:stats")
	}
}
