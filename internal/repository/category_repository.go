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
	"gorm.io/gorm/clause"

	"supplier-import-service/internal/models"
)

// Categories rarely change; cache them generously.
const categoryCacheTTL = 30 * time.Minute

// CategoryRepository implements categorylink.CategoryStore over gorm with
// a redis read-through cache on id lookups. Lookup methods return
// (nil, nil) on a miss, matching the store contract of the linker.
type CategoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewCategoryRepository creates a CategoryRepository
func NewCategoryRepository(db *gorm.DB, redisClient *redis.Client) *CategoryRepository {
	return &CategoryRepository{db: db, redis: redisClient}
}

func (r *CategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	cacheKey := fmt.Sprintf("import:categories:id:%s", id)
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
			var category models.Category
			if err := json.Unmarshal([]byte(val), &category); err == nil {
				return &category, nil
			}
		}
	}

	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(category); err == nil {
			r.redis.Set(ctx, cacheKey, data, categoryCacheTTL)
		}
	}
	return &category, nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).First(&category, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) FindMapping(ctx context.Context, supplierCategoryID string) (*models.Category, error) {
	var mapping models.SupplierCategoryMapping
	err := r.db.WithContext(ctx).
		First(&mapping, "supplier_category_id = ?", supplierCategoryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(ctx, mapping.CategoryID)
}

func (r *CategoryRepository) FindByNameContains(ctx context.Context, token string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("name ILIKE ?", "%"+token+"%").
		Order("LENGTH(name) ASC"). // shortest name is the tightest match
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// ReplaceProductLinks swaps the product's category links in one
// transaction: previous links are deleted, the new set inserted with
// exactly one primary.
func (r *CategoryRepository) ReplaceProductLinks(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID, primaryID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ProductCategoryLink{}, "product_id = ?", productID).Error; err != nil {
			return err
		}
		links := make([]models.ProductCategoryLink, 0, len(categoryIDs))
		for _, categoryID := range categoryIDs {
			links = append(links, models.ProductCategoryLink{
				ProductID:  productID,
				CategoryID: categoryID,
				IsPrimary:  categoryID == primaryID,
			})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

// SaveMapping upserts a resolved supplier-category mapping so the next
// import of the same supplier category skips the name cascade. Saving an
// already-mapped supplier category moves it to the new local category;
// there is no separate re-map operation.
func (r *CategoryRepository) SaveMapping(ctx context.Context, supplierCategoryID string, categoryID uuid.UUID) error {
	return r.mappingUpsert(r.db.WithContext(ctx), supplierCategoryID, categoryID).Error
}

func (r *CategoryRepository) mappingUpsert(tx *gorm.DB, supplierCategoryID string, categoryID uuid.UUID) *gorm.DB {
	mapping := models.SupplierCategoryMapping{
		SupplierCategoryID: supplierCategoryID,
		CategoryID:         categoryID,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supplier_category_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"category_id": categoryID,
			"updated_at":  time.Now(),
		}),
	}).Create(&mapping)
}
