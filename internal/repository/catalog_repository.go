package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"supplier-import-service/internal/categorylink"
	"supplier-import-service/internal/models"
)

const (
	slugSuffixAttempts  = 20
	insertRetryAttempts = 3

	productSlugIndex = "idx_products_slug"
)

var ErrProductNotFound = errors.New("catalog product not found")

// CatalogRepositoryInterface abstracts the storefront catalog store
type CatalogRepositoryInterface interface {
	InsertProduct(ctx context.Context, product *models.Product, variants []models.ProductVariant) (*models.Product, error)
	FindBySupplierProductID(ctx context.Context, supplierProductID string) (*models.Product, error)
}

// CatalogRepository persists imported products. Idempotence rests on the
// unique index over the supplier product id: a concurrent duplicate insert
// fails there and is resolved by re-reading the winner.
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewCatalogRepository creates a CatalogRepository
func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client) *CatalogRepository {
	return &CatalogRepository{db: db, redis: redisClient}
}

func (r *CatalogRepository) FindBySupplierProductID(ctx context.Context, supplierProductID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		First(&product, "supplier_product_id = ?", supplierProductID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// InsertProduct commits a product and its variants in one transaction.
// On a duplicate supplier product id, the already-committed product is
// returned instead: concurrent imports of the same supplier product must
// converge on one catalog row. On a duplicate slug, the slug is
// re-allocated with a suffix and the insert retried: two products with
// the same name racing past allocateSlug must not fail the import.
func (r *CatalogRepository) InsertProduct(ctx context.Context, product *models.Product, variants []models.ProductVariant) (*models.Product, error) {
	slug, err := r.allocateSlug(ctx, product.Name)
	if err != nil {
		return nil, err
	}
	product.Slug = slug

	var lastErr error
	for attempt := 0; attempt < insertRetryAttempts; attempt++ {
		err := r.insertOnce(ctx, product, variants)
		if err == nil {
			r.invalidateProductCaches(ctx)
			return product, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert catalog product: %w", err)
		}
		lastErr = err

		// Duplicate supplier product id: a concurrent import of the same
		// product won the race, converge on its row.
		existing, findErr := r.FindBySupplierProductID(ctx, product.SupplierProductID)
		if findErr == nil {
			return existing, nil
		}
		if !errors.Is(findErr, ErrProductNotFound) {
			return nil, findErr
		}

		// Not our supplier id, so the collision is on the slug. Confirm
		// before retrying: an unrelated constraint must still fail.
		slugConflict := violatedConstraint(err) == productSlugIndex
		if !slugConflict && violatedConstraint(err) == "" {
			slugConflict, _ = r.slugTaken(ctx, product.Slug)
		}
		if !slugConflict {
			return nil, fmt.Errorf("failed to insert catalog product: %w", err)
		}
		slug, slugErr := r.allocateSlug(ctx, product.Name)
		if slugErr != nil {
			return nil, slugErr
		}
		product.Slug = slug
	}
	return nil, fmt.Errorf("failed to insert catalog product: %w", lastErr)
}

func (r *CatalogRepository) insertOnce(ctx context.Context, product *models.Product, variants []models.ProductVariant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		for i := range variants {
			variants[i].ProductID = product.ID
		}
		if len(variants) > 0 {
			if err := tx.Create(&variants).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// allocateSlug generates a globally unique slug: the bare slug first, then
// numeric suffixes, then a timestamp suffix once the numeric attempts are
// exhausted.
func (r *CatalogRepository) allocateSlug(ctx context.Context, name string) (string, error) {
	base := categorylink.Slugify(name)
	if base == "" {
		base = "product"
	}

	candidate := base
	for attempt := 2; attempt <= slugSuffixAttempts+1; attempt++ {
		taken, err := r.slugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}

	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli()), nil
}

func (r *CatalogRepository) slugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *CatalogRepository) invalidateProductCaches(ctx context.Context) {
	if r.redis == nil {
		return
	}
	keys, _ := r.redis.Keys(ctx, "import:catalog:*").Result()
	if len(keys) > 0 {
		r.redis.Del(ctx, keys...)
	}
}

// isUniqueViolation detects a unique-constraint failure from the postgres
// driver. Expected, not exceptional: it is how concurrent duplicate
// imports are serialized.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "SQLSTATE 23505")
}

// violatedConstraint extracts the constraint name from a postgres
// unique-violation message, "" when the driver did not report one.
func violatedConstraint(err error) string {
	if err == nil {
		return ""
	}
	const marker = `unique constraint "`
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		return rest[:j]
	}
	return ""
}
