package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"supplier-import-service/internal/categorylink"
	"supplier-import-service/internal/events"
	"supplier-import-service/internal/models"
	"supplier-import-service/internal/repository"
)

// ErrNoShippableVariants means every variant of a candidate lost its
// freight fetch; such a product cannot be sold and is not imported.
var ErrNoShippableVariants = errors.New("no shippable variants")

// ErrInvalidSupplierRecord means the caller handed over a record the
// pipeline cannot key, a request problem rather than a store failure.
var ErrInvalidSupplierRecord = errors.New("supplier record is missing an id")

// ImportService drives the review queue state machine and the import
// commit. All bulk operations run with bounded concurrency and report a
// per-item outcome; one failing item never aborts the batch.
type ImportService struct {
	queueRepo   repository.QueueRepositoryInterface
	catalogRepo repository.CatalogRepositoryInterface
	preview     *PreviewService
	linker      *categorylink.Linker
	publisher   *events.Publisher
	locks       *KeyedMutex
	workers     int
	logger      *logrus.Entry
}

// NewImportService creates an ImportService
func NewImportService(
	queueRepo repository.QueueRepositoryInterface,
	catalogRepo repository.CatalogRepositoryInterface,
	preview *PreviewService,
	linker *categorylink.Linker,
	publisher *events.Publisher,
	workers int,
	logger *logrus.Logger,
) *ImportService {
	if workers <= 0 {
		workers = 4
	}
	return &ImportService{
		queueRepo:   queueRepo,
		catalogRepo: catalogRepo,
		preview:     preview,
		linker:      linker,
		publisher:   publisher,
		locks:       NewKeyedMutex(),
		workers:     workers,
		logger:      logger.WithField("component", "import-service"),
	}
}

// Enqueue stages a discovered supplier product for review. Re-discovering
// an already-queued product returns the existing row untouched.
func (s *ImportService) Enqueue(ctx context.Context, record *models.SupplierProductRecord, batchID string) (*models.QueuedProduct, error) {
	if record == nil || record.ID == "" {
		return nil, ErrInvalidSupplierRecord
	}

	existing, err := s.queueRepo.GetBySupplierProductID(ctx, record.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrQueueItemNotFound) {
		return nil, err
	}

	snapshot, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot supplier record: %w", err)
	}

	item := &models.QueuedProduct{
		BatchID:           batchID,
		SupplierProductID: record.ID,
		Name:              record.Name,
		CostPrice:         record.CostPrice,
		Currency:          record.Currency,
		Status:            models.QueueStatusPending,
		Snapshot:          snapshot,
	}
	if len(record.Images) > 0 {
		item.ImageURL = &record.Images[0]
	}
	if len(record.Variants) > 0 {
		item.SupplierSKU = record.Variants[0].SKU
	}
	margin := s.preview.MarginPercentFor(record)
	item.Margin = &margin

	if err := s.queueRepo.Create(ctx, item); err != nil {
		// A concurrent discovery run may have won the unique index race.
		if existing, getErr := s.queueRepo.GetBySupplierProductID(ctx, record.ID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.publisher.PublishDiscovered(ctx, item.ID.String(), item.SupplierProductID, item.Name)
	return item, nil
}

// Preview builds the priced preview for a single queue item.
func (s *ImportService) Preview(ctx context.Context, id uuid.UUID) (*ImportPreview, error) {
	item, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.preview.Build(ctx, item)
}

// Approve moves PENDING items to APPROVED.
func (s *ImportService) Approve(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult {
	return s.runBulk(ctx, req.IDs, func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
		item, err := s.queueRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.queueRepo.UpdateStatus(ctx, id, models.QueueStatusPending, models.QueueStatusApproved, req.ReviewedBy); err != nil {
			return nil, err
		}
		s.publisher.PublishApproved(ctx, id.String(), item.SupplierProductID, req.ReviewedBy)
		return nil, nil
	})
}

// Reject moves PENDING items to REJECTED.
func (s *ImportService) Reject(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult {
	return s.runBulk(ctx, req.IDs, func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
		item, err := s.queueRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.queueRepo.UpdateStatus(ctx, id, models.QueueStatusPending, models.QueueStatusRejected, req.ReviewedBy); err != nil {
			return nil, err
		}
		s.publisher.PublishRejected(ctx, id.String(), item.SupplierProductID, req.ReviewedBy)
		return nil, nil
	})
}

// Restore moves REJECTED items back to PENDING for another review pass.
func (s *ImportService) Restore(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult {
	return s.runBulk(ctx, req.IDs, func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
		return nil, s.queueRepo.UpdateStatus(ctx, id, models.QueueStatusRejected, models.QueueStatusPending, req.ReviewedBy)
	})
}

// Delete removes non-imported queue rows.
func (s *ImportService) Delete(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult {
	return s.runBulk(ctx, req.IDs, func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
		return nil, s.queueRepo.Delete(ctx, id)
	})
}

// UpdatePrice overrides the review-time price of a single queue item.
func (s *ImportService) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) error {
	return s.queueRepo.UpdatePrice(ctx, id, price)
}

// Import commits APPROVED items to the catalog.
func (s *ImportService) Import(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult {
	return s.runBulk(ctx, req.IDs, s.importOne)
}

// importOne commits one approved queue row. The whole commit is serialized
// per supplier product id, and re-running it for an already-imported
// product converges on the existing catalog row instead of failing.
func (s *ImportService) importOne(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	item, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, item.SupplierProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent import may have finished.
	item, err = s.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.QueueStatusImported {
		return item.CatalogProductID, nil
	}
	if item.Status != models.QueueStatusApproved {
		return nil, fmt.Errorf("%w: expected %s, found %s",
			repository.ErrInvalidTransition, models.QueueStatusApproved, item.Status)
	}

	// The catalog may already hold this supplier product from an earlier
	// run that crashed between insert and queue finalization.
	if existing, findErr := s.catalogRepo.FindBySupplierProductID(ctx, item.SupplierProductID); findErr == nil {
		if err := s.queueRepo.MarkImported(ctx, id, existing.ID); err != nil {
			return nil, err
		}
		return &existing.ID, nil
	} else if !errors.Is(findErr, repository.ErrProductNotFound) {
		return nil, findErr
	}

	preview, err := s.preview.Build(ctx, item)
	if err != nil {
		return nil, err
	}

	product, variants, err := buildCatalogProduct(item, preview)
	if err != nil {
		return nil, err
	}

	created, err := s.catalogRepo.InsertProduct(ctx, product, variants)
	if err != nil {
		return nil, err
	}

	if err := s.queueRepo.MarkImported(ctx, id, created.ID); err != nil {
		return nil, err
	}

	// Categorization is best-effort; an unlinked product is still sellable.
	if _, linkErr := s.linker.Link(ctx, created.ID, preview.CategoryLabel, supplierCategoryID(preview), nil); linkErr != nil {
		s.logger.WithError(linkErr).WithField("productId", created.ID).
			Warn("Category linking failed, product left uncategorized")
	}

	s.publisher.PublishImported(ctx, id.String(), item.SupplierProductID, created.ID.String(), created.Name)
	return &created.ID, nil
}

// buildCatalogProduct maps a preview onto the persisted catalog shape.
// Only shippable, priced variants are carried; if none survive, the
// product is not importable.
func buildCatalogProduct(item *models.QueuedProduct, preview *ImportPreview) (*models.Product, []models.ProductVariant, error) {
	variants := make([]models.ProductVariant, 0, len(preview.Variants))
	for _, v := range preview.Variants {
		if !v.ShippingAvailable || v.ShelfPrice <= 0 {
			continue
		}
		price := v.ShelfPrice
		profit := v.Profit
		if item.Price != nil && *item.Price > 0 {
			// A review-time override replaces the computed price, so the
			// persisted profit has to follow it.
			price = *item.Price
			profit = math.Round((price-v.Landed)*100) / 100
		}
		variants = append(variants, models.ProductVariant{
			SupplierVariantID: v.VariantID,
			SKU:               v.SKU,
			Color:             v.Color,
			Size:              v.Size,
			Model:             v.Model,
			CostPrice:         v.CostPrice,
			ShippingCost:      v.ShippingCost,
			Price:             price,
			Profit:            profit,
			Stock:             v.Stock,
			ShippingAvailable: true,
			ImageURL:          v.ImageURL,
		})
	}
	if len(variants) == 0 {
		return nil, nil, ErrNoShippableVariants
	}

	minPrice, maxPrice := variants[0].Price, variants[0].Price
	for _, v := range variants[1:] {
		if v.Price < minPrice {
			minPrice = v.Price
		}
		if v.Price > maxPrice {
			maxPrice = v.Price
		}
	}

	breakdown, err := json.Marshal(preview.Rating.Breakdown)
	if err != nil {
		return nil, nil, err
	}

	images := make(models.JSONArray, 0, len(preview.Images))
	for _, img := range preview.Images {
		images = append(images, img)
	}

	product := &models.Product{
		Name:              preview.Name,
		Slug:              categorylink.Slugify(preview.Name),
		SupplierProductID: preview.SupplierProductID,
		SupplierSKU:       item.SupplierSKU,
		Description:       preview.Description,
		Images:            images,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		Stock:             preview.Stock,
		Rating:            preview.Rating.DisplayedRating,
		RatingConfidence:  preview.Rating.Confidence,
		RatingBreakdown:   breakdown,
		Status:            models.ProductStatusActive,
	}
	return product, variants, nil
}

func supplierCategoryID(preview *ImportPreview) string {
	if preview.CategoryID == nil {
		return ""
	}
	return *preview.CategoryID
}

// runBulk applies op to every id through a bounded worker pool. Results
// keep the request order and every id gets exactly one entry.
func (s *ImportService) runBulk(ctx context.Context, ids []uuid.UUID, op func(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)) *models.BulkActionResult {
	result := &models.BulkActionResult{
		Total:   len(ids),
		Results: make([]models.ItemResult, len(ids)),
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)
	for i, id := range ids {
		wg.Add(1)
		go func(idx int, itemID uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			catalogID, err := op(ctx, itemID)
			if err != nil {
				result.Results[idx] = models.ItemResult{ID: itemID, Error: err.Error()}
				return
			}
			result.Results[idx] = models.ItemResult{ID: itemID, Success: true, CatalogProductID: catalogID}
		}(i, id)
	}
	wg.Wait()

	for _, r := range result.Results {
		if r.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result
}
