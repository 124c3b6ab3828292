package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"supplier-import-service/internal/clients"
	"supplier-import-service/internal/models"
	"supplier-import-service/internal/normalize"
	"supplier-import-service/internal/pricing"
	"supplier-import-service/internal/rating"
	"supplier-import-service/internal/reconcile"
)

// ImportPreview is the read-only projection of a fully reconciled and
// priced candidate, shown to the admin before approval and reused as the
// payload of the import commit.
type ImportPreview struct {
	SupplierProductID string                 `json:"supplierProductId"`
	Name              string                 `json:"name"`
	Description       *string                `json:"description,omitempty"`
	Images            []string               `json:"images,omitempty"`
	CategoryLabel     string                 `json:"categoryLabel,omitempty"`
	CategoryID        *string                `json:"categoryId,omitempty"`
	Variants          []models.PricedVariant `json:"variants"`
	Options           map[string][]string    `json:"options,omitempty"` // distinct color/size/model values
	MinPrice          float64                `json:"minPrice"`
	MaxPrice          float64                `json:"maxPrice"`
	Stock             *int                   `json:"stock,omitempty"`
	Rating            rating.Result          `json:"rating"`
	Warnings          []string               `json:"warnings,omitempty"`
}

// PricingConfig carries the resolved pricing configuration into the
// preview builder
type PricingConfig struct {
	Rules       map[string]pricing.Rule
	DefaultRule pricing.Rule
	Rates       map[string]float64 // source currency -> reference currency
	DefaultRate float64
	Destination string // destination country for freight quotes
	FreightQty  int
}

// rateFor resolves the conversion rate for a supplier currency
func (pc PricingConfig) rateFor(currency string) float64 {
	if rate, ok := pc.Rates[currency]; ok && rate > 0 {
		return rate
	}
	return pc.DefaultRate
}

// PreviewService assembles the canonical candidate view: it fetches the
// three supplier feeds, reconciles them, prices every shippable variant
// and scores the trust signals.
type PreviewService struct {
	supplier       clients.SupplierClient
	reconciler     *reconcile.Reconciler
	pricingCfg     PricingConfig
	freightWorkers int
	logger         *logrus.Entry
}

// NewPreviewService creates a PreviewService
func NewPreviewService(supplier clients.SupplierClient, reconciler *reconcile.Reconciler, pricingCfg PricingConfig, freightWorkers int, logger *logrus.Logger) *PreviewService {
	if freightWorkers <= 0 {
		freightWorkers = 5
	}
	return &PreviewService{
		supplier:       supplier,
		reconciler:     reconciler,
		pricingCfg:     pricingCfg,
		freightWorkers: freightWorkers,
		logger:         logger.WithField("component", "preview"),
	}
}

// Build produces the preview for one queued candidate. Upstream failures
// on the inventory or freight feeds degrade to unknown fields and a
// warning; only a missing product record is fatal for the item.
func (s *PreviewService) Build(ctx context.Context, item *models.QueuedProduct) (*ImportPreview, error) {
	record, err := s.loadRecord(ctx, item)
	if err != nil {
		return nil, err
	}

	var warnings []string

	variants := record.Variants
	if len(variants) == 0 {
		variants, err = s.supplier.FetchVariants(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch variants for %s: %w", record.ID, err)
		}
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("supplier product %s has no variants", record.ID)
	}

	inventory, err := s.supplier.FetchInventory(ctx, record.ID)
	if err != nil {
		// Unknown stock, not zero stock.
		warnings = append(warnings, fmt.Sprintf("inventory feed unavailable: %v", err))
		inventory = nil
	}

	freight := s.fetchFreight(ctx, variants)

	priced := s.reconciler.Reconcile(variants, inventory, freight)
	s.applyPricing(priced, record)

	preview := &ImportPreview{
		SupplierProductID: record.ID,
		Name:              record.Name,
		Description:       normalize.SanitizeForDisplay(record.DescriptionHTML),
		Images:            record.Images,
		CategoryLabel:     record.CategoryLabel,
		CategoryID:        record.CategoryID,
		Variants:          priced,
		Options:           collectOptions(priced),
		Stock:             reconcile.AggregateStock(priced),
		Rating:            s.computeRating(record),
		Warnings:          warnings,
	}
	preview.MinPrice, preview.MaxPrice = priceRange(priced)
	return preview, nil
}

// loadRecord fetches the supplier record, falling back to the discovery
// snapshot when the supplier API is unavailable.
func (s *PreviewService) loadRecord(ctx context.Context, item *models.QueuedProduct) (*models.SupplierProductRecord, error) {
	record, err := s.supplier.FetchProductDetails(ctx, item.SupplierProductID)
	if err == nil {
		return record, nil
	}

	if len(item.Snapshot) > 0 {
		var snapshot models.SupplierProductRecord
		if jsonErr := json.Unmarshal(item.Snapshot, &snapshot); jsonErr == nil && snapshot.ID != "" {
			s.logger.WithError(err).WithField("supplierProductId", item.SupplierProductID).
				Warn("Supplier API unavailable, using discovery snapshot")
			return &snapshot, nil
		}
	}
	return nil, fmt.Errorf("failed to fetch supplier product %s: %w", item.SupplierProductID, err)
}

// fetchFreight issues the per-variant freight calls through a bounded
// worker pool. A failed call marks only that variant; the rest of the
// product is not blocked.
func (s *PreviewService) fetchFreight(ctx context.Context, variants []models.SupplierVariant) map[string]models.FreightResult {
	results := make(map[string]models.FreightResult, len(variants))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.freightWorkers)

	for _, v := range variants {
		wg.Add(1)
		go func(variant models.SupplierVariant) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quotes, err := s.supplier.FetchFreightQuotes(ctx, variant.VariantID, s.pricingCfg.Destination, s.pricingCfg.FreightQty)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[variant.VariantID] = models.FreightResult{Error: err.Error()}
				return
			}
			results[variant.VariantID] = models.FreightResult{Quotes: quotes}
		}(v)
	}
	wg.Wait()
	return results
}

// applyPricing fills the pricing fields of every shippable variant.
// Variants without a freight option stay unpriced: inventing a zero
// shipping cost would price the item below its real landed cost.
func (s *PreviewService) applyPricing(priced []models.PricedVariant, record *models.SupplierProductRecord) {
	rule := pricing.ResolveRule(record.CategoryLabel, s.pricingCfg.Rules, s.pricingCfg.DefaultRule)
	rate := s.pricingCfg.rateFor(record.Currency)

	for i := range priced {
		if !priced[i].ShippingAvailable || priced[i].ShippingCost == nil {
			continue
		}
		quote := pricing.PriceVariant(priced[i].CostPrice, *priced[i].ShippingCost, rule, rate)
		priced[i].ShelfPrice = quote.ShelfPrice
		priced[i].Profit = quote.Profit
		priced[i].MarginApplied = quote.MarginApplied
		priced[i].Landed = quote.Landed
	}
}

// MarginPercentFor resolves the pricing rule the record's category falls
// under and reports its margin percent, shown on the review row before
// any variant is priced.
func (s *PreviewService) MarginPercentFor(record *models.SupplierProductRecord) float64 {
	return pricing.ResolveRule(record.CategoryLabel, s.pricingCfg.Rules, s.pricingCfg.DefaultRule).MarginPercent
}

func (s *PreviewService) computeRating(record *models.SupplierProductRecord) rating.Result {
	var imageCount *int
	if len(record.Images) > 0 {
		n := len(record.Images)
		imageCount = &n
	}
	return rating.Compute(rating.Signals{
		SupplierStar:     record.SupplierRating,
		Sentiment:        record.Sentiment,
		OrderVolume:      record.OrdersCount,
		Recency:          record.Recency,
		ImageCount:       imageCount,
		PriceCompetitive: record.PriceCompetitive,
		PenaltySeverity:  record.PenaltySeverity,
	})
}

// collectOptions gathers the distinct attribute values across variants
// for the storefront's option selectors. Casing variants of the same
// value ("Red", "RED") collapse onto the first-seen display form.
func collectOptions(variants []models.PricedVariant) map[string][]string {
	var colors, sizes, modelNames []string
	for _, v := range variants {
		if v.Color != nil {
			colors = append(colors, *v.Color)
		}
		if v.Size != nil {
			sizes = append(sizes, *v.Size)
		}
		if v.Model != nil {
			modelNames = append(modelNames, *v.Model)
		}
	}

	options := make(map[string][]string)
	if deduped := normalize.DeduplicateByDisplay(colors); len(deduped) > 0 {
		options["color"] = deduped
	}
	if deduped := normalize.DeduplicateByDisplay(sizes); len(deduped) > 0 {
		options["size"] = deduped
	}
	if deduped := normalize.DeduplicateByDisplay(modelNames); len(deduped) > 0 {
		options["model"] = deduped
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

func priceRange(variants []models.PricedVariant) (min, max float64) {
	for _, v := range variants {
		if v.ShelfPrice <= 0 {
			continue
		}
		if min == 0 || v.ShelfPrice < min {
			min = v.ShelfPrice
		}
		if v.ShelfPrice > max {
			max = v.ShelfPrice
		}
	}
	return min, max
}
