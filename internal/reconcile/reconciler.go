// Package reconcile matches a supplier's variant list against the
// separately-fetched inventory and freight feeds. The three feeds use
// inconsistent identifiers, so matching runs over normalized keys with a
// lenient substring fallback for feeds that truncate or pad identifiers.
package reconcile

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"supplier-import-service/internal/models"
	"supplier-import-service/internal/normalize"
)

const (
	// DefaultStockBuffer is subtracted from every reported quantity so a
	// sale hitting stale supplier stock does not oversell.
	DefaultStockBuffer = 5

	// minFallbackKeyLen gates the substring-containment fallback: short or
	// numeric-only keys produce false positives, so keys below this length
	// only match exactly.
	minFallbackKeyLen = 5
)

// Reconciler builds the canonical per-variant view from the three feeds
type Reconciler struct {
	classifier       TokenClassifier
	stockBuffer      int
	preferredCarrier *regexp.Regexp
	logger           *logrus.Entry
}

// Config tunes a Reconciler. Zero values fall back to defaults.
type Config struct {
	Classifier              TokenClassifier
	StockBuffer             int
	PreferredCarrierPattern string // regexp matched against carrier name/code
}

// New creates a Reconciler
func New(cfg Config, logger *logrus.Logger) *Reconciler {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	buffer := cfg.StockBuffer
	if buffer <= 0 {
		buffer = DefaultStockBuffer
	}
	var preferred *regexp.Regexp
	if cfg.PreferredCarrierPattern != "" {
		if re, err := regexp.Compile("(?i)" + cfg.PreferredCarrierPattern); err == nil {
			preferred = re
		} else {
			logger.WithError(err).WithField("pattern", cfg.PreferredCarrierPattern).
				Warn("Invalid preferred carrier pattern, falling back to feed order")
		}
	}
	return &Reconciler{
		classifier:       classifier,
		stockBuffer:      buffer,
		preferredCarrier: preferred,
		logger:           logger.WithField("component", "reconciler"),
	}
}

// inventoryIndex maps every normalized identifier of every inventory entry
// to that entry. One entry typically contributes several keys.
type inventoryIndex struct {
	exact map[string]*models.InventorySignal
	keys  []string // insertion-ordered, for the deterministic fallback scan
}

func buildInventoryIndex(signals []models.InventorySignal) *inventoryIndex {
	idx := &inventoryIndex{exact: make(map[string]*models.InventorySignal)}
	for i := range signals {
		sig := &signals[i]
		candidates := append([]string{sig.VariantID, sig.SKU}, sig.AltIdentifiers...)
		for _, raw := range candidates {
			key := normalize.NormalizeKey(raw)
			if key == "" {
				continue
			}
			if _, exists := idx.exact[key]; exists {
				continue
			}
			idx.exact[key] = sig
			idx.keys = append(idx.keys, key)
		}
	}
	return idx
}

// lookup resolves a variant's candidate keys against the index: an exact
// pass over all candidates first, then a bidirectional substring pass.
// Both passes stop at the first hit; exact always wins over substring.
func (idx *inventoryIndex) lookup(candidateKeys []string) *models.InventorySignal {
	for _, key := range candidateKeys {
		if sig, ok := idx.exact[key]; ok {
			return sig
		}
	}
	for _, stored := range idx.keys {
		for _, key := range candidateKeys {
			if len(key) < minFallbackKeyLen || len(stored) < minFallbackKeyLen {
				continue
			}
			if strings.Contains(stored, key) || strings.Contains(key, stored) {
				return idx.exact[stored]
			}
		}
	}
	return nil
}

// Reconcile matches each supplier variant against the inventory feed and
// the per-variant freight results, producing the canonical variant view.
// Pricing fields are left zero; the pricing engine fills them afterwards.
func (r *Reconciler) Reconcile(variants []models.SupplierVariant, inventory []models.InventorySignal, freight map[string]models.FreightResult) []models.PricedVariant {
	idx := buildInventoryIndex(inventory)

	out := make([]models.PricedVariant, 0, len(variants))
	for _, v := range variants {
		pv := models.PricedVariant{
			VariantID: v.VariantID,
			SKU:       v.SKU,
			CostPrice: v.CostPrice,
			ImageURL:  v.ImageURL,
		}

		r.classifyAttributes(&pv, v)
		r.resolveStock(&pv, v, idx)
		r.selectFreight(&pv, freight[v.VariantID])

		out = append(out, pv)
	}
	return out
}

// AggregateStock sums the known per-variant stocks. When no variant
// reports a known stock the aggregate is nil, never zero: unknown must
// stay distinguishable from out-of-stock.
func AggregateStock(variants []models.PricedVariant) *int {
	var total int
	known := false
	for _, v := range variants {
		if v.Stock != nil {
			total += *v.Stock
			known = true
		}
	}
	if !known {
		return nil
	}
	return &total
}

func (r *Reconciler) classifyAttributes(pv *models.PricedVariant, v models.SupplierVariant) {
	raw := v.Attributes
	if raw == "" {
		raw = v.Name
	}
	for _, token := range SplitAttributes(raw) {
		switch r.classifier.ClassifyToken(token) {
		case TokenColor:
			if pv.Color == nil {
				pv.Color = &token
			}
		case TokenModel:
			if pv.Model == nil {
				pv.Model = &token
			}
		case TokenSize:
			if pv.Size == nil {
				pv.Size = &token
			}
		}
	}
}

func (r *Reconciler) resolveStock(pv *models.PricedVariant, v models.SupplierVariant, idx *inventoryIndex) {
	candidates := make([]string, 0, 4)
	for _, raw := range []string{v.SKU, v.VariantID, v.SKU + "-" + v.Attributes, v.Name} {
		if key := normalize.NormalizeKey(raw); key != "" {
			candidates = append(candidates, key)
		}
	}

	sig := idx.lookup(candidates)
	if sig == nil {
		return // stock stays nil: unknown, not zero
	}

	// Verified warehouse stock wins over the unverified factory figure.
	var raw *int
	if sig.WarehouseQty != nil {
		raw = sig.WarehouseQty
	} else if sig.FactoryQty != nil {
		raw = sig.FactoryQty
	}
	if raw == nil {
		return
	}

	resolved := *raw - r.stockBuffer
	if resolved < 0 {
		resolved = 0
	}
	pv.Stock = &resolved
}

func (r *Reconciler) selectFreight(pv *models.PricedVariant, result models.FreightResult) {
	if len(result.Quotes) == 0 {
		pv.ShippingAvailable = false
		if result.Error != "" {
			pv.Error = result.Error
		} else {
			pv.Error = "no freight options returned for variant"
		}
		return
	}

	// Feed order is pre-ranked by the supplier; a preferred-carrier hit
	// overrides it.
	chosen := result.Quotes[0]
	if r.preferredCarrier != nil {
		for _, q := range result.Quotes {
			if r.preferredCarrier.MatchString(q.Carrier) || r.preferredCarrier.MatchString(q.ServiceCode) {
				chosen = q
				break
			}
		}
	}

	price := chosen.Price
	carrier := chosen.Carrier
	minDays := chosen.MinDays
	maxDays := chosen.MaxDays
	pv.ShippingAvailable = true
	pv.ShippingCost = &price
	pv.Carrier = &carrier
	pv.DeliveryMin = &minDays
	pv.DeliveryMax = &maxDays
}
