package models

// SupplierProductRecord is the raw catalog record returned by the supplier
// API. It is immutable within a pipeline run; every downstream view is
// derived from it, never written back.
type SupplierProductRecord struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	CostPrice       float64           `json:"costPrice"`
	Currency        string            `json:"currency"`
	Weight          *float64          `json:"weight,omitempty"` // kg
	DescriptionHTML string            `json:"descriptionHtml,omitempty"`
	CategoryLabel   string            `json:"categoryLabel,omitempty"`
	CategoryID      *string           `json:"categoryId,omitempty"` // supplier's own category id
	Images          []string          `json:"images,omitempty"`
	Variants        []SupplierVariant `json:"variants,omitempty"`

	// Trust/quality signals, each independently optional.
	SupplierRating   *float64 `json:"supplierRating,omitempty"`   // star rating, supplier scale
	Sentiment        *float64 `json:"sentiment,omitempty"`        // [-1,1] or [0,1], auto-detected
	OrdersCount      *float64 `json:"ordersCount,omitempty"`      // lifetime order volume
	Recency          *float64 `json:"recency,omitempty"`          // pre-normalized [0,1]
	PriceCompetitive *float64 `json:"priceCompetitive,omitempty"` // pre-normalized [0,1]
	PenaltySeverity  *float64 `json:"penaltySeverity,omitempty"`  // quality penalty [0,1]
}

// SupplierVariant is one sellable variation of a supplier product. The
// Attributes field may encode color and/or size in a single string with an
// ambiguous separator ("Red-M", "Blue/XL", "iPhone 14_Black").
type SupplierVariant struct {
	VariantID  string  `json:"variantId"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name,omitempty"`
	Attributes string  `json:"attributes,omitempty"`
	CostPrice  float64 `json:"costPrice"`
	ImageURL   *string `json:"imageUrl,omitempty"`
}

// InventorySignal is one entry of the separately-fetched stock feed.
// Quantities are pointers: absence means the feed did not report a number,
// which is never coerced to zero. AltIdentifiers carries every identifier
// string the feed knows for the variant, used for fuzzy matching.
type InventorySignal struct {
	VariantID      string   `json:"variantId,omitempty"`
	SKU            string   `json:"sku,omitempty"`
	WarehouseQty   *int     `json:"warehouseQty,omitempty"` // verified warehouse stock
	FactoryQty     *int     `json:"factoryQty,omitempty"`   // unverified factory stock
	AltIdentifiers []string `json:"altIdentifiers,omitempty"`
}

// FreightQuote is one shipping option for a variant.
type FreightQuote struct {
	Carrier     string  `json:"carrier"`
	ServiceCode string  `json:"serviceCode,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	MinDays     int     `json:"minDays"`
	MaxDays     int     `json:"maxDays"`
}

// FreightResult is the outcome of one per-variant freight fetch. A failed
// fetch carries the upstream error string so the reconciler can propagate
// it instead of inventing a zero shipping cost.
type FreightResult struct {
	Quotes []FreightQuote `json:"quotes,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// PricedVariant is the reconciled per-variant view: identifiers resolved
// across the variant, inventory and freight feeds, classified attributes,
// and (after pricing) the shelf price. Stock is nil when no feed reported
// an explicit quantity.
type PricedVariant struct {
	VariantID string  `json:"variantId"`
	SKU       string  `json:"sku"`
	Color     *string `json:"color,omitempty"`
	Size      *string `json:"size,omitempty"`
	Model     *string `json:"model,omitempty"`
	ImageURL  *string `json:"imageUrl,omitempty"`

	CostPrice    float64  `json:"costPrice"`
	ShippingCost *float64 `json:"shippingCost,omitempty"`
	Carrier      *string  `json:"carrier,omitempty"`
	DeliveryMin  *int     `json:"deliveryMin,omitempty"`
	DeliveryMax  *int     `json:"deliveryMax,omitempty"`

	ShelfPrice    float64 `json:"shelfPrice"`
	Profit        float64 `json:"profit"`
	MarginApplied float64 `json:"marginApplied"`
	Landed        float64 `json:"landed"` // converted cost basis, for re-deriving profit under a price override

	Stock             *int   `json:"stock,omitempty"`
	ShippingAvailable bool   `json:"shippingAvailable"`
	Error             string `json:"error,omitempty"`
}
