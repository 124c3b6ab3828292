package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProductStatus represents the storefront visibility of a catalog product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product is the storefront's persisted catalog product, created exactly
// once per successfully imported queue row. SupplierProductID carries a
// unique index so a concurrent duplicate import fails at the storage layer
// and is recovered as an idempotent short-circuit.
type Product struct {
	ID   uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name string    `json:"name" gorm:"not null"`
	Slug string    `json:"slug" gorm:"not null;uniqueIndex:idx_products_slug"`

	SupplierProductID string `json:"supplierProductId" gorm:"not null;uniqueIndex:idx_products_supplier_product"`
	SupplierSKU       string `json:"supplierSku,omitempty"`

	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Images      JSONArray `json:"images,omitempty" gorm:"type:jsonb"`

	// Price range across variants, reference currency.
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`

	// Aggregate of variants with known stock only; nil when every variant
	// reports unknown stock.
	Stock *int `json:"stock,omitempty"`

	Rating           float64        `json:"rating"`
	RatingConfidence float64        `json:"ratingConfidence"`
	RatingBreakdown  datatypes.JSON `json:"ratingBreakdown,omitempty" gorm:"type:jsonb"`

	Status ProductStatus `json:"status" gorm:"not null;default:'ACTIVE';index"`

	Variants []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Product) TableName() string {
	return "products"
}

// ProductVariant is one priced, sellable variation of a catalog product
type ProductVariant struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`

	SupplierVariantID string `json:"supplierVariantId" gorm:"index"`
	SKU               string `json:"sku" gorm:"index"`

	Color *string `json:"color,omitempty"`
	Size  *string `json:"size,omitempty"`
	Model *string `json:"model,omitempty"`

	CostPrice    float64  `json:"costPrice"`
	ShippingCost *float64 `json:"shippingCost,omitempty"`
	Price        float64  `json:"price"`
	Profit       float64  `json:"profit"`

	Stock             *int    `json:"stock,omitempty"`
	ShippingAvailable bool    `json:"shippingAvailable"`
	ImageURL          *string `json:"imageUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}
