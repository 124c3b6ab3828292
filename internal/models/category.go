package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is one node of the local category tree
type Category struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name     string     `json:"name" gorm:"not null;index"`
	Slug     string     `json:"slug" gorm:"not null;uniqueIndex:idx_categories_slug"`
	ParentID *uuid.UUID `json:"parentId,omitempty" gorm:"type:uuid;index"`
	Level    int        `json:"level" gorm:"not null;default:0"`

	Parent   *Category  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Category `json:"children,omitempty" gorm:"foreignKey:ParentID"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Category) TableName() string {
	return "categories"
}

// ProductCategoryLink attaches a product to a category node. Links are
// denormalized up two ancestor levels so storefront filters on a parent
// category match without a recursive query; exactly one link per product
// is primary.
type ProductCategoryLink struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID  uuid.UUID `json:"productId" gorm:"type:uuid;not null;index:idx_pcl_product"`
	CategoryID uuid.UUID `json:"categoryId" gorm:"type:uuid;not null;index:idx_pcl_category"`
	IsPrimary  bool      `json:"isPrimary" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"createdAt"`
}

func (ProductCategoryLink) TableName() string {
	return "product_category_links"
}

// SupplierCategoryMapping is the persisted supplier-category-id to local
// category mapping, consulted before any name-based matching.
type SupplierCategoryMapping struct {
	ID                 uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SupplierCategoryID string    `json:"supplierCategoryId" gorm:"not null;uniqueIndex:idx_supplier_category"`
	CategoryID         uuid.UUID `json:"categoryId" gorm:"type:uuid;not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SupplierCategoryMapping) TableName() string {
	return "supplier_category_mappings"
}
