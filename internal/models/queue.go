package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueueStatus represents the lifecycle state of a queued candidate product
type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "PENDING"
	QueueStatusApproved QueueStatus = "APPROVED"
	QueueStatusRejected QueueStatus = "REJECTED"
	QueueStatusImported QueueStatus = "IMPORTED"
)

// ValidQueueTransitions maps each status to the statuses it may move to.
// IMPORTED is terminal; REJECTED can be restored back to PENDING.
var ValidQueueTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusPending:  {QueueStatusApproved, QueueStatusRejected},
	QueueStatusApproved: {QueueStatusImported},
	QueueStatusRejected: {QueueStatusPending},
	QueueStatusImported: {},
}

// CanTransition reports whether moving from one queue status to another is
// allowed by the state machine.
func CanTransition(from, to QueueStatus) bool {
	for _, next := range ValidQueueTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QueuedProduct is one row of the import staging queue: a discovered
// supplier product waiting for admin review. The snapshot columns are
// denormalized from the supplier record at discovery time so the review
// list renders without refetching the supplier API.
type QueuedProduct struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BatchID string    `json:"batchId" gorm:"index"`

	SupplierProductID string `json:"supplierProductId" gorm:"not null;uniqueIndex:idx_queue_supplier_product"`
	SupplierSKU       string `json:"supplierSku,omitempty"`

	// Review snapshot
	Name      string   `json:"name" gorm:"not null"`
	ImageURL  *string  `json:"imageUrl,omitempty"`
	CostPrice float64  `json:"costPrice"`
	Currency  string   `json:"currency,omitempty"`
	Price     *float64 `json:"price,omitempty"`  // admin override, reference currency
	Margin    *float64 `json:"margin,omitempty"` // margin % shown at review time
	Stock     *int     `json:"stock,omitempty"`  // nil = unknown, never fabricated

	Status QueueStatus `json:"status" gorm:"not null;default:'PENDING';index"`

	// Raw supplier record captured at discovery, replayed on preview/import
	// when the supplier API is unavailable.
	Snapshot datatypes.JSON `json:"snapshot,omitempty" gorm:"type:jsonb"`

	// Set by the import commit; once present the row is immutable apart
	// from UpdatedAt.
	CatalogProductID *uuid.UUID `json:"catalogProductId,omitempty" gorm:"type:uuid"`
	ImportedAt       *time.Time `json:"importedAt,omitempty"`

	ReviewedBy *string    `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (QueuedProduct) TableName() string {
	return "import_queue"
}

// BulkActionRequest is the request body shared by the bulk queue mutations
type BulkActionRequest struct {
	IDs        []uuid.UUID `json:"ids" binding:"required,min=1"`
	ReviewedBy string      `json:"reviewedBy,omitempty"`
}

// ItemResult reports the outcome for a single item of a bulk action
type ItemResult struct {
	ID               uuid.UUID  `json:"id"`
	Success          bool       `json:"success"`
	Error            string     `json:"error,omitempty"`
	CatalogProductID *uuid.UUID `json:"catalogProductId,omitempty"`
}

// BulkActionResult aggregates per-item outcomes. Every requested id appears
// exactly once in Results; nothing is silently dropped.
type BulkActionResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// QueueStats summarizes the queue for the admin dashboard
type QueueStats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Imported int64 `json:"imported"`
	Total    int64 `json:"total"`
}

// UpdatePriceRequest overrides the review-time price of a queued product
type UpdatePriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}
