package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supplier-import-service/internal/models"
	"supplier-import-service/internal/repository"
	"supplier-import-service/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type QueueHandler struct {
	service   *services.ImportService
	queueRepo repository.QueueRepositoryInterface
}

func NewQueueHandler(service *services.ImportService, queueRepo repository.QueueRepositoryInterface) *QueueHandler {
	return &QueueHandler{
		service:   service,
		queueRepo: queueRepo,
	}
}

// EnqueueRequest stages one discovered supplier product
type EnqueueRequest struct {
	BatchID string                       `json:"batchId,omitempty"`
	Record  models.SupplierProductRecord `json:"record" binding:"required"`
}

// Enqueue stages a supplier product for review
// @Summary Stage a supplier product in the import queue
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body EnqueueRequest true "Supplier record"
// @Success 201 {object} models.QueuedProduct
// @Router /api/v1/import-queue [post]
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	item, err := h.service.Enqueue(c.Request.Context(), &req.Record, req.BatchID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSupplierRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to enqueue product"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
}

// ListQueue lists queue items with optional status and batch filters
// @Summary List import queue items
// @Tags ImportQueue
// @Produce json
// @Param status query string false "Filter by status (PENDING, APPROVED, REJECTED, IMPORTED)"
// @Param batchId query string false "Filter by discovery batch"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/import-queue [get]
func (h *QueueHandler) ListQueue(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	status := models.QueueStatus(c.Query("status"))
	batchID := c.Query("batchId")

	items, total, err := h.queueRepo.List(c.Request.Context(), status, batchID, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   items,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetStats returns queue counters per status
// @Summary Import queue statistics
// @Tags ImportQueue
// @Produce json
// @Success 200 {object} models.QueueStats
// @Router /api/v1/import-queue/stats [get]
func (h *QueueHandler) GetStats(c *gin.Context) {
	stats, err := h.queueRepo.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// Preview builds the full reconciled and priced preview for one item
// @Summary Preview a queued product
// @Tags ImportQueue
// @Produce json
// @Param id path string true "Queue item ID"
// @Success 200 {object} services.ImportPreview
// @Router /api/v1/import-queue/{id}/preview [get]
func (h *QueueHandler) Preview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid queue item ID"})
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrQueueItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Queue item not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "preview": preview})
}

// Approve approves pending items
// @Summary Approve queue items
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body models.BulkActionRequest true "Item IDs"
// @Success 200 {object} models.BulkActionResult
// @Router /api/v1/import-queue/approve [post]
func (h *QueueHandler) Approve(c *gin.Context) {
	h.bulkAction(c, h.service.Approve)
}

// Reject rejects pending items
// @Summary Reject queue items
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body models.BulkActionRequest true "Item IDs"
// @Success 200 {object} models.BulkActionResult
// @Router /api/v1/import-queue/reject [post]
func (h *QueueHandler) Reject(c *gin.Context) {
	h.bulkAction(c, h.service.Reject)
}

// Restore moves rejected items back to pending
// @Summary Restore rejected queue items
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body models.BulkActionRequest true "Item IDs"
// @Success 200 {object} models.BulkActionResult
// @Router /api/v1/import-queue/restore [post]
func (h *QueueHandler) Restore(c *gin.Context) {
	h.bulkAction(c, h.service.Restore)
}

// Import commits approved items to the catalog
// @Summary Import approved queue items
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body models.BulkActionRequest true "Item IDs"
// @Success 200 {object} models.BulkActionResult
// @Router /api/v1/import-queue/import [post]
func (h *QueueHandler) Import(c *gin.Context) {
	h.bulkAction(c, h.service.Import)
}

// Delete removes non-imported items from the queue
// @Summary Delete queue items
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param request body models.BulkActionRequest true "Item IDs"
// @Success 200 {object} models.BulkActionResult
// @Router /api/v1/import-queue/delete [post]
func (h *QueueHandler) Delete(c *gin.Context) {
	h.bulkAction(c, h.service.Delete)
}

// UpdatePrice overrides the review-time price of one item
// @Summary Update the price of a queued product
// @Tags ImportQueue
// @Accept json
// @Produce json
// @Param id path string true "Queue item ID"
// @Param request body models.UpdatePriceRequest true "New price"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/import-queue/{id}/price [patch]
func (h *QueueHandler) UpdatePrice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid queue item ID"})
		return
	}

	var req models.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.service.UpdatePrice(c.Request.Context(), id, req.Price); err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// bulkAction binds the shared bulk request shape and reports per-item
// outcomes with 207 when the batch partially failed.
func (h *QueueHandler) bulkAction(c *gin.Context, action func(ctx context.Context, req models.BulkActionRequest) *models.BulkActionResult) {
	var req models.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result := action(c.Request.Context(), req)

	status := http.StatusOK
	if result.Failed > 0 && result.Succeeded > 0 {
		status = http.StatusMultiStatus
	} else if result.Failed > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": result.Failed == 0, "result": result})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, repository.ErrQueueItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidTransition),
		errors.Is(err, repository.ErrQueueItemImmutable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
