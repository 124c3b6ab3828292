package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"supplier-import-service/internal/repository"
)

type CategoryMappingHandler struct {
	categoryRepo *repository.CategoryRepository
}

func NewCategoryMappingHandler(categoryRepo *repository.CategoryRepository) *CategoryMappingHandler {
	return &CategoryMappingHandler{categoryRepo: categoryRepo}
}

// CreateMappingRequest pins a supplier category to a local category
type CreateMappingRequest struct {
	SupplierCategoryID string    `json:"supplierCategoryId" binding:"required"`
	CategoryID         uuid.UUID `json:"categoryId" binding:"required"`
}

// CreateMapping registers a supplier-category mapping
// @Summary Map a supplier category to a local category
// @Tags Categories
// @Accept json
// @Produce json
// @Param request body CreateMappingRequest true "Mapping"
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/category-mappings [post]
func (h *CategoryMappingHandler) CreateMapping(c *gin.Context) {
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// The target category must exist before we pin imports to it.
	category, err := h.categoryRepo.FindByID(c.Request.Context(), req.CategoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to look up category"})
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Category not found"})
		return
	}

	if err := h.categoryRepo.SaveMapping(c.Request.Context(), req.SupplierCategoryID, req.CategoryID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save mapping"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}
