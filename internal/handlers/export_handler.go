package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"supplier-import-service/internal/models"
	"supplier-import-service/internal/repository"
)

const exportRowLimit = 5000

type ExportHandler struct {
	queueRepo repository.QueueRepositoryInterface
}

func NewExportHandler(queueRepo repository.QueueRepositoryInterface) *ExportHandler {
	return &ExportHandler{queueRepo: queueRepo}
}

// ExportQueue downloads the queue as an Excel workbook
// @Summary Export import queue to XLSX
// @Tags ImportQueue
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "Filter by status"
// @Param batchId query string false "Filter by discovery batch"
// @Success 200 {file} binary
// @Router /api/v1/import-queue/export [get]
func (h *ExportHandler) ExportQueue(c *gin.Context) {
	status := models.QueueStatus(c.Query("status"))
	batchID := c.Query("batchId")

	items, _, err := h.queueRepo.List(c.Request.Context(), status, batchID, exportRowLimit, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load queue"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Import Queue"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := []string{
		"Supplier Product ID", "SKU", "Name", "Cost Price", "Currency",
		"Price Override", "Stock", "Status", "Batch", "Reviewed By", "Created At",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, item := range items {
		row := rowIdx + 2
		values := []interface{}{
			item.SupplierProductID,
			item.SupplierSKU,
			item.Name,
			item.CostPrice,
			item.Currency,
			derefFloat(item.Price),
			derefInt(item.Stock),
			string(item.Status),
			item.BatchID,
			derefString(item.ReviewedBy),
			item.CreatedAt.Format(time.RFC3339),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	// Reasonable column widths for the text-heavy columns
	f.SetColWidth(sheetName, "A", "C", 28)
	f.SetColWidth(sheetName, "H", "K", 18)

	filename := fmt.Sprintf("import_queue_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func derefFloat(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
