// controllers/sales.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pharmabill-backend/config"
	"pharmabill-backend/models"
	"pharmabill-backend/services"
	"pharmabill-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SalesLineInput defines one line of a sales invoice payload
type SalesLineInput struct {
	LineID      string  `json:"lineId"`
	ItemCode    string  `json:"itemCode"`
	ProductName string  `json:"productName" binding:"required"`
	Batch       string  `json:"batch"`
	HSNCode     string  `json:"hsnCode"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	Rate        float64 `json:"rate" binding:"min=0"`
	// Snapshot for profit reporting; looked up from the catalog when zero.
	PurchasePrice float64 `json:"purchasePrice" binding:"min=0"`
	CgstPercent   float64 `json:"cgstPercent" binding:"min=0"`
	SgstPercent   float64 `json:"sgstPercent" binding:"min=0"`
}

// SaveSalesInput defines the expected JSON structure for saving a sales invoice
type SaveSalesInput struct {
	InvoiceDate   *time.Time       `json:"invoiceDate"`
	CustomerName  string           `json:"customerName"`
	CustomerPhone string           `json:"customerPhone"`
	PaymentMode   string           `json:"paymentMode"`
	Items         []SalesLineInput `json:"items" binding:"required,min=1,dive"`

	// Operator overrides; preserved verbatim when present.
	RoundOff    *float64 `json:"roundOff"`
	FinalAmount *float64 `json:"finalAmount"`
}

// SalesReturnInput defines the expected JSON structure for a line return
type SalesReturnInput struct {
	LineRef  string `json:"lineRef" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// SalesSummary is one row of the range query result.
type SalesSummary struct {
	ID           uuid.UUID `json:"id"`
	InvoiceNo    string    `json:"invoiceNo"`
	InvoiceDate  time.Time `json:"invoiceDate"`
	CustomerName string    `json:"customerName"`
	PaymentMode  string    `json:"paymentMode"`
	TotalQty     int       `json:"totalQty"`
	GrossTotal   float64   `json:"grossTotal"`
	FinalAmount  float64   `json:"finalAmount"`
	Profit       float64   `json:"profit"`
}

// SaveSalesInvoice assigns the next invoice number, recomputes every line and
// the header aggregates from the canonical formula, and stores the invoice.
// Supplied derived amounts are discarded; the round-off override is the one
// caller value kept verbatim.
func SaveSalesInvoice(c *gin.Context) {
	var input SaveSalesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	number, err := models.NextInvoiceNumber(config.SalesDB)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to assign invoice number")
		return
	}

	invoiceDate := time.Now()
	if input.InvoiceDate != nil {
		invoiceDate = *input.InvoiceDate
	}
	paymentMode := input.PaymentMode
	if paymentMode == "" {
		paymentMode = "cash"
	}

	items := make([]models.SalesLineItem, 0, len(input.Items))
	for i, line := range input.Items {
		lineID := line.LineID
		if lineID == "" {
			lineID = uuid.NewString()
		}
		purchasePrice := line.PurchasePrice
		if purchasePrice == 0 && line.ItemCode != "" {
			var product models.Product
			if err := config.DB.
				Where("LOWER(item_code) = LOWER(?) AND LOWER(batch) = LOWER(?)", line.ItemCode, line.Batch).
				Order("updated_at DESC").
				First(&product).Error; err == nil {
				purchasePrice = product.PurchasePrice
			}
		}

		item := models.SalesLineItem{
			LineID:        lineID,
			Position:      i,
			ItemCode:      line.ItemCode,
			ProductName:   line.ProductName,
			Batch:         line.Batch,
			HSNCode:       line.HSNCode,
			Quantity:      line.Quantity,
			Rate:          line.Rate,
			PurchasePrice: purchasePrice,
			CgstPercent:   line.CgstPercent,
			SgstPercent:   line.SgstPercent,
		}
		services.RecomputeSalesLine(&item)
		items = append(items, item)
	}

	invoice := models.SalesInvoice{
		InvoiceNo:     strconv.FormatInt(number, 10),
		InvoiceDate:   invoiceDate,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		PaymentMode:   paymentMode,
		Items:         items,
	}

	bill := services.RecomputeSalesTotals(&invoice)
	services.ApplyDefaultRounding(&invoice, bill)
	if input.FinalAmount != nil {
		invoice.FinalAmount = *input.FinalAmount
		invoice.RoundOff = services.Round2(*input.FinalAmount - bill)
	}
	if input.RoundOff != nil {
		invoice.RoundOff = *input.RoundOff
		if input.FinalAmount == nil {
			invoice.FinalAmount = services.Round2(bill + *input.RoundOff)
		}
	}

	if err := config.SalesDB.Create(&invoice).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save sales invoice")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        invoice.ID,
		"invoiceNo": invoice.InvoiceNo,
		"invoice":   invoice,
	})
}

// ApplySalesReturn reduces one line's quantity, recomputes the line and the
// header totals, and appends to the return journal. One read-modify-write
// transaction on the sales store.
func ApplySalesReturn(c *gin.Context) {
	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	var input SalesReturnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var invoice models.SalesInvoice
	txErr := config.SalesDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).First(&invoice, "id = ?", invoiceUUID).Error; err != nil {
			return err
		}

		line := resolveLine(invoice.Items, input.LineRef)
		if line == nil {
			return gorm.ErrRecordNotFound
		}

		reduced := input.Quantity
		if reduced > line.Quantity {
			reduced = line.Quantity
		}
		line.Quantity -= reduced
		services.RecomputeSalesLine(line)
		if err := tx.Save(line).Error; err != nil {
			return err
		}

		bill := services.RecomputeSalesTotals(&invoice)
		services.ApplyDefaultRounding(&invoice, bill)
		if err := tx.Model(&models.SalesInvoice{}).Where("id = ?", invoice.ID).
			Updates(map[string]interface{}{
				"total_qty":    invoice.TotalQty,
				"gross_total":  invoice.GrossTotal,
				"total_cgst":   invoice.TotalCgst,
				"total_sgst":   invoice.TotalSgst,
				"round_off":    invoice.RoundOff,
				"final_amount": invoice.FinalAmount,
			}).Error; err != nil {
			return err
		}

		entry := models.SalesReturnEntry{
			InvoiceID:        invoice.ID,
			LineRef:          line.LineID,
			QuantityReturned: reduced,
			ReturnedAt:       time.Now(),
		}
		return tx.Create(&entry).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Invoice or line not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to apply return")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Return applied", "invoice": invoice})
}

// resolveLine finds the target line by its identifier, falling back to
// positional indexing when the reference is not a known line id.
func resolveLine(items []models.SalesLineItem, lineRef string) *models.SalesLineItem {
	for i := range items {
		if items[i].LineID == lineRef {
			return &items[i]
		}
	}
	if idx, err := strconv.Atoi(lineRef); err == nil && idx >= 0 && idx < len(items) {
		return &items[idx]
	}
	return nil
}

// QuerySalesRange returns one summary row per invoice in the inclusive day
// range, optionally filtered by free text over invoice number, customer name
// or any line's product code/name.
func QuerySalesRange(c *gin.Context) {
	query := config.SalesDB.Preload("Items").Order("invoice_date")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr != "" || toStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		query = query.Where("invoice_date >= ? AND invoice_date <= ?",
			utils.BeginningOfDay(from), utils.EndOfDay(to))
	}

	var invoices []models.SalesInvoice
	if err := query.Find(&invoices).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to query sales")
		return
	}

	freeText := strings.ToLower(strings.TrimSpace(c.Query("q")))
	summaries := make([]SalesSummary, 0, len(invoices))
	for _, invoice := range invoices {
		if freeText != "" && !matchesSalesText(invoice, freeText) {
			continue
		}
		summaries = append(summaries, SalesSummary{
			ID:           invoice.ID,
			InvoiceNo:    invoice.InvoiceNo,
			InvoiceDate:  invoice.InvoiceDate,
			CustomerName: invoice.CustomerName,
			PaymentMode:  invoice.PaymentMode,
			TotalQty:     invoice.TotalQty,
			GrossTotal:   invoice.GrossTotal,
			FinalAmount:  invoice.FinalAmount,
			Profit:       services.SalesProfit(invoice),
		})
	}

	c.JSON(http.StatusOK, summaries)
}

func matchesSalesText(invoice models.SalesInvoice, freeText string) bool {
	if strings.Contains(strings.ToLower(invoice.InvoiceNo), freeText) ||
		strings.Contains(strings.ToLower(invoice.CustomerName), freeText) {
		return true
	}
	for _, line := range invoice.Items {
		if strings.Contains(strings.ToLower(line.ItemCode), freeText) ||
			strings.Contains(strings.ToLower(line.ProductName), freeText) {
			return true
		}
	}
	return false
}

// GetSalesInvoice returns one invoice with its lines and return journal.
func GetSalesInvoice(c *gin.Context) {
	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	var invoice models.SalesInvoice
	if err := config.SalesDB.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Returns", func(db *gorm.DB) *gorm.DB { return db.Order("returned_at") }).
		First(&invoice, "id = ?", invoiceUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Sales invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// DeleteSalesInvoice removes the invoice, its lines and its journal.
// Administrative path, outside the reconciliation lifecycle.
func DeleteSalesInvoice(c *gin.Context) {
	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	var invoice models.SalesInvoice
	if err := config.SalesDB.First(&invoice, "id = ?", invoiceUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Sales invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	err = config.SalesDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.SalesLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.SalesReturnEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete sales invoice")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Sales invoice deleted successfully"})
}
