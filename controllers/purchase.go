// controllers/purchase.go
package controllers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"pharmabill-backend/config"
	"pharmabill-backend/models"
	"pharmabill-backend/services"
	"pharmabill-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseLineInput defines one line of a purchase invoice payload
type PurchaseLineInput struct {
	ItemCode        string     `json:"itemCode"`
	ProductName     string     `json:"productName" binding:"required"`
	Batch           string     `json:"batch"`
	HSNCode         string     `json:"hsnCode"`
	Quantity        int        `json:"quantity" binding:"required,min=1"`
	FreeQuantity    int        `json:"freeQuantity" binding:"min=0"`
	Rate            float64    `json:"rate" binding:"min=0"`
	DiscountPercent float64    `json:"discountPercent" binding:"min=0,max=100"`
	CgstPercent     float64    `json:"cgstPercent" binding:"min=0"`
	SgstPercent     float64    `json:"sgstPercent" binding:"min=0"`
	MRP             float64    `json:"mrp" binding:"min=0"`
	ExpiryDate      *time.Time `json:"expiryDate"`
}

// CreatePurchaseInput defines the expected JSON structure for creating a purchase invoice
type CreatePurchaseInput struct {
	InvoiceNo   string     `json:"invoiceNo" binding:"required"`
	InvoiceDate *time.Time `json:"invoiceDate"`
	EntryDate   *time.Time `json:"entryDate"`

	SupplierName  string `json:"supplierName" binding:"required"`
	SupplierGSTIN string `json:"supplierGstin"`
	TransportMode string `json:"transportMode"`
	VehicleNo     string `json:"vehicleNo"`

	Items []PurchaseLineInput `json:"items" binding:"required,min=1,dive"`

	SubTotal   float64 `json:"subTotal" binding:"min=0"`
	TotalCgst  float64 `json:"totalCgst" binding:"min=0"`
	TotalSgst  float64 `json:"totalSgst" binding:"min=0"`
	GrandTotal float64 `json:"grandTotal" binding:"min=0"`
}

// ReturnSelectionInput is one line selected for a purchase return
type ReturnSelectionInput struct {
	ProductName string `json:"productName" binding:"required"`
	Batch       string `json:"batch"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// ProcessReturnInput defines the expected JSON structure for a purchase return
type ProcessReturnInput struct {
	Reason       string                 `json:"reason"`
	RefundMethod string                 `json:"refundMethod" binding:"required"`
	Items        []ReturnSelectionInput `json:"items" binding:"required,min=1,dive"`
}

// CreatePurchaseInvoice stores a frozen snapshot of the supplier invoice.
// Totals are stored as supplied; a recomputation mismatch only logs a
// warning. A duplicate invoice number rejects the whole call: the unique
// index is the only guard, so concurrent duplicates cannot slip past a
// stale read.
func CreatePurchaseInvoice(c *gin.Context) {
	var input CreatePurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	invoiceDate := time.Now()
	if input.InvoiceDate != nil {
		invoiceDate = *input.InvoiceDate
	}
	entryDate := time.Now()
	if input.EntryDate != nil {
		entryDate = *input.EntryDate
	}

	items := make([]models.PurchaseLineItem, 0, len(input.Items))
	for i, line := range input.Items {
		items = append(items, models.PurchaseLineItem{
			Position:        i,
			ItemCode:        line.ItemCode,
			ProductName:     line.ProductName,
			Batch:           line.Batch,
			HSNCode:         line.HSNCode,
			Quantity:        line.Quantity,
			FreeQuantity:    line.FreeQuantity,
			Rate:            line.Rate,
			DiscountPercent: line.DiscountPercent,
			CgstPercent:     line.CgstPercent,
			SgstPercent:     line.SgstPercent,
			MRP:             line.MRP,
			ExpiryDate:      line.ExpiryDate,
		})
	}

	invoice := models.PurchaseInvoice{
		InvoiceNo:     input.InvoiceNo,
		InvoiceDate:   invoiceDate,
		EntryDate:     entryDate,
		SupplierName:  input.SupplierName,
		SupplierGSTIN: input.SupplierGSTIN,
		TransportMode: input.TransportMode,
		VehicleNo:     input.VehicleNo,
		Items:         items,
		SubTotal:      input.SubTotal,
		TotalCgst:     input.TotalCgst,
		TotalSgst:     input.TotalSgst,
		GrandTotal:    input.GrandTotal,
		Status:        models.PurchaseStatusActive,
	}

	expected := services.ExpectedPurchaseTotals(items)
	if math.Abs(expected.GrandTotal-input.GrandTotal) > 0.01 {
		log.Printf("Purchase %s: supplied grand total %.2f differs from computed %.2f",
			input.InvoiceNo, input.GrandTotal, expected.GrandTotal)
	}

	if err := config.DB.Create(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondWithError(c, http.StatusConflict, "Invoice number already exists")
			return
		}
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create purchase invoice")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": invoice.ID, "invoiceNo": invoice.InvoiceNo})
}

// GetPurchaseInvoices lists purchase invoices without their line items.
func GetPurchaseInvoices(c *gin.Context) {
	var invoices []models.PurchaseInvoice
	if err := config.DB.Order("invoice_date DESC").Find(&invoices).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve purchase invoices")
		return
	}

	c.JSON(http.StatusOK, invoices)
}

// GetPurchaseInvoice returns one invoice with its lines and return history.
func GetPurchaseInvoice(c *gin.Context) {
	invoice, returns, ok := loadInvoiceWithReturns(c, c.Param("invoiceNo"))
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice, "returns": returns})
}

// GetPurchaseReturns lists the returns recorded against one invoice.
func GetPurchaseReturns(c *gin.Context) {
	var returns []models.PurchaseReturn
	if err := config.DB.Preload("Items").
		Where("original_invoice_no = ?", c.Param("invoiceNo")).
		Order("created_at").
		Find(&returns).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve returns")
		return
	}

	c.JSON(http.StatusOK, returns)
}

// GetRemainingView reconciles the invoice against its return history. Pure
// read; calling it repeatedly with no intervening return yields identical
// output. This view is the sole input to print rendering.
func GetRemainingView(c *gin.Context) {
	invoice, returns, ok := loadInvoiceWithReturns(c, c.Param("invoiceNo"))
	if !ok {
		return
	}

	c.JSON(http.StatusOK, services.MaterializeRemainingView(invoice, returns))
}

var errReturnRejected = errors.New("return rejected")

// ProcessPurchaseReturn records a return against an invoice and then pushes
// the stock decrements. Validation and the return record share one
// transaction; each stock decrement is its own atomic step afterwards, and a
// failed decrement is parked as a reconciliation task instead of rolling the
// return back.
func ProcessPurchaseReturn(c *gin.Context) {
	var input ProcessReturnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	invoice, ok := loadInvoice(c, c.Param("invoiceNo"))
	if !ok {
		return
	}

	originals := make(map[string]models.PurchaseLineItem, len(invoice.Items))
	for _, item := range invoice.Items {
		originals[services.LineKey(item.ProductName, item.Batch)] = item
	}

	var purchaseReturn models.PurchaseReturn
	var status, rejection string

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		// Touching the invoice row takes its lock, so concurrent returns
		// against the same invoice serialize here and the prior-return read
		// below sees every committed return.
		if err := tx.Model(&models.PurchaseInvoice{}).
			Where("id = ?", invoice.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		var priorReturns []models.PurchaseReturn
		if err := tx.Preload("Items").
			Where("original_invoice_no = ?", invoice.InvoiceNo).
			Order("created_at").
			Find(&priorReturns).Error; err != nil {
			return err
		}
		remaining := services.RemainingQuantities(invoice, priorReturns)

		var totalRefund float64
		returnItems := make([]models.ReturnLineItem, 0, len(input.Items))
		for _, sel := range input.Items {
			key := services.LineKey(sel.ProductName, sel.Batch)
			original, found := originals[key]
			if !found {
				rejection = "Invoice has no line for " + sel.ProductName + " batch " + sel.Batch
				return errReturnRejected
			}
			if sel.Quantity > remaining[key] {
				rejection = "Return quantity exceeds remaining quantity for " + sel.ProductName + " batch " + sel.Batch
				return errReturnRejected
			}
			remaining[key] -= sel.Quantity

			refund := services.PurchaseLineRefund(sel.Quantity, original.Rate,
				original.DiscountPercent, original.CgstPercent, original.SgstPercent)
			totalRefund += refund

			returnItems = append(returnItems, models.ReturnLineItem{
				ItemCode:        original.ItemCode,
				ProductName:     original.ProductName,
				Batch:           original.Batch,
				Quantity:        sel.Quantity,
				Rate:            original.Rate,
				DiscountPercent: original.DiscountPercent,
				CgstPercent:     original.CgstPercent,
				SgstPercent:     original.SgstPercent,
				RefundAmount:    refund,
			})
		}

		purchaseReturn = models.PurchaseReturn{
			OriginalInvoiceNo: invoice.InvoiceNo,
			Reason:            input.Reason,
			RefundMethod:      input.RefundMethod,
			Status:            "completed",
			Items:             returnItems,
			TotalReturnAmount: services.Round2(totalRefund),
		}

		status = models.PurchaseStatusFullyReturned
		for _, qty := range remaining {
			if qty > 0 {
				status = models.PurchaseStatusPartiallyReturned
				break
			}
		}

		if err := tx.Create(&purchaseReturn).Error; err != nil {
			return err
		}
		return tx.Model(&models.PurchaseInvoice{}).
			Where("id = ?", invoice.ID).
			Update("status", status).Error
	})
	if errors.Is(err, errReturnRejected) {
		utils.RespondWithError(c, http.StatusUnprocessableEntity, rejection)
		return
	}
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to record return")
		return
	}

	// Returning goods to the supplier reduces on-hand stock. Separate atomic
	// steps from here on; the return above stays committed either way.
	adjustments := make([]gin.H, 0, len(purchaseReturn.Items))
	for _, item := range purchaseReturn.Items {
		adjustments = append(adjustments, applyReturnStockDecrement(purchaseReturn.ID, item))
	}

	c.JSON(http.StatusCreated, gin.H{
		"returnId":          purchaseReturn.ID,
		"totalReturnAmount": purchaseReturn.TotalReturnAmount,
		"invoiceStatus":     status,
		"stockAdjustments":  adjustments,
	})
}

func applyReturnStockDecrement(returnID uuid.UUID, item models.ReturnLineItem) gin.H {
	code := item.ItemCode
	if code == "" {
		if resolved, ok := models.ResolveItemCodeByName(config.DB, item.ProductName, item.Batch); ok {
			code = resolved
		}
	}

	result, err := models.ApplyStockAdjustment(config.DB, code, item.Batch, item.Quantity, models.StockDecrease)
	if err != nil {
		task := models.StockReconciliationTask{
			ReturnID:    returnID,
			ItemCode:    code,
			ProductName: item.ProductName,
			Batch:       item.Batch,
			Quantity:    item.Quantity,
			Direction:   models.StockDecrease,
			Status:      "pending",
			LastError:   err.Error(),
		}
		if createErr := config.DB.Create(&task).Error; createErr != nil {
			log.Printf("Return %s: failed to record reconciliation task for %s/%s: %v",
				returnID, item.ProductName, item.Batch, createErr)
		} else {
			log.Printf("Return %s: stock decrement parked for retry (%s/%s): %v",
				returnID, item.ProductName, item.Batch, err)
		}
		return gin.H{"productName": item.ProductName, "batch": item.Batch, "success": false, "error": err.Error()}
	}

	return gin.H{"productName": item.ProductName, "batch": item.Batch, "success": true, "newStock": result.NewStock}
}

// DeletePurchaseInvoice removes the invoice, its lines and its returns.
// Administrative path; reconciliation itself never deletes.
func DeletePurchaseInvoice(c *gin.Context) {
	invoiceNo := c.Param("invoiceNo")

	var invoice models.PurchaseInvoice
	if err := config.DB.Where("invoice_no = ?", invoiceNo).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Purchase invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.PurchaseLineItem{}).Error; err != nil {
			return err
		}
		var returns []models.PurchaseReturn
		if err := tx.Where("original_invoice_no = ?", invoiceNo).Find(&returns).Error; err != nil {
			return err
		}
		for _, ret := range returns {
			if err := tx.Where("return_id = ?", ret.ID).Delete(&models.ReturnLineItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("original_invoice_no = ?", invoiceNo).Delete(&models.PurchaseReturn{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete purchase invoice")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Purchase invoice deleted successfully"})
}

func loadInvoice(c *gin.Context, invoiceNo string) (models.PurchaseInvoice, bool) {
	var invoice models.PurchaseInvoice
	if err := config.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).Where("invoice_no = ?", invoiceNo).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Purchase invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return models.PurchaseInvoice{}, false
	}
	return invoice, true
}

func loadInvoiceWithReturns(c *gin.Context, invoiceNo string) (models.PurchaseInvoice, []models.PurchaseReturn, bool) {
	invoice, ok := loadInvoice(c, invoiceNo)
	if !ok {
		return models.PurchaseInvoice{}, nil, false
	}

	var returns []models.PurchaseReturn
	if err := config.DB.Preload("Items").
		Where("original_invoice_no = ?", invoiceNo).
		Order("created_at").
		Find(&returns).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve returns")
		return models.PurchaseInvoice{}, nil, false
	}

	return invoice, returns, true
}
