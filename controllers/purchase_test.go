package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"pharmabill-backend/models"
	"pharmabill-backend/services"

	"gorm.io/gorm"
)

const purchaseBody = `{
	"invoiceNo": "INV-1",
	"supplierName": "MediSuppliers",
	"items": [
		{"itemCode":"AMX","productName":"Amoxicillin","batch":"B1","quantity":10,"rate":100,"discountPercent":10,"cgstPercent":5,"sgstPercent":5},
		{"itemCode":"PCM","productName":"Paracetamol","batch":"B2","quantity":5,"rate":20,"cgstPercent":6,"sgstPercent":6}
	],
	"subTotal": 1000,
	"totalCgst": 51,
	"totalSgst": 51,
	"grandTotal": 1102
}`

func seedPurchaseFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()
	seedProduct(t, db, models.Product{ItemCode: "AMX", Batch: "B1", ItemName: "Amoxicillin", StockQuantity: 50})
	seedProduct(t, db, models.Product{ItemCode: "PCM", Batch: "B2", ItemName: "Paracetamol", StockQuantity: 30})
}

func TestCreatePurchaseDuplicateInvoiceNumber(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()

	first := performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", first.Code, first.Body.String())
	}
	second := performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate invoiceNo must 409, got %d body=%s", second.Code, second.Body.String())
	}
}

func TestProcessReturnRefundAndStockDecrement(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedPurchaseFixtures(t, db)
	performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)

	w := performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"cash","reason":"damaged","items":[{"productName":"Amoxicillin","batch":"B1","quantity":4}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var result struct {
		TotalReturnAmount float64 `json:"totalReturnAmount"`
		InvoiceStatus     string  `json:"invoiceStatus"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// gross 400, taxable 360, cgst 18, sgst 18
	if result.TotalReturnAmount != 396 {
		t.Fatalf("refund must use the original invoice figures, got %v", result.TotalReturnAmount)
	}
	if result.InvoiceStatus != models.PurchaseStatusPartiallyReturned {
		t.Fatalf("expected partially_returned, got %s", result.InvoiceStatus)
	}

	// Returning goods to the supplier reduces on-hand stock.
	var product models.Product
	if err := db.First(&product, "item_code = ?", "AMX").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if product.StockQuantity != 46 {
		t.Fatalf("stock not decremented, got %d", product.StockQuantity)
	}
}

func TestRemainingViewPartialThenFullReturn(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedPurchaseFixtures(t, db)
	performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)
	performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"cash","items":[{"productName":"Amoxicillin","batch":"B1","quantity":4}]}`)

	w := performRequest(r, http.MethodGet, "/api/purchases/INV-1/remaining", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var view services.RemainingView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.ActiveLines) != 2 {
		t.Fatalf("partial return must keep the line, got %d lines", len(view.ActiveLines))
	}
	if view.ActiveLines[0].RemainingQty != 6 {
		t.Fatalf("remainingQty = original - returned, got %d", view.ActiveLines[0].RemainingQty)
	}
	// 6 x 100 less 10% = 540 taxable; 27 cgst; 27 sgst. Second line untouched:
	// 5 x 20 = 100 taxable; 6 cgst; 6 sgst.
	if view.RecalculatedTotals.SubTotal != 640 ||
		view.RecalculatedTotals.TotalCgst != 33 ||
		view.RecalculatedTotals.TotalSgst != 33 ||
		view.RecalculatedTotals.GrandTotal != 706 {
		t.Fatalf("totals must come only from remaining quantities: %+v", view.RecalculatedTotals)
	}
	if view.TotalRefunded != 396 {
		t.Fatalf("totalRefunded: %v", view.TotalRefunded)
	}

	// Idempotent: a second read with no intervening writes is byte-identical.
	again := performRequest(r, http.MethodGet, "/api/purchases/INV-1/remaining", "")
	if !bytes.Equal(w.Body.Bytes(), again.Body.Bytes()) {
		t.Fatalf("remaining view is not idempotent")
	}

	// Return everything that is left; both lines must drop out.
	w = performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"credit","items":[{"productName":"Amoxicillin","batch":"B1","quantity":6},{"productName":"Paracetamol","batch":"B2","quantity":5}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	w = performRequest(r, http.MethodGet, "/api/purchases/INV-1/remaining", "")
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.ActiveLines) != 0 {
		t.Fatalf("fully returned lines must be filtered out: %+v", view.ActiveLines)
	}
	if view.RecalculatedTotals.GrandTotal != 0 {
		t.Fatalf("totals of an empty view must be zero: %+v", view.RecalculatedTotals)
	}

	var invoice models.PurchaseInvoice
	if err := db.First(&invoice, "invoice_no = ?", "INV-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if invoice.Status != models.PurchaseStatusFullyReturned {
		t.Fatalf("expected fully_returned, got %s", invoice.Status)
	}
}

func TestReturnAcrossDuplicateKeyLines(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "AMX", Batch: "B1", ItemName: "Amoxicillin", StockQuantity: 50})
	performRequest(r, http.MethodPost, "/api/purchases", `{
		"invoiceNo": "INV-DUP",
		"supplierName": "MediSuppliers",
		"items": [
			{"itemCode":"AMX","productName":"Amoxicillin","batch":"B1","quantity":10,"rate":100},
			{"itemCode":"AMX","productName":"Amoxicillin","batch":"B1","quantity":10,"rate":100}
		],
		"subTotal": 2000,
		"grandTotal": 2000
	}`)

	// 12 exceeds either line alone but not the 20 the two lines hold together.
	w := performRequest(r, http.MethodPost, "/api/purchases/INV-DUP/returns",
		`{"refundMethod":"cash","items":[{"productName":"Amoxicillin","batch":"B1","quantity":12}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	w = performRequest(r, http.MethodGet, "/api/purchases/INV-DUP/remaining", "")
	var view services.RemainingView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.ActiveLines) != 1 || view.ActiveLines[0].RemainingQty != 8 {
		t.Fatalf("8 units must remain on one line: %+v", view.ActiveLines)
	}
	if view.RecalculatedTotals.SubTotal != 800 {
		t.Fatalf("totals must count the surviving units: %+v", view.RecalculatedTotals)
	}

	var invoice models.PurchaseInvoice
	if err := db.First(&invoice, "invoice_no = ?", "INV-DUP").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if invoice.Status != models.PurchaseStatusPartiallyReturned {
		t.Fatalf("8 un-returned units must keep the invoice partially_returned, got %s", invoice.Status)
	}
}

func TestOverReturnRejectedWithoutWrites(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedPurchaseFixtures(t, db)
	performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)

	w := performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"cash","items":[{"productName":"Amoxicillin","batch":"B1","quantity":11}]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-return must be rejected, got %d body=%s", w.Code, w.Body.String())
	}

	var returnCount int64
	db.Model(&models.PurchaseReturn{}).Count(&returnCount)
	if returnCount != 0 {
		t.Fatalf("rejected return must write nothing, found %d returns", returnCount)
	}
	var product models.Product
	db.First(&product, "item_code = ?", "AMX")
	if product.StockQuantity != 50 {
		t.Fatalf("stock must be untouched, got %d", product.StockQuantity)
	}
	var invoice models.PurchaseInvoice
	db.First(&invoice, "invoice_no = ?", "INV-1")
	if invoice.Status != models.PurchaseStatusActive {
		t.Fatalf("rejection must roll the invoice back untouched, got %s", invoice.Status)
	}
}

func TestReturnAgainstUnknownLineRejected(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedPurchaseFixtures(t, db)
	performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)

	w := performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"cash","items":[{"productName":"Nothing","batch":"B1","quantity":1}]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown line must be rejected, got %d", w.Code)
	}
}

func TestReturnStockMissFallsBackToReconciliationTask(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	// No catalog rows at all: the return still commits, the decrement parks.
	performRequest(r, http.MethodPost, "/api/purchases", purchaseBody)

	w := performRequest(r, http.MethodPost, "/api/purchases/INV-1/returns",
		`{"refundMethod":"cash","items":[{"productName":"Amoxicillin","batch":"B1","quantity":2}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("return must commit even when stock adjust fails, got %d body=%s", w.Code, w.Body.String())
	}

	var returnCount int64
	db.Model(&models.PurchaseReturn{}).Count(&returnCount)
	if returnCount != 1 {
		t.Fatalf("return record missing")
	}

	var tasks []models.StockReconciliationTask
	if err := db.Where("status = ?", "pending").Find(&tasks).Error; err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Quantity != 2 || tasks[0].Direction != models.StockDecrease {
		t.Fatalf("pending reconciliation task expected, got %#v", tasks)
	}
	if tasks[0].ProductName != "Amoxicillin" {
		t.Fatalf("task must carry the product name for retry lookups, got %q", tasks[0].ProductName)
	}
}

func TestReturnOnMissingInvoiceIs404(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()

	w := performRequest(r, http.MethodPost, "/api/purchases/NOPE/returns",
		`{"refundMethod":"cash","items":[{"productName":"X","quantity":1}]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}
