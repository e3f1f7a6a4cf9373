package controllers

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"pharmabill-backend/config"
	"pharmabill-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.PurchaseInvoice{},
		&models.PurchaseLineItem{},
		&models.PurchaseReturn{},
		&models.ReturnLineItem{},
		&models.StockReconciliationTask{},
		&models.SalesInvoice{},
		&models.SalesLineItem{},
		&models.SalesReturnEntry{},
		&models.InvoiceCounter{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := models.SeedInvoiceCounter(db); err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	// Both stores share the test database; the handlers only ever see the
	// package-level handles.
	config.DB = db
	config.SalesDB = db
	return db
}

// newTestRouter wires the handlers without the auth middleware.
func newTestRouter() *gin.Engine {
	r := gin.New()

	r.POST("/api/products", CreateProduct)
	r.GET("/api/products", GetProducts)
	r.GET("/api/products/search", SearchProducts)
	r.GET("/api/products/low-stock", GetLowStockProducts)
	r.GET("/api/products/out-of-stock", GetOutOfStockProducts)
	r.GET("/api/products/expiring", GetExpiringProducts)
	r.GET("/api/products/expired", GetExpiredProducts)
	r.GET("/api/products/stats", GetStockStats)
	r.POST("/api/products/bulk", BulkAddProducts)
	r.GET("/api/products/export", ExportProducts)
	r.POST("/api/products/import", ImportProducts)
	r.DELETE("/api/products", ClearAllProducts)
	r.GET("/api/products/:id", GetProduct)
	r.PUT("/api/products/:id", UpdateProduct)
	r.DELETE("/api/products/:id", DeleteProduct)

	r.POST("/api/stock/adjust", AdjustStock)

	r.POST("/api/purchases", CreatePurchaseInvoice)
	r.GET("/api/purchases", GetPurchaseInvoices)
	r.GET("/api/purchases/:invoiceNo", GetPurchaseInvoice)
	r.GET("/api/purchases/:invoiceNo/remaining", GetRemainingView)
	r.GET("/api/purchases/:invoiceNo/returns", GetPurchaseReturns)
	r.POST("/api/purchases/:invoiceNo/returns", ProcessPurchaseReturn)
	r.DELETE("/api/purchases/:invoiceNo", DeletePurchaseInvoice)

	r.POST("/api/sales", SaveSalesInvoice)
	r.GET("/api/sales", QuerySalesRange)
	r.GET("/api/sales/:id", GetSalesInvoice)
	r.POST("/api/sales/:id/returns", ApplySalesReturn)
	r.DELETE("/api/sales/:id", DeleteSalesInvoice)

	return r
}

func performRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req = httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
