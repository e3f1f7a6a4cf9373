// controllers/product.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pharmabill-backend/config"
	"pharmabill-backend/models"
	"pharmabill-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProductInput defines the expected JSON structure for creating a product
type CreateProductInput struct {
	ItemCode     string `json:"itemCode" binding:"required"`
	Batch        string `json:"batch"`
	ItemName     string `json:"itemName" binding:"required"`
	RegionalName string `json:"regionalName"`
	ShortKey     string `json:"shortKey"`
	Barcode      string `json:"barcode"`

	Category     string `json:"category"`
	Manufacturer string `json:"manufacturer"`
	HSNCode      string `json:"hsnCode"`

	PurchasePrice float64 `json:"purchasePrice" binding:"min=0"`
	SalePrice     float64 `json:"salePrice" binding:"min=0"`
	MRP           float64 `json:"mrp" binding:"min=0"`

	CgstPercent float64 `json:"cgstPercent" binding:"min=0"`
	SgstPercent float64 `json:"sgstPercent" binding:"min=0"`
	IgstPercent float64 `json:"igstPercent" binding:"min=0"`

	PurchaseIncludesTax bool `json:"purchaseIncludesTax"`
	SaleIncludesTax     bool `json:"saleIncludesTax"`

	StockQuantity int `json:"stockQuantity" binding:"min=0"`
	ReorderLevel  int `json:"reorderLevel" binding:"min=0"`

	HasExpiry  bool       `json:"hasExpiry"`
	ExpiryDate *time.Time `json:"expiryDate"`
}

// UpdateProductInput defines the expected JSON structure for updating a product
type UpdateProductInput struct {
	ItemCode     *string `json:"itemCode"`
	Batch        *string `json:"batch"`
	ItemName     *string `json:"itemName"`
	RegionalName *string `json:"regionalName"`
	ShortKey     *string `json:"shortKey"`
	Barcode      *string `json:"barcode"`

	Category     *string `json:"category"`
	Manufacturer *string `json:"manufacturer"`
	HSNCode      *string `json:"hsnCode"`

	PurchasePrice *float64 `json:"purchasePrice" binding:"omitempty,min=0"`
	SalePrice     *float64 `json:"salePrice" binding:"omitempty,min=0"`
	MRP           *float64 `json:"mrp" binding:"omitempty,min=0"`

	CgstPercent *float64 `json:"cgstPercent" binding:"omitempty,min=0"`
	SgstPercent *float64 `json:"sgstPercent" binding:"omitempty,min=0"`
	IgstPercent *float64 `json:"igstPercent" binding:"omitempty,min=0"`

	PurchaseIncludesTax *bool `json:"purchaseIncludesTax"`
	SaleIncludesTax     *bool `json:"saleIncludesTax"`

	StockQuantity *int `json:"stockQuantity" binding:"omitempty,min=0"`
	ReorderLevel  *int `json:"reorderLevel" binding:"omitempty,min=0"`

	HasExpiry  *bool      `json:"hasExpiry"`
	ExpiryDate *time.Time `json:"expiryDate"`
}

// CreateProduct adds a catalog row. Aliases are derived server-side in the
// model's BeforeSave hook regardless of what the payload carried.
func CreateProduct(c *gin.Context) {
	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	product := models.Product{
		ItemCode:            input.ItemCode,
		Batch:               input.Batch,
		ItemName:            input.ItemName,
		RegionalName:        input.RegionalName,
		ShortKey:            input.ShortKey,
		Barcode:             input.Barcode,
		Category:            input.Category,
		Manufacturer:        input.Manufacturer,
		HSNCode:             input.HSNCode,
		PurchasePrice:       input.PurchasePrice,
		SalePrice:           input.SalePrice,
		MRP:                 input.MRP,
		CgstPercent:         input.CgstPercent,
		SgstPercent:         input.SgstPercent,
		IgstPercent:         input.IgstPercent,
		PurchaseIncludesTax: input.PurchaseIncludesTax,
		SaleIncludesTax:     input.SaleIncludesTax,
		StockQuantity:       input.StockQuantity,
		ReorderLevel:        input.ReorderLevel,
		HasExpiry:           input.HasExpiry,
		ExpiryDate:          input.ExpiryDate,
	}
	if product.Category == "" {
		product.Category = "General"
	}

	if err := config.DB.Create(&product).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create product")
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GetProducts lists the catalog, optionally filtered by ?search=term.
func GetProducts(c *gin.Context) {
	query := config.DB.Order("item_name")
	if term := c.Query("search"); term != "" {
		query = applySearchFilter(query, term)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}

	c.JSON(http.StatusOK, products)
}

// SearchProducts matches a substring case-insensitively across the seven
// text fields of the catalog row, ordered by name.
func SearchProducts(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Missing search term")
		return
	}

	var products []models.Product
	if err := applySearchFilter(config.DB, term).
		Order("item_name").
		Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to search products")
		return
	}

	c.JSON(http.StatusOK, products)
}

func applySearchFilter(db *gorm.DB, term string) *gorm.DB {
	like := "%" + term + "%"
	return db.Where(
		`LOWER(item_code) LIKE LOWER(?) OR LOWER(item_name) LIKE LOWER(?)
		OR LOWER(regional_name) LIKE LOWER(?) OR LOWER(short_key) LIKE LOWER(?)
		OR LOWER(barcode) LIKE LOWER(?) OR LOWER(batch) LIKE LOWER(?)
		OR LOWER(hsn_code) LIKE LOWER(?)`,
		like, like, like, like, like, like, like)
}

// GetProduct retrieves a specific product by ID
func GetProduct(c *gin.Context) {
	productUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var product models.Product
	if err := config.DB.First(&product, "id = ?", productUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Product not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, product)
}

// UpdateProduct applies a partial update and re-derives the alias fields.
func UpdateProduct(c *gin.Context) {
	productUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var input UpdateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var product models.Product
	if err := config.DB.First(&product, "id = ?", productUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Product not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if input.ItemCode != nil {
		product.ItemCode = *input.ItemCode
	}
	if input.Batch != nil {
		product.Batch = *input.Batch
	}
	if input.ItemName != nil {
		product.ItemName = *input.ItemName
	}
	if input.RegionalName != nil {
		product.RegionalName = *input.RegionalName
	}
	if input.ShortKey != nil {
		product.ShortKey = *input.ShortKey
	}
	if input.Barcode != nil {
		product.Barcode = *input.Barcode
	}
	if input.Category != nil {
		product.Category = *input.Category
	}
	if input.Manufacturer != nil {
		product.Manufacturer = *input.Manufacturer
	}
	if input.HSNCode != nil {
		product.HSNCode = *input.HSNCode
	}
	if input.PurchasePrice != nil {
		product.PurchasePrice = *input.PurchasePrice
	}
	if input.SalePrice != nil {
		product.SalePrice = *input.SalePrice
	}
	if input.MRP != nil {
		product.MRP = *input.MRP
	}
	if input.CgstPercent != nil {
		product.CgstPercent = *input.CgstPercent
	}
	if input.SgstPercent != nil {
		product.SgstPercent = *input.SgstPercent
	}
	if input.IgstPercent != nil {
		product.IgstPercent = *input.IgstPercent
	}
	if input.PurchaseIncludesTax != nil {
		product.PurchaseIncludesTax = *input.PurchaseIncludesTax
	}
	if input.SaleIncludesTax != nil {
		product.SaleIncludesTax = *input.SaleIncludesTax
	}
	if input.StockQuantity != nil {
		product.StockQuantity = *input.StockQuantity
	}
	if input.ReorderLevel != nil {
		product.ReorderLevel = *input.ReorderLevel
	}
	if input.HasExpiry != nil {
		product.HasExpiry = *input.HasExpiry
	}
	if input.ExpiryDate != nil {
		product.ExpiryDate = input.ExpiryDate
	}

	if err := config.DB.Save(&product).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update product")
		return
	}

	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a catalog row permanently.
func DeleteProduct(c *gin.Context) {
	productUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	result := config.DB.Delete(&models.Product{}, "id = ?", productUUID)
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete product")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Product not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// GetLowStockProducts lists rows with 0 < quantity <= reorder level.
func GetLowStockProducts(c *gin.Context) {
	var products []models.Product
	if err := config.DB.
		Where("stock_quantity > 0 AND stock_quantity <= reorder_level").
		Order("item_name").
		Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve low stock products")
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetOutOfStockProducts lists rows with zero quantity.
func GetOutOfStockProducts(c *gin.Context) {
	var products []models.Product
	if err := config.DB.
		Where("stock_quantity = 0").
		Order("item_name").
		Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve out of stock products")
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetExpiringProducts lists rows whose expiry date falls within
// [now, now + ?days] (default 30).
func GetExpiringProducts(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 0 {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		days = parsed
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, days)

	var products []models.Product
	if err := config.DB.
		Where("has_expiry = ? AND expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", true, now, cutoff).
		Order("expiry_date").
		Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve expiring products")
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetExpiredProducts lists rows already past their expiry date.
func GetExpiredProducts(c *gin.Context) {
	var products []models.Product
	if err := config.DB.
		Where("has_expiry = ? AND expiry_date IS NOT NULL AND expiry_date < ?", true, time.Now()).
		Order("expiry_date").
		Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve expired products")
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetStockStats aggregates counts and stock/cost/MRP values over the catalog.
func GetStockStats(c *gin.Context) {
	var stats models.StockStats

	row := config.DB.Model(&models.Product{}).
		Select(`COUNT(*) AS total_products,
			COALESCE(SUM(stock_quantity), 0) AS total_quantity,
			COALESCE(SUM(stock_quantity * sale_price), 0) AS stock_value,
			COALESCE(SUM(stock_quantity * purchase_price), 0) AS cost_value,
			COALESCE(SUM(stock_quantity * mrp), 0) AS mrp_value,
			COUNT(DISTINCT category) AS category_count`).
		Scan(&stats)
	if row.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to compute stock stats")
		return
	}

	if err := config.DB.Model(&models.Product{}).
		Where("stock_quantity > 0 AND stock_quantity <= reorder_level").
		Count(&stats.LowStockCount).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to compute stock stats")
		return
	}
	if err := config.DB.Model(&models.Product{}).
		Where("stock_quantity = 0").
		Count(&stats.OutOfStockCount).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to compute stock stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// BulkAddProducts inserts a batch of catalog rows in one transaction.
func BulkAddProducts(c *gin.Context) {
	var inputs []CreateProductInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	created := make([]models.Product, 0, len(inputs))
	for _, input := range inputs {
		product := models.Product{
			ItemCode:            input.ItemCode,
			Batch:               input.Batch,
			ItemName:            input.ItemName,
			RegionalName:        input.RegionalName,
			ShortKey:            input.ShortKey,
			Barcode:             input.Barcode,
			Category:            input.Category,
			Manufacturer:        input.Manufacturer,
			HSNCode:             input.HSNCode,
			PurchasePrice:       input.PurchasePrice,
			SalePrice:           input.SalePrice,
			MRP:                 input.MRP,
			CgstPercent:         input.CgstPercent,
			SgstPercent:         input.SgstPercent,
			IgstPercent:         input.IgstPercent,
			PurchaseIncludesTax: input.PurchaseIncludesTax,
			SaleIncludesTax:     input.SaleIncludesTax,
			StockQuantity:       input.StockQuantity,
			ReorderLevel:        input.ReorderLevel,
			HasExpiry:           input.HasExpiry,
			ExpiryDate:          input.ExpiryDate,
		}
		if product.Category == "" {
			product.Category = "General"
		}
		if err := tx.Create(&product).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to add products")
			return
		}
		created = append(created, product)
	}

	tx.Commit()

	c.JSON(http.StatusCreated, gin.H{"count": len(created), "products": created})
}

// ExportProducts dumps the whole catalog.
func ExportProducts(c *gin.Context) {
	var products []models.Product
	if err := config.DB.Order("item_name").Find(&products).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to export products")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

// ImportProducts replaces rows by id (upsert). The payload is trusted beyond
// structural parsing; any malformed row or write error fails the whole import
// with nothing applied.
func ImportProducts(c *gin.Context) {
	var products []models.Product
	if err := c.ShouldBindJSON(&products); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid import payload: "+err.Error())
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range products {
		if err := tx.Save(&products[i]).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Import failed, no rows applied")
			return
		}
	}

	tx.Commit()

	c.JSON(http.StatusOK, gin.H{"count": len(products)})
}

// ClearAllProducts wipes the catalog.
func ClearAllProducts(c *gin.Context) {
	if err := config.DB.Where("1 = 1").Delete(&models.Product{}).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to clear products")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All products cleared"})
}
