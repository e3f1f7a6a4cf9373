package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is one catalog row. Lookup key for stock operations is
// (item_code, batch); an empty batch and an absent batch mean the same row.
type Product struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	ItemCode string `gorm:"index:idx_item_code_batch,priority:1;not null" json:"itemCode"`
	Batch    string `gorm:"index:idx_item_code_batch,priority:2" json:"batch"`

	ItemName     string `gorm:"not null;index" json:"itemName"`
	RegionalName string `json:"regionalName"`
	ShortKey     string `json:"shortKey"`
	Barcode      string `json:"barcode"`

	Category     string `gorm:"index;default:'General'" json:"category"`
	Manufacturer string `json:"manufacturer"`
	HSNCode      string `json:"hsnCode"`

	PurchasePrice float64 `gorm:"type:decimal(10,2);default:0.0" json:"purchasePrice"`
	SalePrice     float64 `gorm:"type:decimal(10,2);default:0.0" json:"salePrice"`
	MRP           float64 `gorm:"type:decimal(10,2);default:0.0" json:"mrp"`

	CgstPercent float64 `gorm:"type:decimal(5,2);default:0.0" json:"cgstPercent"`
	SgstPercent float64 `gorm:"type:decimal(5,2);default:0.0" json:"sgstPercent"`
	IgstPercent float64 `gorm:"type:decimal(5,2);default:0.0" json:"igstPercent"`

	PurchaseIncludesTax bool `gorm:"default:false" json:"purchaseIncludesTax"`
	SaleIncludesTax     bool `gorm:"default:false" json:"saleIncludesTax"`

	StockQuantity int `gorm:"default:0" json:"stockQuantity"`
	ReorderLevel  int `gorm:"default:0" json:"reorderLevel"`

	HasExpiry  bool       `gorm:"default:false" json:"hasExpiry"`
	ExpiryDate *time.Time `gorm:"index" json:"expiryDate"`

	// Aliases kept for older UI payloads. Always derived from the canonical
	// fields in BeforeSave; caller-supplied values are overwritten.
	ProductCode  string  `json:"productCode"`
	ProductName  string  `json:"productName"`
	SellingPrice float64 `gorm:"type:decimal(10,2)" json:"sellingPrice"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SyncAliases()
	return nil
}

// SyncAliases re-derives the backward-compatibility alias fields from the
// canonical ones.
func (p *Product) SyncAliases() {
	p.ProductCode = p.ItemCode
	p.ProductName = p.ItemName
	p.SellingPrice = p.SalePrice
}

// StockStats is the aggregate view over the whole catalog.
type StockStats struct {
	TotalProducts   int64   `json:"totalProducts"`
	TotalQuantity   int64   `json:"totalQuantity"`
	StockValue      float64 `json:"stockValue"`
	CostValue       float64 `json:"costValue"`
	MRPValue        float64 `json:"mrpValue"`
	CategoryCount   int64   `json:"categoryCount"`
	LowStockCount   int64   `json:"lowStockCount"`
	OutOfStockCount int64   `json:"outOfStockCount"`
}
