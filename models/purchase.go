package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase invoice lifecycle for reconciliation purposes. fully_returned is
// terminal; the only thing left to do with such an invoice is delete it.
const (
	PurchaseStatusActive            = "active"
	PurchaseStatusPartiallyReturned = "partially_returned"
	PurchaseStatusFullyReturned     = "fully_returned"
)

// PurchaseInvoice is an immutable snapshot taken at entry time. Totals are
// stored as supplied by the operator; returns never rewrite this record, the
// remaining view is recomputed from it plus the return history.
type PurchaseInvoice struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	InvoiceNo   string    `gorm:"uniqueIndex;not null" json:"invoiceNo"`
	InvoiceDate time.Time `gorm:"index" json:"invoiceDate"`
	EntryDate   time.Time `json:"entryDate"`

	SupplierName  string `gorm:"not null" json:"supplierName"`
	SupplierGSTIN string `json:"supplierGstin"`
	TransportMode string `json:"transportMode"`
	VehicleNo     string `json:"vehicleNo"`

	Items []PurchaseLineItem `gorm:"foreignKey:InvoiceID" json:"items"`

	SubTotal   float64 `gorm:"type:decimal(12,2);default:0.0" json:"subTotal"`
	TotalCgst  float64 `gorm:"type:decimal(12,2);default:0.0" json:"totalCgst"`
	TotalSgst  float64 `gorm:"type:decimal(12,2);default:0.0" json:"totalSgst"`
	GrandTotal float64 `gorm:"type:decimal(12,2);default:0.0" json:"grandTotal"`

	Status string `gorm:"default:'active'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *PurchaseInvoice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PurchaseLineItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null" json:"invoiceId"`
	Position  int       `json:"position"`

	ItemCode    string `json:"itemCode"`
	ProductName string `gorm:"not null" json:"productName"`
	Batch       string `json:"batch"`
	HSNCode     string `json:"hsnCode"`

	Quantity     int `gorm:"not null" json:"quantity"`
	FreeQuantity int `gorm:"default:0" json:"freeQuantity"`

	Rate            float64 `gorm:"type:decimal(10,2);not null" json:"rate"`
	DiscountPercent float64 `gorm:"type:decimal(5,2);default:0.0" json:"discountPercent"`
	CgstPercent     float64 `gorm:"type:decimal(5,2);default:0.0" json:"cgstPercent"`
	SgstPercent     float64 `gorm:"type:decimal(5,2);default:0.0" json:"sgstPercent"`
	MRP             float64 `gorm:"type:decimal(10,2);default:0.0" json:"mrp"`

	ExpiryDate *time.Time `json:"expiryDate"`
}

func (p *PurchaseLineItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseReturn references its invoice by business key, not by internal id,
// so the two records can live in different stores if they ever have to.
type PurchaseReturn struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	OriginalInvoiceNo string `gorm:"index;not null" json:"originalInvoiceNo"`
	Reason            string `json:"reason"`
	RefundMethod      string `json:"refundMethod"`
	Status            string `gorm:"default:'completed'" json:"status"`

	Items []ReturnLineItem `gorm:"foreignKey:ReturnID" json:"items"`

	TotalReturnAmount float64 `gorm:"type:decimal(12,2);default:0.0" json:"totalReturnAmount"`

	CreatedAt time.Time `json:"createdAt"`
}

func (r *PurchaseReturn) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReturnLineItem keys on (productName, batch) like the invoice lines it draws
// down. Rate and tax figures are copied from the original line at return time.
type ReturnLineItem struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ReturnID uuid.UUID `gorm:"type:uuid;index;not null" json:"returnId"`

	ItemCode    string `json:"itemCode"`
	ProductName string `gorm:"not null" json:"productName"`
	Batch       string `json:"batch"`

	Quantity        int     `gorm:"not null" json:"quantity"`
	Rate            float64 `gorm:"type:decimal(10,2);not null" json:"rate"`
	DiscountPercent float64 `gorm:"type:decimal(5,2);default:0.0" json:"discountPercent"`
	CgstPercent     float64 `gorm:"type:decimal(5,2);default:0.0" json:"cgstPercent"`
	SgstPercent     float64 `gorm:"type:decimal(5,2);default:0.0" json:"sgstPercent"`

	RefundAmount float64 `gorm:"type:decimal(12,2);not null" json:"refundAmount"`
}

func (r *ReturnLineItem) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// StockReconciliationTask records a stock decrement that could not be applied
// after its purchase return was already committed. The alert scheduler retries
// pending tasks; nothing rolls the return back.
type StockReconciliationTask struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	ReturnID uuid.UUID `gorm:"type:uuid;index" json:"returnId"`

	// ItemCode may be blank when the return line carried none and the catalog
	// had no match at park time; ProductName lets the retry resolve it later.
	ItemCode    string `json:"itemCode"`
	ProductName string `json:"productName"`
	Batch       string `json:"batch"`
	Quantity    int    `json:"quantity"`
	Direction   string `json:"direction"`

	Status    string `gorm:"index;default:'pending'" json:"status"`
	Attempts  int    `gorm:"default:0" json:"attempts"`
	LastError string `json:"lastError"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *StockReconciliationTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
