package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SalesInvoice is a ledger entry. InvoiceNo is the string form of the durable
// counter and is never reused. The record is only ever mutated by line-return
// adjustments, which also append to the Returns journal.
type SalesInvoice struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	InvoiceNo   string    `gorm:"uniqueIndex;not null" json:"invoiceNo"`
	InvoiceDate time.Time `gorm:"index" json:"invoiceDate"`

	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	PaymentMode   string `gorm:"default:'cash'" json:"paymentMode"`

	Items   []SalesLineItem    `gorm:"foreignKey:InvoiceID" json:"items"`
	Returns []SalesReturnEntry `gorm:"foreignKey:InvoiceID" json:"returns"`

	TotalQty    int     `gorm:"default:0" json:"totalQty"`
	GrossTotal  float64 `gorm:"type:decimal(12,2);default:0.0" json:"grossTotal"`
	TotalCgst   float64 `gorm:"type:decimal(12,2);default:0.0" json:"totalCgst"`
	TotalSgst   float64 `gorm:"type:decimal(12,2);default:0.0" json:"totalSgst"`
	RoundOff    float64 `gorm:"type:decimal(6,2);default:0.0" json:"roundOff"`
	FinalAmount float64 `gorm:"type:decimal(12,2);default:0.0" json:"finalAmount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *SalesInvoice) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SalesLineItem carries its own LineID so return adjustments can reference a
// line stably even after quantities change. PurchasePrice is snapshotted at
// sale time for profit reporting.
type SalesLineItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null" json:"invoiceId"`

	LineID   string `gorm:"index" json:"lineId"`
	Position int    `json:"position"`

	ItemCode    string `json:"itemCode"`
	ProductName string `gorm:"not null" json:"productName"`
	Batch       string `json:"batch"`
	HSNCode     string `json:"hsnCode"`

	Quantity      int     `gorm:"not null" json:"quantity"`
	Rate          float64 `gorm:"type:decimal(10,2);not null" json:"rate"`
	PurchasePrice float64 `gorm:"type:decimal(10,2);default:0.0" json:"purchasePrice"`
	CgstPercent   float64 `gorm:"type:decimal(5,2);default:0.0" json:"cgstPercent"`
	SgstPercent   float64 `gorm:"type:decimal(5,2);default:0.0" json:"sgstPercent"`

	GrossAmount float64 `gorm:"type:decimal(12,2);default:0.0" json:"grossAmount"`
	CgstAmount  float64 `gorm:"type:decimal(12,2);default:0.0" json:"cgstAmount"`
	SgstAmount  float64 `gorm:"type:decimal(12,2);default:0.0" json:"sgstAmount"`
	Total       float64 `gorm:"type:decimal(12,2);default:0.0" json:"total"`
}

func (s *SalesLineItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SalesReturnEntry is one row of the append-only return journal.
type SalesReturnEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null" json:"invoiceId"`

	LineRef          string    `gorm:"not null" json:"lineRef"`
	QuantityReturned int       `gorm:"not null" json:"quantityReturned"`
	ReturnedAt       time.Time `json:"returnedAt"`
}

func (s *SalesReturnEntry) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// InvoiceCounter is the single-row durable sequence behind sales invoice
// numbers. NextNumber is the value the next invoice will receive.
type InvoiceCounter struct {
	ID         uint  `gorm:"primary_key" json:"id"`
	NextNumber int64 `gorm:"not null;default:1" json:"nextNumber"`
}

const invoiceCounterID = 1

// SeedInvoiceCounter makes sure the counter row exists. Called once at
// startup so NextInvoiceNumber never has to race on creation.
func SeedInvoiceCounter(db *gorm.DB) error {
	counter := InvoiceCounter{ID: invoiceCounterID, NextNumber: 1}
	return db.FirstOrCreate(&counter, InvoiceCounter{ID: invoiceCounterID}).Error
}

// NextInvoiceNumber returns the current counter value and advances it in the
// same transaction. The UPDATE with an SQL expression takes the row lock, so
// concurrent callers get distinct, strictly increasing numbers with no gaps,
// and the value survives restarts because it only ever lives in the table.
func NextInvoiceNumber(db *gorm.DB) (int64, error) {
	var assigned int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&InvoiceCounter{}).Where("id = ?", invoiceCounterID).
			Update("next_number", gorm.Expr("next_number + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("invoice counter not seeded")
		}
		var counter InvoiceCounter
		if err := tx.First(&counter, "id = ?", invoiceCounterID).Error; err != nil {
			return err
		}
		assigned = counter.NextNumber - 1
		return nil
	})
	return assigned, err
}
