package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

const (
	StockIncrease = "increase"
	StockDecrease = "decrease"
)

// StockAdjustResult is what the stock.adjust surface reports back to the UI.
type StockAdjustResult struct {
	Success  bool   `json:"success"`
	NewStock int    `json:"newStock"`
	ItemName string `json:"itemName"`
}

var ErrProductNotFound = errors.New("no product matches the given code and batch")

// ResolveItemCodeByName looks a product code up by its catalog name. Purchase
// lines may carry no code, so return handling and reconciliation retries fall
// back to this. Same key normalization and tie-break as the code lookup.
func ResolveItemCodeByName(db *gorm.DB, productName, batch string) (string, bool) {
	var product Product
	err := db.
		Where("LOWER(item_name) = LOWER(?) AND LOWER(batch) = LOWER(?)",
			strings.TrimSpace(productName), strings.TrimSpace(batch)).
		Order("updated_at DESC").
		First(&product).Error
	if err != nil {
		return "", false
	}
	return product.ItemCode, true
}

// ApplyStockAdjustment mutates the on-hand quantity of the product matching
// the normalized (code, batch) key. When several rows share the key, the most
// recently updated one wins. Decrease clamps at zero inside a single SQL
// expression so concurrent callers on the same row serialize at the engine;
// increase adds unconditionally. A missing product leaves state untouched.
//
// Explicit command-style mutation; the write paths call this directly instead
// of relying on model-hook side effects.
func ApplyStockAdjustment(db *gorm.DB, code, batch string, qty int, direction string) (StockAdjustResult, error) {
	result := StockAdjustResult{}
	if qty <= 0 {
		return result, errors.New("quantity must be positive")
	}
	if direction != StockIncrease && direction != StockDecrease {
		return result, errors.New("direction must be increase or decrease")
	}

	code = strings.TrimSpace(code)
	batch = strings.TrimSpace(batch)

	err := db.Transaction(func(tx *gorm.DB) error {
		var product Product
		if err := tx.
			Where("LOWER(item_code) = LOWER(?) AND LOWER(batch) = LOWER(?)", code, batch).
			Order("updated_at DESC").
			First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		var expr interface{}
		if direction == StockDecrease {
			expr = gorm.Expr("CASE WHEN stock_quantity > ? THEN stock_quantity - ? ELSE 0 END", qty, qty)
		} else {
			expr = gorm.Expr("stock_quantity + ?", qty)
		}
		if err := tx.Model(&Product{}).Where("id = ?", product.ID).
			Update("stock_quantity", expr).Error; err != nil {
			return err
		}

		if err := tx.Select("stock_quantity").First(&product, "id = ?", product.ID).Error; err != nil {
			return err
		}

		result.Success = true
		result.NewStock = product.StockQuantity
		result.ItemName = product.ItemName
		return nil
	})
	if err != nil {
		return StockAdjustResult{}, err
	}
	return result, nil
}
