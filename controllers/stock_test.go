package controllers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"pharmabill-backend/models"

	"gorm.io/gorm"
)

func seedProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	t.Helper()
	if p.Category == "" {
		p.Category = "General"
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func decodeAdjust(t *testing.T, body []byte) models.StockAdjustResult {
	t.Helper()
	var result models.StockAdjustResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode adjust result: %v", err)
	}
	return result
}

func TestAdjustStockDecreaseClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "P1", Batch: "B1", ItemName: "Paracetamol", StockQuantity: 20, ReorderLevel: 5})

	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"P1","batch":"B1","qty":25,"direction":"decrease"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	result := decodeAdjust(t, w.Body.Bytes())
	if !result.Success || result.NewStock != 0 {
		t.Fatalf("expected clamped success with newStock=0, got %+v", result)
	}
	if result.ItemName != "Paracetamol" {
		t.Fatalf("expected item name in result, got %+v", result)
	}
}

func TestAdjustStockNoReplayDeduplication(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "P2", Batch: "B1", ItemName: "Ibuprofen", StockQuantity: 10})

	body := `{"code":"P2","batch":"B1","qty":5,"direction":"decrease"}`
	first := performRequest(r, http.MethodPost, "/api/stock/adjust", body)
	if got := decodeAdjust(t, first.Body.Bytes()); got.NewStock != 5 {
		t.Fatalf("after first decrement expected 5, got %d", got.NewStock)
	}
	second := performRequest(r, http.MethodPost, "/api/stock/adjust", body)
	if got := decodeAdjust(t, second.Body.Bytes()); got.NewStock != 0 {
		t.Fatalf("after second identical decrement expected 0, got %d", got.NewStock)
	}
}

func TestAdjustStockIncrease(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "P3", ItemName: "Cough Syrup", StockQuantity: 2})

	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"P3","qty":8,"direction":"increase"}`)
	if got := decodeAdjust(t, w.Body.Bytes()); got.NewStock != 10 {
		t.Fatalf("expected 10, got %d", got.NewStock)
	}
}

func TestAdjustStockNotFoundMutatesNothing(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "P4", Batch: "B9", ItemName: "Vitamin C", StockQuantity: 7})

	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"NOPE","batch":"B9","qty":3,"direction":"decrease"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}

	var product models.Product
	if err := db.First(&product, "item_code = ?", "P4").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if product.StockQuantity != 7 {
		t.Fatalf("stock mutated on miss: %d", product.StockQuantity)
	}
}

func TestAdjustStockKeyIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "AMX500", Batch: "LotA", ItemName: "Amoxicillin", StockQuantity: 12})

	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"amx500","batch":"LOTA","qty":2,"direction":"decrease"}`)
	if got := decodeAdjust(t, w.Body.Bytes()); got.NewStock != 10 {
		t.Fatalf("case-insensitive key lookup failed: %+v", got)
	}
}

func TestAdjustStockEmptyBatchEqualsAbsent(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	seedProduct(t, db, models.Product{ItemCode: "P5", ItemName: "Saline", StockQuantity: 4})

	// batch omitted entirely from the payload
	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"P5","qty":1,"direction":"decrease"}`)
	if got := decodeAdjust(t, w.Body.Bytes()); got.NewStock != 3 {
		t.Fatalf("absent batch should match empty batch row: %+v", got)
	}
}

func TestAdjustStockMostRecentlyUpdatedRowWins(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	older := seedProduct(t, db, models.Product{ItemCode: "DUP", Batch: "B1", ItemName: "Dup Old", StockQuantity: 100})
	newer := seedProduct(t, db, models.Product{ItemCode: "DUP", Batch: "B1", ItemName: "Dup New", StockQuantity: 50})

	time.Sleep(10 * time.Millisecond)
	if err := db.Model(&models.Product{}).Where("id = ?", newer.ID).
		Update("reorder_level", 3).Error; err != nil {
		t.Fatalf("bump: %v", err)
	}

	w := performRequest(r, http.MethodPost, "/api/stock/adjust",
		`{"code":"DUP","batch":"B1","qty":10,"direction":"decrease"}`)
	got := decodeAdjust(t, w.Body.Bytes())
	if got.ItemName != "Dup New" || got.NewStock != 40 {
		t.Fatalf("expected the recently updated row to be adjusted, got %+v", got)
	}

	var untouched models.Product
	if err := db.First(&untouched, "id = ?", older.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if untouched.StockQuantity != 100 {
		t.Fatalf("older row should be untouched, got %d", untouched.StockQuantity)
	}
}

func TestAdjustStockRejectsBadInput(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()

	for _, body := range []string{
		`{"code":"P1","qty":0,"direction":"decrease"}`,
		`{"code":"P1","qty":5,"direction":"sideways"}`,
		`{"qty":5,"direction":"decrease"}`,
	} {
		w := performRequest(r, http.MethodPost, "/api/stock/adjust", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, w.Code)
		}
	}
}
