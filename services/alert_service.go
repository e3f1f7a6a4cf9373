// services/alert_service.go
package services

import (
	"fmt"
	"log"
	"os"
	"time"

	"pharmabill-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

// AlertService owns the daily housekeeping: it retries stock decrements that
// failed after a purchase return was committed, then texts the owner a
// low-stock and expiry digest.
type AlertService struct {
	db     *gorm.DB
	client *twilio.RestClient
}

func NewAlertService(db *gorm.DB) *AlertService {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	return &AlertService{
		db: db,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
	}
}

func (s *AlertService) StartScheduler() {
	c := cron.New()

	// Run every day at 8 AM
	if _, err := c.AddFunc("0 8 * * *", s.RunDailyChecks); err != nil {
		log.Printf("Failed to schedule daily checks: %v", err)
		return
	}

	c.Start()
	log.Println("Alert scheduler started")
}

func (s *AlertService) RunDailyChecks() {
	log.Println("Starting daily stock checks...")

	s.RetryPendingAdjustments()
	s.SendStockDigest()

	log.Println("Daily stock checks completed")
}

// RetryPendingAdjustments replays stock decrements parked by the purchase
// return saga. A task stays pending until its product turns up. Tasks parked
// without a code retry the name lookup each pass, so a product added to the
// catalog later still gets its decrement.
func (s *AlertService) RetryPendingAdjustments() {
	var tasks []models.StockReconciliationTask
	if err := s.db.Where("status = ?", "pending").Find(&tasks).Error; err != nil {
		log.Printf("Failed to fetch reconciliation tasks: %v", err)
		return
	}

	for _, task := range tasks {
		code := task.ItemCode
		if code == "" && task.ProductName != "" {
			if resolved, ok := models.ResolveItemCodeByName(s.db, task.ProductName, task.Batch); ok {
				code = resolved
			}
		}
		_, err := models.ApplyStockAdjustment(s.db, code, task.Batch, task.Quantity, task.Direction)
		updates := map[string]interface{}{
			"attempts": gorm.Expr("attempts + 1"),
		}
		if err != nil {
			updates["last_error"] = err.Error()
			log.Printf("Reconciliation task %s still failing: %v", task.ID, err)
		} else {
			updates["status"] = "done"
			updates["last_error"] = ""
			log.Printf("Reconciliation task %s applied", task.ID)
		}
		if err := s.db.Model(&models.StockReconciliationTask{}).
			Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			log.Printf("Failed to update reconciliation task %s: %v", task.ID, err)
		}
	}
}

// SendStockDigest texts the owner a summary of low-stock and soon-to-expire
// products. Skipped when no owner phone is configured.
func (s *AlertService) SendStockDigest() {
	ownerPhone := os.Getenv("OWNER_PHONE")
	if ownerPhone == "" {
		log.Println("OWNER_PHONE not set, skipping stock digest")
		return
	}

	var lowStockCount int64
	if err := s.db.Model(&models.Product{}).
		Where("stock_quantity > 0 AND stock_quantity <= reorder_level").
		Count(&lowStockCount).Error; err != nil {
		log.Printf("Failed to count low stock products: %v", err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, 30)
	var expiringCount int64
	if err := s.db.Model(&models.Product{}).
		Where("has_expiry = ? AND expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?",
			true, time.Now(), cutoff).
		Count(&expiringCount).Error; err != nil {
		log.Printf("Failed to count expiring products: %v", err)
		return
	}

	if lowStockCount == 0 && expiringCount == 0 {
		return
	}

	body := fmt.Sprintf("Stock digest: %d products low on stock, %d expiring within 30 days.",
		lowStockCount, expiringCount)
	s.sendSMS(ownerPhone, body)
}

func (s *AlertService) sendSMS(to, body string) {
	from := os.Getenv("TWILIO_PHONE_NUMBER")
	if from == "" {
		log.Println("TWILIO_PHONE_NUMBER not set, skipping SMS")
		return
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		log.Printf("Failed to send SMS to %s: %v", to, err)
		return
	}
	log.Printf("Stock digest sent to %s", to)
}
