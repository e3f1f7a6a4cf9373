package main

import (
	"fmt"
	"log"
	"os"

	"pharmabill-backend/config"
	"pharmabill-backend/models"
	"pharmabill-backend/routes"
	"pharmabill-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	config.ConnectDB()

	config.DB.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.PurchaseInvoice{},
		&models.PurchaseLineItem{},
		&models.PurchaseReturn{},
		&models.ReturnLineItem{},
		&models.StockReconciliationTask{},
	)
	config.SalesDB.AutoMigrate(
		&models.SalesInvoice{},
		&models.SalesLineItem{},
		&models.SalesReturnEntry{},
		&models.InvoiceCounter{},
	)

	if err := models.SeedInvoiceCounter(config.SalesDB); err != nil {
		panic("Failed to seed invoice counter")
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	alerts := services.NewAlertService(config.DB)
	alerts.StartScheduler()

	r := routes.SetupRouter()
	printRoutes(r)
	r.Run(":" + port)
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
