package routes

import (
	"os"

	"pharmabill-backend/config"
	"pharmabill-backend/controllers"
	"pharmabill-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	allowedOrigins := []string{"http://localhost:3000"}
	if origin := os.Getenv("UI_ORIGIN"); origin != "" {
		allowedOrigins = append(allowedOrigins, origin)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)

		auth.Use(utils.AuthMiddleware())
		auth.GET("/me", controllers.Me)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware())
	{
		// Catalog routes
		products := api.Group("/products")
		{
			products.POST("", controllers.CreateProduct)
			products.GET("", controllers.GetProducts)
			products.GET("/search", controllers.SearchProducts)
			products.GET("/low-stock", controllers.GetLowStockProducts)
			products.GET("/out-of-stock", controllers.GetOutOfStockProducts)
			products.GET("/expiring", controllers.GetExpiringProducts)
			products.GET("/expired", controllers.GetExpiredProducts)
			products.GET("/stats", controllers.GetStockStats)
			products.POST("/bulk", controllers.BulkAddProducts)
			products.GET("/export", controllers.ExportProducts)
			products.POST("/import", controllers.ImportProducts)
			products.DELETE("", controllers.ClearAllProducts)
			products.GET("/:id", controllers.GetProduct)
			products.PUT("/:id", controllers.UpdateProduct)
			products.DELETE("/:id", controllers.DeleteProduct)
		}

		// Stock adjustment
		api.POST("/stock/adjust", controllers.AdjustStock)

		// Purchase routes
		purchases := api.Group("/purchases")
		{
			purchases.POST("", controllers.CreatePurchaseInvoice)
			purchases.GET("", controllers.GetPurchaseInvoices)
			purchases.GET("/:invoiceNo", controllers.GetPurchaseInvoice)
			purchases.GET("/:invoiceNo/remaining", controllers.GetRemainingView)
			purchases.GET("/:invoiceNo/returns", controllers.GetPurchaseReturns)
			purchases.POST("/:invoiceNo/returns", controllers.ProcessPurchaseReturn)
			purchases.DELETE("/:invoiceNo", controllers.DeletePurchaseInvoice)
		}

		// Sales routes
		sales := api.Group("/sales")
		{
			sales.POST("", controllers.SaveSalesInvoice)
			sales.GET("", controllers.QuerySalesRange)
			sales.GET("/:id", controllers.GetSalesInvoice)
			sales.POST("/:id/returns", controllers.ApplySalesReturn)
			sales.DELETE("/:id", controllers.DeleteSalesInvoice)
		}
	}

	return r
}
