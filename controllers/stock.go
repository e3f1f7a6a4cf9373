// controllers/stock.go
package controllers

import (
	"errors"
	"net/http"

	"pharmabill-backend/config"
	"pharmabill-backend/models"
	"pharmabill-backend/utils"

	"github.com/gin-gonic/gin"
)

// AdjustStockInput defines the expected JSON structure for a stock adjustment
type AdjustStockInput struct {
	Code      string `json:"code" binding:"required"`
	Batch     string `json:"batch"`
	Qty       int    `json:"qty" binding:"required,min=1"`
	Direction string `json:"direction" binding:"required,oneof=increase decrease"`
}

// AdjustStock changes the on-hand quantity of the product matching the
// (code, batch) key. Decrease clamps at zero and still reports success; the
// caller can detect the clamp from newStock. A miss mutates nothing.
func AdjustStock(c *gin.Context) {
	var input AdjustStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	result, err := models.ApplyStockAdjustment(config.DB, input.Code, input.Batch, input.Qty, input.Direction)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to adjust stock")
		return
	}

	c.JSON(http.StatusOK, result)
}
