package handlers

import (
	"errors"
	"net/http"
	"time"

	"stockpilot-api/pkg/services"
	"stockpilot-api/pkg/store"

	"github.com/gin-gonic/gin"
)

// InventoryHandler AI在庫最適化ハンドラー
type InventoryHandler struct {
	store               store.SalesStore
	optimizationService *services.InventoryOptimizationService
}

// NewInventoryHandler 新しい在庫最適化ハンドラーを作成
func NewInventoryHandler(salesStore store.SalesStore, optimizationService *services.InventoryOptimizationService) *InventoryHandler {
	return &InventoryHandler{
		store:               salesStore,
		optimizationService: optimizationService,
	}
}

// Optimize 事業者の在庫最適化を実行
func (ih *InventoryHandler) Optimize(c *gin.Context) {
	businessID := c.Param("businessId")

	business, err := ih.store.GetBusiness(businessID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "事業者が見つかりません: " + businessID,
		})
		return
	}

	record, err := ih.optimizationService.Optimize(c.Request.Context(), businessID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "在庫最適化の実行に失敗しました: " + err.Error(),
		})
		return
	}

	products, _ := ih.store.GetProducts(businessID)
	lines, _ := ih.store.GetOrderLines(businessID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"business": gin.H{
			"id":   business.ID,
			"name": business.Name,
		},
		"optimization": record.Results,
		"metadata": gin.H{
			"products_analyzed": len(products),
			"sales_records":     len(lines),
			"available_capital": business.AvailableCapital,
			"timestamp":         record.CreatedAt.Format(time.RFC3339),
			"expires_at":        record.ExpiresAt.Format(time.RFC3339),
		},
	})
}

// GetResults 有効期限内の最適化結果を取得
func (ih *InventoryHandler) GetResults(c *gin.Context) {
	businessID := c.Param("businessId")

	results, err := ih.store.GetActiveOptimizations(businessID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "事業者が見つかりません: " + businessID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "最適化結果の取得に失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
		"count":   len(results),
	})
}

// GetStats 在庫統計を取得
func (ih *InventoryHandler) GetStats(c *gin.Context) {
	businessID := c.Param("businessId")

	stats, err := ih.optimizationService.ComputeInventoryStats(businessID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "事業者が見つかりません: " + businessID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "在庫統計の算出に失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}
