package handlers

import (
	"errors"
	"net/http"

	"stockpilot-api/pkg/models"
	"stockpilot-api/pkg/store"

	"github.com/gin-gonic/gin"
)

// BusinessHandler 事業者と販売データ管理のハンドラー
type BusinessHandler struct {
	store store.SalesStore
}

// NewBusinessHandler 新しい事業者ハンドラーを作成
func NewBusinessHandler(salesStore store.SalesStore) *BusinessHandler {
	return &BusinessHandler{
		store: salesStore,
	}
}

// CreateBusiness 事業者を登録
func (bh *BusinessHandler) CreateBusiness(c *gin.Context) {
	var request models.CreateBusinessRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "リクエストの解析に失敗しました: " + err.Error(),
		})
		return
	}

	business, err := bh.store.CreateBusiness(request.Name, request.AvailableCapital)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "事業者の登録に失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"business": business,
	})
}

// ListBusinesses 登録済み事業者の一覧を取得
func (bh *BusinessHandler) ListBusinesses(c *gin.Context) {
	businesses := bh.store.ListBusinesses()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"businesses": businesses,
		"count":      len(businesses),
	})
}

// ImportSales 受注・明細・製品マスタを取り込む
func (bh *BusinessHandler) ImportSales(c *gin.Context) {
	var request models.ImportSalesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "リクエストの解析に失敗しました: " + err.Error(),
		})
		return
	}

	if err := bh.store.ImportSales(request.BusinessID, request.Orders, request.Lines, request.Products); err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "事業者が見つかりません: " + request.BusinessID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "販売データの取り込みに失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"orders":   len(request.Orders),
		"lines":    len(request.Lines),
		"products": len(request.Products),
	})
}
