package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"stockpilot-api/pkg/metrics"
	"stockpilot-api/pkg/models"
	"stockpilot-api/pkg/services"
	"stockpilot-api/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ForecastHandler 需要予測ハンドラー
type ForecastHandler struct {
	store           store.SalesStore
	forecastService *services.DemandForecastService
	metrics         *metrics.Registry
}

// NewForecastHandler 新しい需要予測ハンドラーを作成
func NewForecastHandler(salesStore store.SalesStore, forecastService *services.DemandForecastService, reg *metrics.Registry) *ForecastHandler {
	return &ForecastHandler{
		store:           salesStore,
		forecastService: forecastService,
		metrics:         reg,
	}
}

// runForecast 事業者の販売データを読み込み予測パイプラインを実行する
func (fh *ForecastHandler) runForecast(businessID string) (*models.Business, []models.ProductForecast, models.AggregationSkips, error) {
	business, err := fh.store.GetBusiness(businessID)
	if err != nil {
		return nil, nil, models.AggregationSkips{}, err
	}

	orders, err := fh.store.GetOrders(businessID)
	if err != nil {
		return nil, nil, models.AggregationSkips{}, err
	}
	lines, err := fh.store.GetOrderLines(businessID)
	if err != nil {
		return nil, nil, models.AggregationSkips{}, err
	}
	products, err := fh.store.GetProducts(businessID)
	if err != nil {
		return nil, nil, models.AggregationSkips{}, err
	}

	start := time.Now()
	forecasts, skips := fh.forecastService.GenerateForecast(orders, lines, products)

	if fh.metrics != nil {
		fh.metrics.ForecastLatencySec.Observe(time.Since(start).Seconds())
		fh.metrics.ForecastsComputed.Add(float64(len(forecasts)))
		fh.metrics.LinesSkippedMissingOrder.Add(float64(skips.MissingOrder))
		fh.metrics.LinesSkippedInvalidDate.Add(float64(skips.InvalidDate))
	}

	return business, forecasts, skips, nil
}

// GenerateForecast 事業者の全製品に対する需要予測を生成
func (fh *ForecastHandler) GenerateForecast(c *gin.Context) {
	businessID := c.Param("businessId")

	business, forecasts, skips, err := fh.runForecast(businessID)
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "事業者が見つかりません: " + businessID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "販売データの読み込みに失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"business": gin.H{
			"id":   business.ID,
			"name": business.Name,
		},
		"forecast":      forecasts,
		"skipped_lines": skips,
	})
}

// ExportForecast 需要予測結果をExcelファイルとして出力
func (fh *ForecastHandler) ExportForecast(c *gin.Context) {
	businessID := c.Param("businessId")

	business, forecasts, _, err := fh.runForecast(businessID)
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "事業者が見つかりません: " + businessID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "販売データの読み込みに失敗しました: " + err.Error(),
		})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"製品ID", "製品名", "予測需要数", "信頼度"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, forecast := range forecasts {
		values := []interface{}{
			forecast.ProductID,
			forecast.ProductName,
			forecast.DemandForecastUnits,
			forecast.ConfidenceScore,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Excelファイルの生成に失敗しました: " + err.Error(),
		})
		return
	}

	fileName := fmt.Sprintf("forecast_%s_%s.xlsx", business.ID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
