package main

import (
	"log"
	"net/http"

	config "stockpilot-api/configs"
	"stockpilot-api/pkg/groq"
	"stockpilot-api/pkg/handlers"
	"stockpilot-api/pkg/metrics"
	"stockpilot-api/pkg/services"
	"stockpilot-api/pkg/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// Ginルーターの初期化
	r := gin.Default()

	// 依存の初期化（グローバルを使わず、ここで一度だけ構築して注入する）
	metricsRegistry := metrics.NewRegistry()
	salesStore := store.NewMemoryStore()
	monitoringService := services.NewMonitoringService()
	groqClient := groq.NewClient(cfg.GroqEndpoint, cfg.GroqAPIKey, cfg.GroqModel)

	aggregatorService := services.NewSalesAggregatorService()
	forecastService := services.NewDemandForecastService(aggregatorService)
	optimizationService := services.NewInventoryOptimizationService(groqClient, salesStore, metricsRegistry)

	// ハンドラーの初期化
	businessHandler := handlers.NewBusinessHandler(salesStore)
	forecastHandler := handlers.NewForecastHandler(salesStore, forecastService, metricsRegistry)
	inventoryHandler := handlers.NewInventoryHandler(salesStore, optimizationService)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" || apiKey == "default_secret_key" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェック・メトリクスエンドポイント
	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(metricsRegistry.Handler()))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 事業者・販売データ管理API
		v1.POST("/businesses", businessHandler.CreateBusiness)
		v1.GET("/businesses", businessHandler.ListBusinesses)
		v1.POST("/sales/import", businessHandler.ImportSales)

		// 需要予測API
		forecast := v1.Group("/forecast")
		{
			forecast.GET("/generate/:businessId", forecastHandler.GenerateForecast)
			forecast.GET("/export/:businessId", forecastHandler.ExportForecast)
		}

		// AI在庫最適化API
		inventory := v1.Group("/inventory")
		{
			inventory.GET("/optimize/:businessId", inventoryHandler.Optimize)
			inventory.GET("/results/:businessId", inventoryHandler.GetResults)
			inventory.GET("/stats/:businessId", inventoryHandler.GetStats)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	log.Printf("Starting StockPilot API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
