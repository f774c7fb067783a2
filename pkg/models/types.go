package models

import "time"

// Business 事業者（テナント）情報
type Business struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AvailableCapital float64   `json:"available_capital"`
	CreatedAt        time.Time `json:"created_at"`
}

// OrderRecord 受注レコード（外部ストアから供給される生データ）
type OrderRecord struct {
	OrderID   string `json:"order_id"`
	OrderDate string `json:"order_date"` // 不正な形式の可能性あり
}

// OrderLineRecord 受注明細レコード
type OrderLineRecord struct {
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	LineTotal float64 `json:"line_total"`
}

// ProductInfo 製品マスタ情報（明細に対して欠落している場合がある）
type ProductInfo struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	UnitPrice    float64 `json:"unit_price"`
	CurrentStock int     `json:"current_stock"`
	Category     string  `json:"category,omitempty"`
}

// MonthlySeriesPoint 月次時系列の1点。MonthKeyは"YYYY-MM"形式で、
// 文字列の辞書順がそのまま時系列順になる。
type MonthlySeriesPoint struct {
	MonthKey       string  `json:"month_key"`
	EstimatedUnits float64 `json:"estimated_units"`
}

// ProductForecast 製品別の需要予測結果
type ProductForecast struct {
	ProductID           string  `json:"product_id"`
	ProductName         string  `json:"product_name"`
	DemandForecastUnits int     `json:"demand_forecast_units"`
	ConfidenceScore     float64 `json:"confidence_score"`
}

// AggregationSkips 集計時に除外された明細の内訳。
// 予測結果そのものには影響しない観測用のカウント。
type AggregationSkips struct {
	MissingOrder int `json:"missing_order"`
	InvalidDate  int `json:"invalid_date"`
}

// Total 除外明細の合計数を返す
func (s AggregationSkips) Total() int {
	return s.MissingOrder + s.InvalidDate
}

// ProductSalesSummary 製品別の販売サマリー（最適化プロンプト用）
type ProductSalesSummary struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	TotalUnits   float64 `json:"total_units"`
	TotalRevenue float64 `json:"total_revenue"`
	LastSaleDate string  `json:"last_sale_date"`
	IsDeadStock  bool    `json:"is_dead_stock"`
}

// CoPurchasePair 同一受注内で一緒に購入された製品ペア
type CoPurchasePair struct {
	ProductA               string `json:"product_a"`
	ProductB               string `json:"product_b"`
	TimesPurchasedTogether int    `json:"times_purchased_together"`
}

// AIForecastItem AI最適化レスポンスの需要予測項目
type AIForecastItem struct {
	ProductID           string  `json:"product_id"`
	ProductName         string  `json:"product_name"`
	DemandForecastUnits float64 `json:"demand_forecast_units"`
	ConfidenceScore     float64 `json:"confidence_score"`
}

// ReorderItem 再発注計画の項目
type ReorderItem struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	CurrentStatus   string  `json:"current_status"`
	ReorderPoint    float64 `json:"reorder_point"`
	ReorderQuantity float64 `json:"reorder_quantity"`
	EstimatedCost   float64 `json:"estimated_cost"`
	Priority        string  `json:"priority"`
	Rationale       string  `json:"rationale"`
}

// DeadStockItem 不動在庫の項目
type DeadStockItem struct {
	ProductID         string  `json:"product_id"`
	ProductName       string  `json:"product_name"`
	LastSaleDate      string  `json:"last_sale_date"`
	ClearanceDiscount float64 `json:"clearance_discount"`
	EstimatedLoss     float64 `json:"estimated_loss"`
	Action            string  `json:"action"`
}

// BundleItem バンドル販売の提案項目
type BundleItem struct {
	BundleName          string   `json:"bundle_name"`
	ProductIDs          []string `json:"product_ids"`
	ProductNames        []string `json:"product_names"`
	BundlePrice         float64  `json:"bundle_price"`
	EstimatedMargin     float64  `json:"estimated_margin"`
	Rationale           string   `json:"rationale"`
	CoPurchaseFrequency float64  `json:"copurchase_frequency"`
}

// SeasonalRecommendation 季節性に基づく在庫調整の提案
type SeasonalRecommendation struct {
	Action           string  `json:"action"`
	Category         string  `json:"category"`
	PercentageChange float64 `json:"percentage_change"`
	Rationale        string  `json:"rationale"`
}

// OptimizationSummary 最適化結果のサマリー
type OptimizationSummary struct {
	TotalCapitalRequired float64  `json:"total_capital_required"`
	ExpectedROI          float64  `json:"expected_roi"`
	RiskLevel            string   `json:"risk_level"`
	KeyInsights          []string `json:"key_insights"`
}

// OptimizationResult AI在庫最適化の解析済みレスポンス
type OptimizationResult struct {
	Forecast                []AIForecastItem         `json:"forecast"`
	ReorderPlan             []ReorderItem            `json:"reorder_plan"`
	DeadStock               []DeadStockItem          `json:"dead_stock"`
	Bundles                 []BundleItem             `json:"bundles"`
	SeasonalRecommendations []SeasonalRecommendation `json:"seasonal_recommendations"`
	Summary                 OptimizationSummary      `json:"summary"`
}

// StoredOptimization 保存された最適化結果。ExpiresAtを過ぎたものは返却対象外。
type StoredOptimization struct {
	ID         string             `json:"id"`
	BusinessID string             `json:"business_id"`
	Results    OptimizationResult `json:"results"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// InventoryStats 在庫統計
type InventoryStats struct {
	TotalItems   int     `json:"total_items"`
	NeedReorder  int     `json:"need_reorder"`
	DeadStock    int     `json:"dead_stock"`
	OptimalStock int     `json:"optimal_stock"`
	StockValue   float64 `json:"stock_value"`
}

// ImportSalesRequest 販売データ取り込みリクエスト
type ImportSalesRequest struct {
	BusinessID string            `json:"business_id" binding:"required"`
	Orders     []OrderRecord     `json:"orders"`
	Lines      []OrderLineRecord `json:"lines"`
	Products   []ProductInfo     `json:"products"`
}

// CreateBusinessRequest 事業者作成リクエスト
type CreateBusinessRequest struct {
	Name             string  `json:"name" binding:"required"`
	AvailableCapital float64 `json:"available_capital"`
}
