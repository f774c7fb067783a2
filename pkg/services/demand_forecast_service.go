package services

import (
	"math"
	"sort"

	"stockpilot-api/pkg/models"
)

// DefaultSmoothingAlpha 指数平滑の平滑化係数のデフォルト値。
// 月次系列は短くノイズが多いため、直近への追従と過学習のバランスを取った中庸な値。
const DefaultSmoothingAlpha = 0.3

// 信頼度スコアの範囲と変動係数の重み
const (
	confidenceCeiling  = 0.95
	confidenceFloor    = 0.5
	volatilityPenaltyW = 0.35
)

// DemandForecastService 需要予測サービス
type DemandForecastService struct {
	aggregator *SalesAggregatorService
}

// NewDemandForecastService 新しい需要予測サービスを作成
func NewDemandForecastService(aggregator *SalesAggregatorService) *DemandForecastService {
	return &DemandForecastService{
		aggregator: aggregator,
	}
}

// ExponentialSmoothing 月次系列に対して単純指数平滑を適用し、
// 1期先の予測値（非負整数）と信頼度スコアを返す。
//
// 系列が空の場合は (0, 0.5) を返す。
// 信頼度は生値の変動係数（標本分散ベース）に基づくヒューリスティックで、
// [0.5, 0.95] にクランプし小数2桁へ丸める。較正済みの確率ではなく
// UI表示用のボラティリティ逆相関スコアである。
func (dfs *DemandForecastService) ExponentialSmoothing(series []models.MonthlySeriesPoint, alpha float64) (int, float64) {
	if len(series) == 0 {
		return 0, confidenceFloor
	}

	// 平滑化レベルを先頭値で初期化し、以降の点を順に取り込む
	s := series[0].EstimatedUnits
	for i := 1; i < len(series); i++ {
		y := series[i].EstimatedUnits
		s = alpha*y + (1-alpha)*s
	}

	forecast := math.Round(s)
	if forecast < 0 {
		forecast = 0
	}

	// 変動係数から信頼度を算出。分散は標本分散（n-1、ただしn=1のときは1で割る）。
	var sum float64
	for _, p := range series {
		sum += p.EstimatedUnits
	}
	mean := sum / float64(len(series))

	var sumSquaredDiff float64
	for _, p := range series {
		diff := p.EstimatedUnits - mean
		sumSquaredDiff += diff * diff
	}
	divisor := float64(len(series) - 1)
	if divisor < 1 {
		divisor = 1
	}
	variance := sumSquaredDiff / divisor
	std := math.Sqrt(variance)

	cv := 1.0
	if mean != 0 {
		cv = std / mean
	}

	confidence := confidenceCeiling - volatilityPenaltyW*cv
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}
	if confidence > confidenceCeiling {
		confidence = confidenceCeiling
	}
	confidence = math.Round(confidence*100) / 100

	return int(forecast), confidence
}

// GenerateForecast 受注・明細・製品マスタから製品別の需要予測リストを生成する。
// 結果は予測販売数の降順（同値は明細中の初出順を維持）でソートされる。
// 入力が空の場合は空のスライスを返す。
func (dfs *DemandForecastService) GenerateForecast(
	orders []models.OrderRecord,
	lines []models.OrderLineRecord,
	products []models.ProductInfo,
) ([]models.ProductForecast, models.AggregationSkips) {
	agg := dfs.aggregator.AggregateMonthlySales(orders, lines, products)

	// 製品名のルックアップ（マスタに無い製品はIDをそのまま表示名にする）
	productNames := make(map[string]string, len(products))
	for _, p := range products {
		productNames[p.ProductID] = p.ProductName
	}

	forecasts := make([]models.ProductForecast, 0, len(agg.Series))
	for _, pid := range agg.ProductOrder {
		units, confidence := dfs.ExponentialSmoothing(agg.Series[pid], DefaultSmoothingAlpha)

		name := productNames[pid]
		if name == "" {
			name = pid
		}

		forecasts = append(forecasts, models.ProductForecast{
			ProductID:           pid,
			ProductName:         name,
			DemandForecastUnits: units,
			ConfidenceScore:     confidence,
		})
	}

	sortForecastsByUnits(forecasts)
	return forecasts, agg.Skips
}

// sortForecastsByUnits 予測販売数の降順で安定ソートする
func sortForecastsByUnits(forecasts []models.ProductForecast) {
	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].DemandForecastUnits > forecasts[j].DemandForecastUnits
	})
}
