package services

import (
	"fmt"
	"sort"
	"time"

	"stockpilot-api/pkg/models"
)

// orderDateLayouts 受注日のパースに試行するレイアウト。
// 取り込み元によって日時付き・日付のみ・スラッシュ区切りが混在する。
var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/1/2",
}

// SalesAggregatorService 受注明細を製品別の月次時系列へ集計するサービス
type SalesAggregatorService struct{}

// NewSalesAggregatorService 新しい集計サービスを作成
func NewSalesAggregatorService() *SalesAggregatorService {
	return &SalesAggregatorService{}
}

// MonthlySalesAggregate 集計結果。Seriesの各系列はMonthKey昇順。
// ProductOrderは明細中で製品が最初に現れた順を保持する。
type MonthlySalesAggregate struct {
	Series       map[string][]models.MonthlySeriesPoint
	ProductOrder []string
	Skips        models.AggregationSkips
}

// parseOrderDate 受注日文字列をパースする。形式不明の場合はfalseを返す。
func parseOrderDate(dateStr string) (time.Time, bool) {
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// monthKey 日付を"YYYY-MM"形式の月キーへ変換する
func monthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// AggregateMonthlySales 受注・明細・製品マスタから製品別の月次推定販売数系列を構築する。
//
// 明細の処理規則:
//   - 対応する受注が見つからない明細は除外（Skips.MissingOrderに計上）
//   - 受注日がパースできない明細は除外（Skips.InvalidDateに計上）
//   - 単価が正の場合は max(0, 明細金額/単価) を推定販売数とする
//   - 単価が不明または0以下の場合は1明細=1個として扱う
//
// エラーは返さない。不正データは上記の規則で除外またはデフォルト扱いとなる。
func (s *SalesAggregatorService) AggregateMonthlySales(
	orders []models.OrderRecord,
	lines []models.OrderLineRecord,
	products []models.ProductInfo,
) MonthlySalesAggregate {
	// 受注ID -> 受注日のルックアップを構築（重複IDは後勝ち）
	orderDates := make(map[string]string, len(orders))
	for _, o := range orders {
		orderDates[o.OrderID] = o.OrderDate
	}

	// 製品ID -> 単価のルックアップ
	unitPrices := make(map[string]float64, len(products))
	for _, p := range products {
		unitPrices[p.ProductID] = p.UnitPrice
	}

	// 製品ID -> 月キー -> 推定販売数の合計
	buckets := make(map[string]map[string]float64)
	var productOrder []string
	var skips models.AggregationSkips

	for _, line := range lines {
		dateStr, ok := orderDates[line.OrderID]
		if !ok {
			skips.MissingOrder++
			continue
		}

		t, ok := parseOrderDate(dateStr)
		if !ok {
			skips.InvalidDate++
			continue
		}
		mk := monthKey(t)

		// 単価から販売数を推定。返品等で明細金額が負の場合は0で下限を切る。
		price := unitPrices[line.ProductID]
		estimatedUnits := 1.0
		if price > 0 {
			estimatedUnits = line.LineTotal / price
			if estimatedUnits < 0 {
				estimatedUnits = 0
			}
		}

		if buckets[line.ProductID] == nil {
			buckets[line.ProductID] = make(map[string]float64)
			productOrder = append(productOrder, line.ProductID)
		}
		buckets[line.ProductID][mk] += estimatedUnits
	}

	// バケットを月キー昇順の系列へ変換する。
	// mapの列挙順には依存せず、必ず明示的にソートする。
	series := make(map[string][]models.MonthlySeriesPoint, len(buckets))
	for pid, monthly := range buckets {
		points := make([]models.MonthlySeriesPoint, 0, len(monthly))
		for mk, units := range monthly {
			points = append(points, models.MonthlySeriesPoint{
				MonthKey:       mk,
				EstimatedUnits: units,
			})
		}
		sort.Slice(points, func(i, j int) bool {
			return points[i].MonthKey < points[j].MonthKey
		})
		series[pid] = points
	}

	return MonthlySalesAggregate{
		Series:       series,
		ProductOrder: productOrder,
		Skips:        skips,
	}
}
