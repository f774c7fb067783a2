package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"stockpilot-api/pkg/groq"
	"stockpilot-api/pkg/metrics"
	"stockpilot-api/pkg/models"
	"stockpilot-api/pkg/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeadStockDays 最終販売日からこの日数を超えて売上が無い製品を不動在庫と判定する
const DeadStockDays = 60

// OptimizationTTL 保存された最適化結果の有効期間
const OptimizationTTL = 24 * time.Hour

// プロンプトに含めるデータ件数の上限（トークン節約）
const (
	maxPromptProducts    = 50
	maxPromptCoPurchases = 10
)

// ChatCompleter はチャット補完APIの呼び出し契約です。groq.Clientが実装します。
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, messages []groq.ChatMessage, maxTokens int, temperature float32) (*groq.ChatCompletionResponse, error)
}

// InventoryOptimizationService AIによる在庫最適化サービス
type InventoryOptimizationService struct {
	ai      ChatCompleter
	store   store.SalesStore
	metrics *metrics.Registry
}

// NewInventoryOptimizationService 新しい在庫最適化サービスを作成
func NewInventoryOptimizationService(ai ChatCompleter, salesStore store.SalesStore, reg *metrics.Registry) *InventoryOptimizationService {
	return &InventoryOptimizationService{
		ai:      ai,
		store:   salesStore,
		metrics: reg,
	}
}

// BuildSalesSummary 受注と明細から製品別の販売サマリーを構築する。
// 日付がパースできない明細は販売数・売上には計上するが最終販売日には反映しない。
func (ios *InventoryOptimizationService) BuildSalesSummary(
	orders []models.OrderRecord,
	lines []models.OrderLineRecord,
	products []models.ProductInfo,
	now time.Time,
) []models.ProductSalesSummary {
	orderDates := make(map[string]string, len(orders))
	for _, o := range orders {
		orderDates[o.OrderID] = o.OrderDate
	}

	productInfo := make(map[string]models.ProductInfo, len(products))
	for _, p := range products {
		productInfo[p.ProductID] = p
	}

	type tally struct {
		units    float64
		revenue  float64
		lastSale time.Time
	}
	tallies := make(map[string]*tally)
	var order []string

	for _, line := range lines {
		t, ok := tallies[line.ProductID]
		if !ok {
			t = &tally{}
			tallies[line.ProductID] = t
			order = append(order, line.ProductID)
		}

		info := productInfo[line.ProductID]
		units := 1.0
		if info.UnitPrice > 0 {
			units = line.LineTotal / info.UnitPrice
			if units < 0 {
				units = 0
			}
		}
		t.units += units
		t.revenue += line.LineTotal

		if dateStr, ok := orderDates[line.OrderID]; ok {
			if saleDate, ok := parseOrderDate(dateStr); ok && saleDate.After(t.lastSale) {
				t.lastSale = saleDate
			}
		}
	}

	deadline := now.AddDate(0, 0, -DeadStockDays)
	summaries := make([]models.ProductSalesSummary, 0, len(tallies))
	for _, pid := range order {
		t := tallies[pid]
		name := productInfo[pid].ProductName
		if name == "" {
			name = pid
		}

		lastSale := ""
		if !t.lastSale.IsZero() {
			lastSale = t.lastSale.Format("2006-01-02")
		}

		summaries = append(summaries, models.ProductSalesSummary{
			ProductID:    pid,
			ProductName:  name,
			TotalUnits:   t.units,
			TotalRevenue: t.revenue,
			LastSaleDate: lastSale,
			IsDeadStock:  t.lastSale.IsZero() || t.lastSale.Before(deadline),
		})
	}
	return summaries
}

// BuildCoPurchases 同一受注に含まれる製品ペアの共起回数を集計し、回数の降順で返す
func (ios *InventoryOptimizationService) BuildCoPurchases(lines []models.OrderLineRecord) []models.CoPurchasePair {
	// 受注ID -> 重複を除いた製品集合
	orderProducts := make(map[string][]string)
	for _, line := range lines {
		seen := false
		for _, pid := range orderProducts[line.OrderID] {
			if pid == line.ProductID {
				seen = true
				break
			}
		}
		if !seen {
			orderProducts[line.OrderID] = append(orderProducts[line.OrderID], line.ProductID)
		}
	}

	pairCounts := make(map[[2]string]int)
	for _, pids := range orderProducts {
		sort.Strings(pids)
		for i := 0; i < len(pids); i++ {
			for j := i + 1; j < len(pids); j++ {
				pairCounts[[2]string{pids[i], pids[j]}]++
			}
		}
	}

	pairs := make([]models.CoPurchasePair, 0, len(pairCounts))
	for key, count := range pairCounts {
		pairs = append(pairs, models.CoPurchasePair{
			ProductA:               key[0],
			ProductB:               key[1],
			TimesPurchasedTogether: count,
		})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].TimesPurchasedTogether != pairs[j].TimesPurchasedTogether {
			return pairs[i].TimesPurchasedTogether > pairs[j].TimesPurchasedTogether
		}
		if pairs[i].ProductA != pairs[j].ProductA {
			return pairs[i].ProductA < pairs[j].ProductA
		}
		return pairs[i].ProductB < pairs[j].ProductB
	})
	return pairs
}

// buildOptimizationPrompt 最適化用のプロンプトを構築する
func (ios *InventoryOptimizationService) buildOptimizationPrompt(
	business *models.Business,
	products []models.ProductInfo,
	summaries []models.ProductSalesSummary,
	coPurchases []models.CoPurchasePair,
) string {
	if len(products) > maxPromptProducts {
		products = products[:maxPromptProducts]
	}
	if len(summaries) > maxPromptProducts {
		summaries = summaries[:maxPromptProducts]
	}
	if len(coPurchases) > maxPromptCoPurchases {
		coPurchases = coPurchases[:maxPromptCoPurchases]
	}

	productsJSON, _ := json.MarshalIndent(products, "", "  ")
	summariesJSON, _ := json.MarshalIndent(summaries, "", "  ")
	coPurchasesJSON, _ := json.MarshalIndent(coPurchases, "", "  ")

	var b strings.Builder
	b.WriteString("あなたは在庫最適化の専門家AIです。以下の事業データを分析し、実行可能な推奨事項を提示してください。\n\n")
	fmt.Fprintf(&b, "## 事業コンテキスト\n- 事業者名: %s\n- 利用可能資金: $%.2f\n\n", business.Name, business.AvailableCapital)
	fmt.Fprintf(&b, "## 製品在庫（%d件）\n%s\n\n", len(products), productsJSON)
	fmt.Fprintf(&b, "## 販売実績サマリー\n%s\n\n", summariesJSON)
	fmt.Fprintf(&b, "## 同時購入された製品ペア\n%s\n\n", coPurchasesJSON)
	b.WriteString(`## タスク
1. 需要予測: 販売実績から各製品の30日需要を予測する（季節性・トレンドを考慮）
2. 再発注最適化: 利用可能資金と需要変動を考慮した再発注点・数量の算出
3. 不動在庫の特定: 60日以上売上のない製品への値引率（5-30%）の提案
4. バンドル提案: 同時購入パターンに基づく3-5件の利益的なバンドル
5. 季節調整: 該当する場合の季節的な在庫調整の推奨

## 出力形式（厳密なJSON）
{
  "forecast": [{"product_id": "string", "product_name": "string", "demand_forecast_units": number, "confidence_score": number}],
  "reorder_plan": [{"product_id": "string", "product_name": "string", "current_status": "string", "reorder_point": number, "reorder_quantity": number, "estimated_cost": number, "priority": "high|medium|low", "rationale": "string"}],
  "dead_stock": [{"product_id": "string", "product_name": "string", "last_sale_date": "string", "clearance_discount": number, "estimated_loss": number, "action": "string"}],
  "bundles": [{"bundle_name": "string", "product_ids": ["string"], "product_names": ["string"], "bundle_price": number, "estimated_margin": number, "rationale": "string", "copurchase_frequency": number}],
  "seasonal_recommendations": [{"action": "increase|decrease|maintain", "category": "string", "percentage_change": number, "rationale": "string"}],
  "summary": {"total_capital_required": number, "expected_roi": number, "risk_level": "low|medium|high", "key_insights": ["string"]}
}

マークダウンや説明文を含めず、有効なJSONのみを返してください。`)
	return b.String()
}

// jsonFencePattern コードフェンスで囲まれたJSON本文を抜き出すためのパターン
var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON モデル出力からJSON本文を取り出す。
// マークダウンのコードフェンスで包まれている場合は中身のみを返す。
func ExtractJSON(content string) string {
	if match := jsonFencePattern.FindStringSubmatch(content); match != nil {
		return match[1]
	}
	return strings.TrimSpace(content)
}

// Optimize 事業者の在庫最適化を実行し、解析済みの結果を保存して返す
func (ios *InventoryOptimizationService) Optimize(ctx context.Context, businessID string) (*models.StoredOptimization, error) {
	business, err := ios.store.GetBusiness(businessID)
	if err != nil {
		return nil, err
	}

	orders, err := ios.store.GetOrders(businessID)
	if err != nil {
		return nil, err
	}
	lines, err := ios.store.GetOrderLines(businessID)
	if err != nil {
		return nil, err
	}
	products, err := ios.store.GetProducts(businessID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := ios.BuildSalesSummary(orders, lines, products, now)
	coPurchases := ios.BuildCoPurchases(lines)
	prompt := ios.buildOptimizationPrompt(business, products, summaries, coPurchases)

	messages := []groq.ChatMessage{
		{Role: "system", Content: "あなたは厳密な在庫最適化AIです。常に有効なJSONのみを返してください。"},
		{Role: "user", Content: prompt},
	}

	resp, err := ios.ai.ChatCompletion(ctx, messages, 8000, 0.3)
	if err != nil {
		return nil, fmt.Errorf("在庫最適化AIの呼び出しに失敗: %w", err)
	}

	content, err := resp.FirstContent()
	if err != nil {
		return nil, err
	}

	var results models.OptimizationResult
	if err := json.Unmarshal([]byte(ExtractJSON(content)), &results); err != nil {
		return nil, fmt.Errorf("AIレスポンスのJSON解析に失敗: %w", err)
	}

	record := models.StoredOptimization{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Results:    results,
		CreatedAt:  now,
		ExpiresAt:  now.Add(OptimizationTTL),
	}
	if err := ios.store.SaveOptimization(record); err != nil {
		return nil, fmt.Errorf("最適化結果の保存に失敗: %w", err)
	}

	if ios.metrics != nil {
		ios.metrics.OptimizationRuns.Inc()
	}
	return &record, nil
}

// ComputeInventoryStats 在庫統計を算出する。
// 在庫評価額は金額の浮動小数点誤差を避けるためdecimalで合算する。
func (ios *InventoryOptimizationService) ComputeInventoryStats(businessID string, now time.Time) (*models.InventoryStats, error) {
	orders, err := ios.store.GetOrders(businessID)
	if err != nil {
		return nil, err
	}
	lines, err := ios.store.GetOrderLines(businessID)
	if err != nil {
		return nil, err
	}
	products, err := ios.store.GetProducts(businessID)
	if err != nil {
		return nil, err
	}

	summaries := ios.BuildSalesSummary(orders, lines, products, now)
	deadStock := 0
	for _, s := range summaries {
		if s.IsDeadStock {
			deadStock++
		}
	}

	// 有効な最適化結果のうち再発注計画を持つ製品数
	active, err := ios.store.GetActiveOptimizations(businessID, now)
	if err != nil {
		return nil, err
	}
	needReorder := make(map[string]bool)
	for _, record := range active {
		for _, item := range record.Results.ReorderPlan {
			needReorder[item.ProductID] = true
		}
	}

	stockValue := decimal.Zero
	for _, p := range products {
		value := decimal.NewFromFloat(p.UnitPrice).Mul(decimal.NewFromInt(int64(p.CurrentStock)))
		stockValue = stockValue.Add(value)
	}

	total := len(products)
	optimal := total - deadStock - len(needReorder)
	if optimal < 0 {
		optimal = 0
	}

	return &models.InventoryStats{
		TotalItems:   total,
		NeedReorder:  len(needReorder),
		DeadStock:    deadStock,
		OptimalStock: optimal,
		StockValue:   stockValue.InexactFloat64(),
	}, nil
}
