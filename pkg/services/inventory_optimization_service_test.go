package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"stockpilot-api/pkg/groq"
	"stockpilot-api/pkg/metrics"
	"stockpilot-api/pkg/models"
	"stockpilot-api/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatCompleter テスト用のChatCompleter実装。
// 固定の本文を返し、受け取ったメッセージを記録する。
type fakeChatCompleter struct {
	content     string
	err         error
	gotMessages []groq.ChatMessage
}

func (f *fakeChatCompleter) ChatCompletion(ctx context.Context, messages []groq.ChatMessage, maxTokens int, temperature float32) (*groq.ChatCompletionResponse, error) {
	f.gotMessages = messages
	if f.err != nil {
		return nil, f.err
	}

	payload := map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": f.content,
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)

	var resp groq.ChatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"jsonフェンス付き", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"言語指定なしフェンス", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"フェンスなし", `{"a": 1}`, `{"a": 1}`},
		{"前後の空白", "  {\"a\": 1}\n", `{"a": 1}`},
		{"フェンス前後に説明文", "結果は以下です。\n```json\n{\"a\": 1}\n```\n以上。", `{"a": 1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractJSON(tc.input))
		})
	}
}

func TestBuildSalesSummary(t *testing.T) {
	service := NewInventoryOptimizationService(nil, nil, nil)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	orders := []models.OrderRecord{
		{OrderID: "recent", OrderDate: "2024-05-20"},
		{OrderID: "stale", OrderDate: "2024-01-10"},
	}
	lines := []models.OrderLineRecord{
		{OrderID: "recent", ProductID: "fresh", LineTotal: 100},
		{OrderID: "stale", ProductID: "dead", LineTotal: 60},
		{OrderID: "recent", ProductID: "fresh", LineTotal: 50},
	}
	products := []models.ProductInfo{
		{ProductID: "fresh", ProductName: "新鮮な商品", UnitPrice: 10},
	}

	summaries := service.BuildSalesSummary(orders, lines, products, now)

	require.Len(t, summaries, 2)

	fresh := summaries[0]
	assert.Equal(t, "fresh", fresh.ProductID)
	assert.Equal(t, "新鮮な商品", fresh.ProductName)
	assert.InDelta(t, 15.0, fresh.TotalUnits, 1e-9)
	assert.InDelta(t, 150.0, fresh.TotalRevenue, 1e-9)
	assert.Equal(t, "2024-05-20", fresh.LastSaleDate)
	assert.False(t, fresh.IsDeadStock)

	// 最終販売が60日以上前の製品は不動在庫。マスタに無いので表示名はID。
	dead := summaries[1]
	assert.Equal(t, "dead", dead.ProductID)
	assert.Equal(t, "dead", dead.ProductName)
	assert.True(t, dead.IsDeadStock)
}

func TestBuildCoPurchases(t *testing.T) {
	service := NewInventoryOptimizationService(nil, nil, nil)

	// o1: A+B、o2: A+B+C、o3: A単独。同一受注内の重複明細は1回と数える。
	lines := []models.OrderLineRecord{
		{OrderID: "o1", ProductID: "A", LineTotal: 10},
		{OrderID: "o1", ProductID: "B", LineTotal: 10},
		{OrderID: "o1", ProductID: "B", LineTotal: 10},
		{OrderID: "o2", ProductID: "A", LineTotal: 10},
		{OrderID: "o2", ProductID: "B", LineTotal: 10},
		{OrderID: "o2", ProductID: "C", LineTotal: 10},
		{OrderID: "o3", ProductID: "A", LineTotal: 10},
	}

	pairs := service.BuildCoPurchases(lines)

	require.Len(t, pairs, 3)
	assert.Equal(t, models.CoPurchasePair{ProductA: "A", ProductB: "B", TimesPurchasedTogether: 2}, pairs[0])
	assert.Equal(t, models.CoPurchasePair{ProductA: "A", ProductB: "C", TimesPurchasedTogether: 1}, pairs[1])
	assert.Equal(t, models.CoPurchasePair{ProductA: "B", ProductB: "C", TimesPurchasedTogether: 1}, pairs[2])
}

func TestOptimizeEndToEnd(t *testing.T) {
	salesStore := store.NewMemoryStore()
	business, err := salesStore.CreateBusiness("テスト商店", 5000)
	require.NoError(t, err)

	err = salesStore.ImportSales(business.ID,
		[]models.OrderRecord{{OrderID: "o1", OrderDate: "2024-05-01"}},
		[]models.OrderLineRecord{{OrderID: "o1", ProductID: "P1", LineTotal: 100}},
		[]models.ProductInfo{{ProductID: "P1", ProductName: "商品1", UnitPrice: 10, CurrentStock: 5}},
	)
	require.NoError(t, err)

	aiResponse := "```json\n" + `{
  "forecast": [{"product_id": "P1", "product_name": "商品1", "demand_forecast_units": 12, "confidence_score": 0.8}],
  "reorder_plan": [{"product_id": "P1", "product_name": "商品1", "current_status": "low", "reorder_point": 3, "reorder_quantity": 10, "estimated_cost": 100, "priority": "high", "rationale": "在庫僅少"}],
  "dead_stock": [],
  "bundles": [],
  "seasonal_recommendations": [],
  "summary": {"total_capital_required": 100, "expected_roi": 1.5, "risk_level": "low", "key_insights": ["発注を優先"]}
}` + "\n```"

	fake := &fakeChatCompleter{content: aiResponse}
	service := NewInventoryOptimizationService(fake, salesStore, metrics.NewRegistry())

	record, err := service.Optimize(context.Background(), business.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, business.ID, record.BusinessID)
	assert.Equal(t, record.CreatedAt.Add(OptimizationTTL), record.ExpiresAt)
	require.Len(t, record.Results.Forecast, 1)
	assert.Equal(t, "P1", record.Results.Forecast[0].ProductID)
	assert.Equal(t, "low", record.Results.Summary.RiskLevel)

	// プロンプトにはsystemとuserの2メッセージが渡される
	require.Len(t, fake.gotMessages, 2)
	assert.Equal(t, "system", fake.gotMessages[0].Role)
	assert.Contains(t, fake.gotMessages[1].Content, "テスト商店")

	// 保存された結果は有効な最適化として取得できる
	active, err := salesStore.GetActiveOptimizations(business.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, record.ID, active[0].ID)
}

func TestOptimizeUnknownBusiness(t *testing.T) {
	service := NewInventoryOptimizationService(&fakeChatCompleter{}, store.NewMemoryStore(), nil)

	_, err := service.Optimize(context.Background(), "missing")

	assert.ErrorIs(t, err, store.ErrBusinessNotFound)
}

func TestOptimizeInvalidAIResponse(t *testing.T) {
	salesStore := store.NewMemoryStore()
	business, err := salesStore.CreateBusiness("テスト商店", 1000)
	require.NoError(t, err)

	fake := &fakeChatCompleter{content: "これはJSONではありません"}
	service := NewInventoryOptimizationService(fake, salesStore, nil)

	_, err = service.Optimize(context.Background(), business.ID)

	assert.Error(t, err)
}

func TestOptimizeAIFailure(t *testing.T) {
	salesStore := store.NewMemoryStore()
	business, err := salesStore.CreateBusiness("テスト商店", 1000)
	require.NoError(t, err)

	fake := &fakeChatCompleter{err: fmt.Errorf("接続タイムアウト")}
	service := NewInventoryOptimizationService(fake, salesStore, nil)

	_, err = service.Optimize(context.Background(), business.ID)

	assert.Error(t, err)
}

func TestComputeInventoryStats(t *testing.T) {
	salesStore := store.NewMemoryStore()
	business, err := salesStore.CreateBusiness("テスト商店", 1000)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	err = salesStore.ImportSales(business.ID,
		[]models.OrderRecord{
			{OrderID: "o1", OrderDate: "2024-05-25"},
			{OrderID: "o2", OrderDate: "2023-12-01"},
		},
		[]models.OrderLineRecord{
			{OrderID: "o1", ProductID: "fresh", LineTotal: 100},
			{OrderID: "o2", ProductID: "dead", LineTotal: 60},
		},
		[]models.ProductInfo{
			{ProductID: "fresh", ProductName: "売れ筋", UnitPrice: 19.99, CurrentStock: 3},
			{ProductID: "dead", ProductName: "不動在庫", UnitPrice: 5, CurrentStock: 10},
		},
	)
	require.NoError(t, err)

	// 有効な最適化結果が fresh の再発注を推奨している状態
	err = salesStore.SaveOptimization(models.StoredOptimization{
		ID:         "opt-1",
		BusinessID: business.ID,
		Results: models.OptimizationResult{
			ReorderPlan: []models.ReorderItem{{ProductID: "fresh"}},
		},
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	service := NewInventoryOptimizationService(nil, salesStore, nil)
	stats, err := service.ComputeInventoryStats(business.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.NeedReorder)
	assert.Equal(t, 1, stats.DeadStock)
	assert.Equal(t, 0, stats.OptimalStock)
	// 19.99*3 + 5*10 = 109.97（decimal合算なので誤差なし）
	assert.Equal(t, 109.97, stats.StockValue)
}
