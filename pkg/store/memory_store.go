package store

import (
	"sync"
	"time"

	"stockpilot-api/pkg/models"

	"github.com/google/uuid"
)

// MemoryStore はSalesStoreのインメモリ実装です。
// プロセス内に全データを保持し、RWMutexで並行アクセスから保護します。
type MemoryStore struct {
	mu            sync.RWMutex
	businesses    map[string]models.Business
	orders        map[string][]models.OrderRecord
	lines         map[string][]models.OrderLineRecord
	products      map[string][]models.ProductInfo
	optimizations map[string][]models.StoredOptimization
}

// Verify interface compliance
var _ SalesStore = (*MemoryStore)(nil)

// NewMemoryStore は新しいMemoryStoreを生成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		businesses:    make(map[string]models.Business),
		orders:        make(map[string][]models.OrderRecord),
		lines:         make(map[string][]models.OrderLineRecord),
		products:      make(map[string][]models.ProductInfo),
		optimizations: make(map[string][]models.StoredOptimization),
	}
}

// CreateBusiness 新しい事業者を登録しIDを払い出す
func (s *MemoryStore) CreateBusiness(name string, availableCapital float64) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	business := models.Business{
		ID:               uuid.NewString(),
		Name:             name,
		AvailableCapital: availableCapital,
		CreatedAt:        time.Now(),
	}
	s.businesses[business.ID] = business
	return &business, nil
}

// GetBusiness 事業者を取得する。存在しない場合はErrBusinessNotFound。
func (s *MemoryStore) GetBusiness(businessID string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	business, ok := s.businesses[businessID]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &business, nil
}

// ListBusinesses 登録済みの事業者一覧を返す
func (s *MemoryStore) ListBusinesses() []models.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		list = append(list, b)
	}
	return list
}

// ImportSales 受注・明細・製品マスタを事業者のデータへ追加する
func (s *MemoryStore) ImportSales(businessID string, orders []models.OrderRecord, lines []models.OrderLineRecord, products []models.ProductInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.businesses[businessID]; !ok {
		return ErrBusinessNotFound
	}

	s.orders[businessID] = append(s.orders[businessID], orders...)
	s.lines[businessID] = append(s.lines[businessID], lines...)
	s.products[businessID] = append(s.products[businessID], products...)
	return nil
}

// GetOrders 事業者の受注一覧を返す
func (s *MemoryStore) GetOrders(businessID string) ([]models.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.businesses[businessID]; !ok {
		return nil, ErrBusinessNotFound
	}
	return append([]models.OrderRecord(nil), s.orders[businessID]...), nil
}

// GetOrderLines 事業者の受注明細一覧を返す
func (s *MemoryStore) GetOrderLines(businessID string) ([]models.OrderLineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.businesses[businessID]; !ok {
		return nil, ErrBusinessNotFound
	}
	return append([]models.OrderLineRecord(nil), s.lines[businessID]...), nil
}

// GetProducts 事業者の製品マスタ一覧を返す
func (s *MemoryStore) GetProducts(businessID string) ([]models.ProductInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.businesses[businessID]; !ok {
		return nil, ErrBusinessNotFound
	}
	return append([]models.ProductInfo(nil), s.products[businessID]...), nil
}

// SaveOptimization 最適化結果を保存する
func (s *MemoryStore) SaveOptimization(record models.StoredOptimization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.businesses[record.BusinessID]; !ok {
		return ErrBusinessNotFound
	}
	s.optimizations[record.BusinessID] = append(s.optimizations[record.BusinessID], record)
	return nil
}

// GetActiveOptimizations 有効期限内の最適化結果を新しい順で返す
func (s *MemoryStore) GetActiveOptimizations(businessID string, now time.Time) ([]models.StoredOptimization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.businesses[businessID]; !ok {
		return nil, ErrBusinessNotFound
	}

	var active []models.StoredOptimization
	records := s.optimizations[businessID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ExpiresAt.After(now) {
			active = append(active, records[i])
		}
	}
	return active, nil
}
