package store

import (
	"errors"
	"time"

	"stockpilot-api/pkg/models"
)

// ErrBusinessNotFound 指定された事業者が存在しない場合に返されるエラー
var ErrBusinessNotFound = errors.New("business not found")

// SalesStore は事業者単位の販売データと最適化結果への読み書き契約です。
// 予測・集計の計算層はこのインターフェースの背後にあるストアの実装に依存しません。
type SalesStore interface {
	CreateBusiness(name string, availableCapital float64) (*models.Business, error)
	GetBusiness(businessID string) (*models.Business, error)
	ListBusinesses() []models.Business

	ImportSales(businessID string, orders []models.OrderRecord, lines []models.OrderLineRecord, products []models.ProductInfo) error
	GetOrders(businessID string) ([]models.OrderRecord, error)
	GetOrderLines(businessID string) ([]models.OrderLineRecord, error)
	GetProducts(businessID string) ([]models.ProductInfo, error)

	SaveOptimization(record models.StoredOptimization) error
	GetActiveOptimizations(businessID string, now time.Time) ([]models.StoredOptimization, error)
}
