// Пакет catalog содержит заглушку внешнего каталога товаров.
// В production каталогом владеет платформа сайтов; ядро читает его
// только для валидации цен и остатков.
package catalog

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockService — конфигурируемая in-memory реализация CatalogService
// для тестов и локальной разработки.
type MockService struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	Err      error

	Calls int
}

// NewMockService возвращает пустой каталог.
func NewMockService() *MockService {
	return &MockService{products: make(map[string]domain.Product)}
}

// Put добавляет или обновляет товар сайта.
func (m *MockService) Put(siteID string, product domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[siteID+"/"+product.ID] = product
}

// Product возвращает товар сайта или ErrProductNotFound.
func (m *MockService) Product(siteID, productID string) (domain.Product, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.Err != nil {
		return domain.Product{}, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	product, ok := m.products[siteID+"/"+productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

var _ domain.CatalogService = (*MockService)(nil)
