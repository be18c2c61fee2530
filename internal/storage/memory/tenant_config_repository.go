package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// tenantConfigRepositoryInMemory — in-memory реализация TenantConfigRepository.
type tenantConfigRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.TenantConfig
}

// NewTenantConfigRepository возвращает in-memory репозиторий настроек тенантов.
func NewTenantConfigRepository() domain.TenantConfigRepository {
	return &tenantConfigRepositoryInMemory{
		items: make(map[string]domain.TenantConfig),
	}
}

// Get возвращает конфигурацию сайта или ErrTenantConfigNotFound.
func (r *tenantConfigRepositoryInMemory) Get(siteID string) (domain.TenantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.items[siteID]
	if !ok {
		return domain.TenantConfig{}, domain.ErrTenantConfigNotFound
	}
	return cfg, nil
}

// Save перезаписывает конфигурацию сайта целиком.
func (r *tenantConfigRepositoryInMemory) Save(cfg domain.TenantConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg.UpdatedAt = time.Now().UTC()
	r.items[cfg.SiteID] = cfg
	return nil
}

var _ domain.TenantConfigRepository = (*tenantConfigRepositoryInMemory)(nil)
