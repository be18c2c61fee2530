package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ledgerRepositoryInMemory — in-memory журнал неуспешных платежей.
type ledgerRepositoryInMemory struct {
	mu      sync.RWMutex
	entries []domain.FailedPaymentEntry
}

// NewLedgerRepository возвращает in-memory реализацию LedgerRepository.
func NewLedgerRepository() domain.LedgerRepository {
	return &ledgerRepositoryInMemory{}
}

// Append добавляет запись в журнал. Записи только добавляются, никогда
// не изменяются; повторная запись с тем же EventID — no-op.
func (r *ledgerRepositoryInMemory) Append(entry domain.FailedPaymentEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.EventID != "" {
		for _, existing := range r.entries {
			if existing.EventID == entry.EventID {
				return nil
			}
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

// ListByPayer возвращает записи плательщика сайта, от новых к старым.
func (r *ledgerRepositoryInMemory) ListByPayer(siteID, payerKey string, limit int) ([]domain.FailedPaymentEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.FailedPaymentEntry, 0)
	for _, entry := range r.entries {
		if entry.SiteID == siteID && entry.PayerKey == payerKey {
			result = append(result, entry)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.LedgerRepository = (*ledgerRepositoryInMemory)(nil)
