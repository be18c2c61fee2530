package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type eventStatus string

const (
	eventStatusProcessing eventStatus = "processing"
	eventStatusDone       eventStatus = "done"
	eventStatusFailed     eventStatus = "failed"
)

type eventRecord struct {
	status eventStatus
	ttlAt  time.Time
}

// processedEventRepositoryInMemory — in-memory реестр обработанных webhook-событий.
// Используется для дедупликации повторных доставок.
type processedEventRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]eventRecord
}

// NewProcessedEventRepository возвращает in-memory реализацию ProcessedEventRepository.
func NewProcessedEventRepository() domain.ProcessedEventRepository {
	return &processedEventRepositoryInMemory{
		items: make(map[string]eventRecord),
	}
}

// Begin регистрирует событие перед обработкой.
// Если событие уже завершено — возвращает ErrEventAlreadyProcessed.
// События в статусе processing или failed разрешено обрабатывать повторно.
func (r *processedEventRepositoryInMemory) Begin(eventID string, ttlAt time.Time) error {
	if eventID == "" {
		return domain.ErrEventIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.items[eventID]; ok && record.status == eventStatusDone {
		return domain.ErrEventAlreadyProcessed
	}

	r.items[eventID] = eventRecord{status: eventStatusProcessing, ttlAt: ttlAt}
	return nil
}

// MarkDone помечает событие успешно обработанным.
func (r *processedEventRepositoryInMemory) MarkDone(eventID string) error {
	return r.markStatus(eventID, eventStatusDone)
}

// MarkFailed помечает событие неуспешным, разрешая повторную доставку.
func (r *processedEventRepositoryInMemory) MarkFailed(eventID string) error {
	return r.markStatus(eventID, eventStatusFailed)
}

func (r *processedEventRepositoryInMemory) markStatus(eventID string, status eventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.items[eventID]
	if !ok {
		record = eventRecord{}
	}
	record.status = status
	r.items[eventID] = record
	return nil
}

// DeleteExpired удаляет записи с истёкшим TTL, не более limit за вызов.
func (r *processedEventRepositoryInMemory) DeleteExpired(now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, record := range r.items {
		if limit > 0 && deleted >= limit {
			break
		}
		if !record.ttlAt.IsZero() && record.ttlAt.Before(now) {
			delete(r.items, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepositoryInMemory)(nil)
