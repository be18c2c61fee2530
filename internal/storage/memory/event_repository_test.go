package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestProcessedEventRepository_Lifecycle(t *testing.T) {
	repo := memory.NewProcessedEventRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	if err := repo.Begin("", ttl); !errors.Is(err, domain.ErrEventIDRequired) {
		t.Fatalf("empty event id: expected ErrEventIDRequired, got %v", err)
	}

	if err := repo.Begin("evt-1", ttl); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// Незавершённая обработка допускает повтор.
	if err := repo.Begin("evt-1", ttl); err != nil {
		t.Fatalf("Begin retry while processing: %v", err)
	}

	if err := repo.MarkFailed("evt-1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	// Неуспешная обработка тоже допускает повтор.
	if err := repo.Begin("evt-1", ttl); err != nil {
		t.Fatalf("Begin retry after failure: %v", err)
	}

	if err := repo.MarkDone("evt-1"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	// Завершённое событие отсекается.
	if err := repo.Begin("evt-1", ttl); !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
}

func TestProcessedEventRepository_DeleteExpired(t *testing.T) {
	repo := memory.NewProcessedEventRepository()
	now := time.Now().UTC()

	if err := repo.Begin("old-1", now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := repo.Begin("old-2", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := repo.Begin("fresh", now.Add(time.Hour)); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	deleted, err := repo.DeleteExpired(now, 10)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	// Запись с живым TTL осталась и дальше отсекает дубликаты.
	if err := repo.MarkDone("fresh"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := repo.Begin("fresh", now.Add(time.Hour)); !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
	// Просроченная запись удалена: событие можно начать заново.
	if err := repo.Begin("old-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("expired event must be reusable, got %v", err)
	}
}

func TestProcessedEventRepository_DeleteExpiredLimit(t *testing.T) {
	repo := memory.NewProcessedEventRepository()
	now := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Begin(id, now.Add(-time.Hour)); err != nil {
			t.Fatalf("Begin %s: %v", id, err)
		}
	}

	deleted, err := repo.DeleteExpired(now, 2)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want batch limit 2", deleted)
	}

	deleted, err = repo.DeleteExpired(now, 2)
	if err != nil {
		t.Fatalf("DeleteExpired second batch: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want remaining 1", deleted)
	}
}
