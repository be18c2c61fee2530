package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type processedEventRepository struct {
	db *sql.DB
}

// NewProcessedEventRepository создаёт PostgreSQL-реализацию ProcessedEventRepository.
func NewProcessedEventRepository(store *Store) domain.ProcessedEventRepository {
	return &processedEventRepository{db: store.DB()}
}

// Begin атомарно регистрирует событие перед обработкой. Upsert не затрагивает
// завершённые записи, поэтому повторная доставка применённого события
// возвращает ErrEventAlreadyProcessed.
func (r *processedEventRepository) Begin(eventID string, ttlAt time.Time) error {
	if eventID == "" {
		return domain.ErrEventIDRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(72 * time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO processed_events (event_id, status, ttl_at, created_at, updated_at)
		VALUES ($1, 'processing', $2, $3, $3)
		ON CONFLICT (event_id) DO UPDATE
		SET status = 'processing',
		    updated_at = EXCLUDED.updated_at
		WHERE processed_events.status <> 'done'
		RETURNING event_id
	`, eventID, ttlAt, now).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrEventAlreadyProcessed
		}
		return fmt.Errorf("begin processed event: %w", err)
	}

	return nil
}

func (r *processedEventRepository) MarkDone(eventID string) error {
	return r.markStatus(eventID, "done")
}

func (r *processedEventRepository) MarkFailed(eventID string) error {
	return r.markStatus(eventID, "failed")
}

func (r *processedEventRepository) markStatus(eventID, status string) error {
	if eventID == "" {
		return domain.ErrEventIDRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE processed_events
		SET status = $2,
		    updated_at = $3
		WHERE event_id = $1
	`, eventID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark processed event %s: %w", status, err)
	}

	return nil
}

func (r *processedEventRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)

	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE event_id IN (
				SELECT event_id
				FROM processed_events
				WHERE ttl_at <= $1
				ORDER BY ttl_at ASC
				LIMIT $2
			)
		`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM processed_events
			WHERE ttl_at <= $1
		`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired processed events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("processed events rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.ProcessedEventRepository = (*processedEventRepository)(nil)
