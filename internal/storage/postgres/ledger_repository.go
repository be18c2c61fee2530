package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type ledgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создаёт PostgreSQL-реализацию LedgerRepository.
func NewLedgerRepository(store *Store) domain.LedgerRepository {
	return &ledgerRepository{db: store.DB()}
}

func (r *ledgerRepository) Append(entry domain.FailedPaymentEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}

	// Повторная доставка события с тем же event_id не дублирует запись.
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_payments (
			id, site_id, event_id, payer_key, order_id, invoice_ref,
			amount_minor, currency, reason, attempt, failed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (event_id) WHERE event_id <> '' DO NOTHING
	`,
		entry.ID, entry.SiteID, entry.EventID, entry.PayerKey, entry.OrderID, entry.InvoiceRef,
		entry.AmountMinor, entry.Currency, entry.Reason, entry.Attempt, entry.FailedAt,
	); err != nil {
		return fmt.Errorf("append failed payment: %w", err)
	}

	return nil
}

func (r *ledgerRepository) ListByPayer(siteID, payerKey string, limit int) ([]domain.FailedPaymentEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, site_id, event_id, payer_key, order_id, invoice_ref,
		       amount_minor, currency, reason, attempt, failed_at
		FROM failed_payments
		WHERE site_id = $1 AND payer_key = $2
		ORDER BY failed_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $3", siteID, payerKey, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, siteID, payerKey)
	}
	if err != nil {
		return nil, fmt.Errorf("list failed payments: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.FailedPaymentEntry, 0)
	for rows.Next() {
		var entry domain.FailedPaymentEntry
		if err := rows.Scan(
			&entry.ID, &entry.SiteID, &entry.EventID, &entry.PayerKey, &entry.OrderID, &entry.InvoiceRef,
			&entry.AmountMinor, &entry.Currency, &entry.Reason, &entry.Attempt, &entry.FailedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed payment: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed payments: %w", err)
	}

	return entries, nil
}

var _ domain.LedgerRepository = (*ledgerRepository)(nil)
