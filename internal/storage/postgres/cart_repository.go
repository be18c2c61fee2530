package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

// cartItemRecord — представление позиции корзины в JSONB-колонке.
type cartItemRecord struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Title          string `json:"title"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

func encodeCartItems(items []domain.CartItem) ([]byte, error) {
	records := make([]cartItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, cartItemRecord{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          item.Title,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return json.Marshal(records)
}

func decodeCartItems(raw []byte) ([]domain.CartItem, error) {
	if len(raw) == 0 {
		return []domain.CartItem{}, nil
	}
	var records []cartItemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	items := make([]domain.CartItem, 0, len(records))
	for _, rec := range records {
		items = append(items, domain.CartItem{
			ProductID:      rec.ProductID,
			VariantID:      rec.VariantID,
			Title:          rec.Title,
			Qty:            rec.Qty,
			UnitPriceMinor: rec.UnitPriceMinor,
		})
	}
	return items, nil
}

func (r *cartRepository) Get(siteID, ownerKey string) (domain.Cart, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		cart     domain.Cart
		itemsRaw []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT site_id, owner_key, currency, items, total_minor, created_at, updated_at
		FROM carts
		WHERE site_id = $1 AND owner_key = $2
	`, siteID, ownerKey).Scan(
		&cart.SiteID, &cart.OwnerKey, &cart.Currency, &itemsRaw,
		&cart.TotalMinor, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, false, nil
		}
		return domain.Cart{}, false, fmt.Errorf("select cart: %w", err)
	}

	items, err := decodeCartItems(itemsRaw)
	if err != nil {
		return domain.Cart{}, false, err
	}
	cart.Items = items

	return cart, true, nil
}

func (r *cartRepository) Save(cart domain.Cart) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	itemsRaw, err := encodeCartItems(cart.Items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (site_id, owner_key, currency, items, total_minor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (site_id, owner_key) DO UPDATE
		SET currency = EXCLUDED.currency,
		    items = EXCLUDED.items,
		    total_minor = EXCLUDED.total_minor,
		    updated_at = EXCLUDED.updated_at
	`, cart.SiteID, cart.OwnerKey, cart.Currency, itemsRaw, cart.TotalMinor, cart.CreatedAt, now); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	return nil
}

func (r *cartRepository) Delete(siteID, ownerKey string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM carts WHERE site_id = $1 AND owner_key = $2
	`, siteID, ownerKey); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
