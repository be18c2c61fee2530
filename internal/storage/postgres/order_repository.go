package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// addressRecord — представление адреса в JSONB-колонке.
type addressRecord struct {
	Name       string `json:"name,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func encodeAddress(a domain.Address) ([]byte, error) {
	return json.Marshal(addressRecord{
		Name:       a.Name,
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	})
}

func decodeAddress(raw []byte) (domain.Address, error) {
	if len(raw) == 0 {
		return domain.Address{}, nil
	}
	var rec addressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Address{}, fmt.Errorf("decode address: %w", err)
	}
	return domain.Address{
		Name:       rec.Name,
		Street:     rec.Street,
		City:       rec.City,
		PostalCode: rec.PostalCode,
		Country:    rec.Country,
	}, nil
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	shippingAddr, err := encodeAddress(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingAddr, err := encodeAddress(order.BillingAddress)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, site_id, buyer_email, user_id,
			subtotal_minor, shipping_minor, tax_minor, total_minor, currency,
			delivery_method, shipping_address, billing_address,
			status, payment_status, notes,
			session_id, payment_ref, charge_ref, refund_ref, manual_refund_required,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`,
		order.ID, order.SiteID, order.BuyerEmail, order.UserID,
		order.SubtotalMinor, order.ShippingMinor, order.TaxMinor, order.TotalMinor, order.Currency,
		string(order.DeliveryMethod), shippingAddr, billingAddr,
		string(order.Status), string(order.PaymentStatus), order.Notes,
		order.SessionID, order.PaymentRef, order.ChargeRef, order.RefundRef, order.ManualRefundRequired,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, variant_id, title, qty, unit_price_minor
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, item.ProductID, item.VariantID, item.Title, item.Qty, item.UnitPriceMinor,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, selectOrderSQL+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByBuyer(siteID, buyerKey string, limit int) ([]domain.Order, error) {
	// buyerKey кодирует identity покупателя: "user:<id>" или "email:<email>".
	var where string
	var arg string
	switch {
	case len(buyerKey) > 5 && buyerKey[:5] == "user:":
		where = `WHERE site_id = $1 AND user_id = $2`
		arg = buyerKey[5:]
	case len(buyerKey) > 6 && buyerKey[:6] == "email:":
		where = `WHERE site_id = $1 AND buyer_email = $2`
		arg = buyerKey[6:]
	default:
		return []domain.Order{}, nil
	}

	return r.list(where+` ORDER BY created_at DESC, id DESC`, limit, siteID, arg)
}

func (r *orderRepository) ListByStatus(siteID string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return r.list(
		`WHERE site_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC`,
		limit, siteID, string(status),
	)
}

func (r *orderRepository) list(clause string, limit int, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := selectOrderSQL + " " + clause
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    notes = $3,
		    session_id = $4,
		    payment_ref = $5,
		    charge_ref = $6,
		    refund_ref = $7,
		    manual_refund_required = $8,
		    version = version + 1,
		    updated_at = $9
		WHERE id = $10
		  AND version = $11
	`,
		string(order.Status),
		string(order.PaymentStatus),
		order.Notes,
		order.SessionID,
		order.PaymentRef,
		order.ChargeRef,
		order.RefundRef,
		order.ManualRefundRequired,
		time.Now().UTC(),
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

const selectOrderSQL = `
	SELECT id, site_id, buyer_email, user_id,
	       subtotal_minor, shipping_minor, tax_minor, total_minor, currency,
	       delivery_method, shipping_address, billing_address,
	       status, payment_status, notes,
	       session_id, payment_ref, charge_ref, refund_ref, manual_refund_required,
	       version, created_at, updated_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepository) scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		status         string
		paymentStatus  string
		deliveryMethod string
		shippingAddr   []byte
		billingAddr    []byte
	)

	if err := row.Scan(
		&order.ID, &order.SiteID, &order.BuyerEmail, &order.UserID,
		&order.SubtotalMinor, &order.ShippingMinor, &order.TaxMinor, &order.TotalMinor, &order.Currency,
		&deliveryMethod, &shippingAddr, &billingAddr,
		&status, &paymentStatus, &order.Notes,
		&order.SessionID, &order.PaymentRef, &order.ChargeRef, &order.RefundRef, &order.ManualRefundRequired,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.DeliveryMethod = domain.DeliveryMethod(deliveryMethod)

	var err error
	if order.ShippingAddress, err = decodeAddress(shippingAddr); err != nil {
		return domain.Order{}, err
	}
	if order.BillingAddress, err = decodeAddress(billingAddr); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, variant_id, title, qty, unit_price_minor
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Title, &item.Qty, &item.UnitPriceMinor); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
