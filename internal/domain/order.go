package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, подтверждение оплаты ещё не получено.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата подтверждена, заказ в обработке.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPacked — заказ собран и упакован.
	OrderStatusPacked OrderStatus = "packed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ получен покупателем.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancellationRequested — покупатель запросил отмену, она ещё не завершена.
	OrderStatusCancellationRequested OrderStatus = "cancellation_requested"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги по заказу возвращены покупателю.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PaymentStatus отражает взгляд платёжного шлюза на заказ.
// Поле грубее, чем OrderStatus, и меняется независимо от него.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// DeliveryMethod перечисляет поддерживаемые способы доставки.
type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "standard"
	DeliveryExpress  DeliveryMethod = "express"
	DeliveryPickup   DeliveryMethod = "pickup"
)

// Valid проверяет, что способ доставки поддерживается.
func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryStandard, DeliveryExpress, DeliveryPickup:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа. Список позиций
// неизменяем после создания заказа.
type OrderItem struct {
	ProductID      string
	VariantID      string
	Title          string
	Qty            int32
	UnitPriceMinor int64
}

// Order агрегирует состояние заказа, его позиции и платёжные ссылки.
type Order struct {
	ID         string
	SiteID     string
	BuyerEmail string
	UserID     string // Пусто для гостевых заказов.

	Items         []OrderItem
	SubtotalMinor int64
	ShippingMinor int64
	TaxMinor      int64
	TotalMinor    int64
	Currency      string

	DeliveryMethod  DeliveryMethod
	ShippingAddress Address
	BillingAddress  Address

	Status        OrderStatus
	PaymentStatus PaymentStatus
	Notes         string

	// SessionID — идентификатор checkout-сессии шлюза, созданной под заказ.
	SessionID string
	// PaymentRef — прямая ссылка на платёж у шлюза (payment intent).
	PaymentRef string
	// ChargeRef — резервная ссылка на списание; используется при возврате,
	// когда PaymentRef отсутствует и поиск по сессиям ничего не дал.
	ChargeRef string
	// RefundRef — ссылка на выполненный возврат.
	RefundRef string
	// ManualRefundRequired выставляется, когда заказ отменён, но ссылку
	// на платёж разрешить не удалось и возврат требует ручной обработки.
	ManualRefundRequired bool

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.SiteID == "" {
		errs = append(errs, ErrSiteIDRequired)
	}
	if o.BuyerEmail == "" {
		errs = append(errs, ErrBuyerEmailRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем subtotal с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.UnitPriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.SubtotalMinor+o.ShippingMinor+o.TaxMinor != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// CanCancel проверяет предусловия отмены. Отмена разрешена только до
// отгрузки; уже отменённый или возвращённый заказ отменить нельзя.
func (o *Order) CanCancel() error {
	switch o.Status {
	case OrderStatusCancelled, OrderStatusRefunded:
		return ErrAlreadyCancelled
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPacked, OrderStatusCancellationRequested:
		return nil
	default:
		return ErrInvalidState
	}
}

// BelongsTo проверяет, что identity соответствует покупателю заказа
// (по идентификатору пользователя или по e-mail).
func (o *Order) BelongsTo(userID, email string) bool {
	if o.UserID != "" && userID != "" && o.UserID == userID {
		return true
	}
	return email != "" && o.BuyerEmail == email
}

// fulfillmentNext задаёт допустимые переходы fulfillment-трека.
var fulfillmentNext = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancellationRequested, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusPacked, OrderStatusCancellationRequested, OrderStatusCancelled},
	OrderStatusPacked:     {OrderStatusShipped, OrderStatusCancellationRequested, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusCancellationRequested: {
		OrderStatusCancelled, OrderStatusRefunded,
	},
	OrderStatusCancelled: {OrderStatusRefunded},
}

// ValidTransition проверяет допустимость перехода статуса заказа.
func ValidTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range fulfillmentNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
