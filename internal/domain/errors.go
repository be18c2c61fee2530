package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора сайта (тенанта).
	ErrSiteIDRequired = errors.New("site_id is required")
	// Ошибка отсутствующего e-mail покупателя.
	ErrBuyerEmailRequired = errors.New("buyer email is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия subtotal и суммы позиций.
	ErrSubtotalMismatch = errors.New("order subtotal does not match items sum")
	// Ошибка несоответствия итога: total != subtotal + shipping + tax.
	ErrTotalMismatch = errors.New("order total does not match subtotal, shipping and tax")

	// ErrInvalidAddress возвращается при неполном адресе доставки или счёта.
	ErrInvalidAddress = errors.New("address must contain name, street, city and postal code")
	// ErrEmptyCart возвращается при попытке оформить заказ из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDeliveryMethodInvalid возвращается при неизвестном способе доставки.
	ErrDeliveryMethodInvalid = errors.New("unsupported delivery method")
	// ErrQuantityInvalid возвращается при количестве <= 0 в операциях с корзиной.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrInsufficientStock возвращается, когда запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCartItemNotFound возвращается, если позиция (product, variant) не найдена в корзине.
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrForbidden возвращается, когда запрос выполняет не покупатель заказа.
	ErrForbidden = errors.New("requester is not the order buyer")
	// ErrInvalidState возвращается при недопустимом переходе жизненного цикла.
	ErrInvalidState = errors.New("operation not allowed in current order state")
	// ErrAlreadyCancelled возвращается при повторной отмене заказа.
	ErrAlreadyCancelled = errors.New("order already cancelled or refunded")

	// ErrTenantConfigNotFound возвращается, если конфигурация сайта не сохранена.
	ErrTenantConfigNotFound = errors.New("tenant configuration not found")
	// ErrGatewayNotConfigured возвращается, когда у тенанта нет ключей для заявленного окружения.
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured for this site")
	// ErrGatewayUnavailable — временная ошибка платёжного шлюза (таймаут, 5xx); операцию можно повторить.
	ErrGatewayUnavailable = errors.New("payment gateway temporarily unavailable")
	// ErrRefundRejected — шлюз отклонил возврат средств (бизнес-ошибка).
	ErrRefundRejected = errors.New("refund rejected by payment gateway")
	// ErrSignatureInvalid возвращается при неверной подписи webhook-события.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrEventAlreadyProcessed сигнализирует о повторной доставке webhook-события.
	ErrEventAlreadyProcessed = errors.New("event already processed")
	// ErrEventIDRequired возвращается при пустом идентификаторе события.
	ErrEventIDRequired = errors.New("event id is required")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsRetryableGateway проверяет, стоит ли повторять обращение к шлюзу.
func IsRetryableGateway(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
