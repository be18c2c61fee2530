package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя в рамках сайта,
	// с опциональным ограничением на количество.
	ListByBuyer(siteID, buyerKey string, limit int) ([]Order, error)
	// ListByStatus возвращает заказы сайта в заданном статусе.
	ListByStatus(siteID string, status OrderStatus, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// CartRepository описывает хранилище корзин, ключ — identity владельца.
type CartRepository interface {
	// Get возвращает корзину владельца; ok == false, если корзины ещё нет.
	Get(siteID, ownerKey string) (Cart, bool, error)
	// Save перезаписывает корзину владельца целиком.
	Save(cart Cart) error
	// Delete удаляет корзину владельца; отсутствие корзины не считается ошибкой.
	Delete(siteID, ownerKey string) error
}

// TenantConfigRepository хранит конфигурацию сайтов.
type TenantConfigRepository interface {
	// Get возвращает конфигурацию сайта или ErrTenantConfigNotFound.
	Get(siteID string) (TenantConfig, error)
	// Save перезаписывает конфигурацию сайта.
	Save(cfg TenantConfig) error
}

// LedgerRepository хранит журнал неуспешных платежей. Только добавление.
type LedgerRepository interface {
	Append(entry FailedPaymentEntry) error
	ListByPayer(siteID, payerKey string, limit int) ([]FailedPaymentEntry, error)
}

// ProcessedEventRepository отслеживает применение webhook-событий.
// Шлюз доставляет события at-least-once; завершённая запись по event id
// отсекает повторные доставки до входа в обработчик, а записи в
// состоянии processing/failed допускают повтор после сбоя.
type ProcessedEventRepository interface {
	// Begin фиксирует начало обработки события или возвращает
	// ErrEventAlreadyProcessed, если событие уже применено.
	Begin(eventID string, ttlAt time.Time) error
	// MarkDone помечает событие применённым.
	MarkDone(eventID string) error
	// MarkFailed помечает обработку неуспешной; событие можно повторить.
	MarkFailed(eventID string) error
	// DeleteExpired удаляет записи старше before, не более limit за вызов.
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}
