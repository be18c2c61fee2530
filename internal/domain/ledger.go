package domain

import "time"

// FailedPaymentEntry — запись журнала неуспешных платежей.
// Журнал привязан к плательщику (e-mail или пользователь), а не к заказу,
// append-only и используется для отчётности: состояние заказа из него
// не выводится.
type FailedPaymentEntry struct {
	ID       string
	SiteID   string
	PayerKey string // Ключ плательщика: "user:<id>" либо "email:<addr>".

	// EventID — идентификатор webhook-события, породившего запись.
	// При повторной доставке события запись с тем же EventID не
	// добавляется второй раз.
	EventID string

	OrderID     string
	InvoiceRef  string // Ссылка на invoice либо charge у шлюза.
	AmountMinor int64
	Currency    string
	Reason      string
	Attempt     int32
	FailedAt    time.Time
}
