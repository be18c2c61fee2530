package gateway

import (
	"encoding/json"
	"fmt"
)

// Типы webhook-событий шлюза, которые обрабатывает реконсилятор.
const (
	EventSessionCompleted = "checkout.session.completed"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventInvoiceFailed    = "invoice.payment_failed"
	EventRefundCompleted  = "charge.refunded"
)

// Ключи metadata, связывающие объекты шлюза с нашими сущностями.
const (
	MetaOrderID = "order_id"
	MetaSiteID  = "site_id"
)

// Event — конверт webhook-события шлюза.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent разбирает сырое тело webhook-запроса.
func ParseEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("parse webhook event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, fmt.Errorf("webhook event missing id or type")
	}
	return event, nil
}

// EventObject — общие поля вложенного объекта события: сессии,
// платежа, инвойса и списания достаточно этого подмножества.
type EventObject struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	AmountMinor   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	FailureReason string            `json:"failure_message"`
	AttemptCount  int32             `json:"attempt_count"`
	Metadata      map[string]string `json:"metadata"`
}

// Object разбирает вложенный объект события.
func (e Event) Object() (EventObject, error) {
	var obj EventObject
	if len(e.Data.Object) == 0 {
		return obj, fmt.Errorf("webhook event %s has no data object", e.ID)
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return obj, fmt.Errorf("parse event object: %w", err)
	}
	return obj, nil
}

// PeekSiteID извлекает site_id из metadata до проверки подписи.
// Значению нельзя доверять, пока подпись не сверена с секретом именно
// этого сайта: подделка site_id приводит к проверке чужим секретом и
// закрытому отказу.
func PeekSiteID(raw []byte) string {
	event, err := ParseEvent(raw)
	if err != nil {
		return ""
	}
	obj, err := event.Object()
	if err != nil {
		return ""
	}
	return obj.Metadata[MetaSiteID]
}
