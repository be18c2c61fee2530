// Пакет audit фиксирует события жизненного цикла заказа в timeline
// (аудиторский след) и в transactional outbox (публикация наружу).
package audit

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated        = "OrderCreated"
	EventPaymentSucceeded    = "PaymentSucceeded"
	EventPaymentFailed       = "PaymentFailed"
	EventOrderCancelled      = "OrderCancelled"
	EventOrderRefunded       = "OrderRefunded"
	EventRefundFlaggedManual = "RefundFlaggedManual"
	EventSessionRecreated    = "PaymentSessionRecreated"
)

// Recorder пишет события заказа в outbox и timeline. Ошибки записи
// логируются, но не прерывают основную операцию: аудит не должен
// блокировать движение денег.
type Recorder struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.CommerceMetrics
	logger   *log.Entry
}

// NewRecorder создаёт recorder. metrics может быть nil (для тестов).
func NewRecorder(outbox domain.OutboxRepository, timeline domain.TimelineRepository, m *metrics.CommerceMetrics, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.WithField("component", "audit")
	}
	return &Recorder{outbox: outbox, timeline: timeline, metrics: m, logger: logger}
}

// Record фиксирует событие заказа. reason попадает в timeline, payload
// целиком уходит в outbox.
func (r *Recorder) Record(orderID, eventType, reason string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = orderID
	occurred := time.Now().UTC()
	payload["ts"] = occurred.Format(time.RFC3339Nano)

	if r.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"event":    eventType,
			}).Error("marshal event failed")
		} else {
			msg := domain.OutboxMessage{
				AggregateType: "order",
				AggregateID:   orderID,
				EventType:     eventType,
				Payload:       data,
			}
			if _, err := r.outbox.Enqueue(msg); err != nil {
				r.logger.WithError(err).WithFields(log.Fields{
					"order_id": orderID,
					"event":    eventType,
				}).Error("enqueue event failed")
			} else if r.metrics != nil {
				r.metrics.RecordOutboxEvent()
			}
		}
	}

	if r.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  orderID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := r.timeline.Append(event); err != nil {
			r.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if r.metrics != nil {
			r.metrics.RecordTimelineEvent()
		}
	}
}
