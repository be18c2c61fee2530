// Пакет webhook применяет асинхронный поток событий платёжного шлюза к
// локальному состоянию заказов. Шлюз — недоверенный at-least-once
// источник: события проверяются по подписи тенанта, применяются
// идемпотентно и никогда не откатывают терминальный успех.
package webhook

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/audit"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
)

const (
	defaultEventTTL = 72 * time.Hour

	saveMaxRetries = 3
	saveBaseDelay  = 10 * time.Millisecond
)

// Reconciler проверяет и применяет webhook-события шлюза.
type Reconciler struct {
	orders    domain.OrderRepository
	ledger    domain.LedgerRepository
	processed domain.ProcessedEventRepository
	creds     *credentials.Resolver
	audit     *audit.Recorder
	metrics   *metrics.CommerceMetrics
	logger    *log.Entry

	tolerance time.Duration
	eventTTL  time.Duration
}

// NewReconciler создаёт реконсилятор. metrics может быть nil.
func NewReconciler(
	orders domain.OrderRepository,
	ledger domain.LedgerRepository,
	processed domain.ProcessedEventRepository,
	creds *credentials.Resolver,
	recorder *audit.Recorder,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Reconciler {
	if logger == nil {
		logger = log.WithField("component", "webhook")
	}
	return &Reconciler{
		orders:    orders,
		ledger:    ledger,
		processed: processed,
		creds:     creds,
		audit:     recorder,
		metrics:   m,
		logger:    logger,
		tolerance: gateway.DefaultTolerance,
		eventTTL:  defaultEventTTL,
	}
}

// HandleEvent проверяет подпись и применяет одно событие.
// ErrSignatureInvalid означает «ответить 4xx, состояния не менять»;
// любая другая ошибка — «ответить 5xx, шлюз доставит повторно».
// nil возвращается и для применённых, и для отсечённых повторов, и для
// событий по неизвестным заказам (устаревшие/чужие события).
func (r *Reconciler) HandleEvent(rawBody []byte, signatureHeader string) error {
	start := time.Now()
	if r.metrics != nil {
		defer func() { r.metrics.RecordWebhookDuration(time.Since(start)) }()
	}

	// Тенант определяется по metadata события до проверки подписи.
	// Значению нельзя доверять: подпись сверяется с секретом именно
	// этого сайта, подделка site_id упирается в чужой секрет.
	siteID := gateway.PeekSiteID(rawBody)
	if siteID == "" {
		if r.metrics != nil {
			r.metrics.RecordWebhookRejected()
		}
		return domain.ErrSignatureInvalid
	}

	creds, err := r.creds.Resolve(siteID)
	if err != nil || creds.WebhookSecret == "" {
		r.logger.WithField("site_id", siteID).Warn("webhook for site without configured secret")
		if r.metrics != nil {
			r.metrics.RecordWebhookRejected()
		}
		return domain.ErrSignatureInvalid
	}
	if err := gateway.VerifySignature(rawBody, signatureHeader, creds.WebhookSecret, r.tolerance); err != nil {
		r.logger.WithField("site_id", siteID).Warn("webhook signature rejected")
		if r.metrics != nil {
			r.metrics.RecordWebhookRejected()
		}
		return domain.ErrSignatureInvalid
	}

	event, err := gateway.ParseEvent(rawBody)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	// Отсечение повторной доставки по event id. Незавершённые записи
	// (processing/failed) допускают повтор: сбой посреди обработчика
	// оставляет состояние, которое повтор безопасно доведёт до цели.
	if err := r.processed.Begin(event.ID, time.Now().UTC().Add(r.eventTTL)); err != nil {
		if err == domain.ErrEventAlreadyProcessed {
			r.logger.WithField("event_id", event.ID).Debug("duplicate webhook event skipped")
			if r.metrics != nil {
				r.metrics.RecordWebhookDuplicate()
			}
			return nil
		}
		return fmt.Errorf("begin event processing: %w", err)
	}

	if err := r.dispatch(siteID, event); err != nil {
		if markErr := r.processed.MarkFailed(event.ID); markErr != nil {
			r.logger.WithError(markErr).WithField("event_id", event.ID).Warn("failed to mark event as failed")
		}
		return err
	}

	if err := r.processed.MarkDone(event.ID); err != nil {
		r.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to mark event as done")
	}
	if r.metrics != nil {
		r.metrics.RecordWebhookProcessed(event.Type)
	}
	return nil
}

func (r *Reconciler) dispatch(siteID string, event gateway.Event) error {
	switch event.Type {
	case gateway.EventSessionCompleted:
		return r.handlePaymentSucceeded(siteID, event)
	case gateway.EventPaymentFailed, gateway.EventInvoiceFailed:
		return r.handlePaymentFailed(siteID, event)
	case gateway.EventRefundCompleted:
		return r.handleRefundCompleted(siteID, event)
	default:
		r.logger.WithFields(log.Fields{
			"event_id": event.ID,
			"type":     event.Type,
		}).Debug("unhandled webhook event type")
		return nil
	}
}

// handlePaymentSucceeded переводит заказ в Completed/Processing.
// Предусловие идемпотентности: если оплата уже подтверждена, повтор —
// no-op.
func (r *Reconciler) handlePaymentSucceeded(siteID string, event gateway.Event) error {
	obj, err := event.Object()
	if err != nil {
		return err
	}
	order, ok, err := r.lookupOrder(siteID, event, obj)
	if err != nil || !ok {
		return err
	}

	return r.saveWithRetry(order.ID, func(order *domain.Order) (bool, error) {
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			return false, nil
		}
		order.PaymentStatus = domain.PaymentStatusCompleted
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusProcessing
		}
		if obj.ID != "" {
			order.SessionID = obj.ID
		}
		if obj.PaymentIntent != "" {
			order.PaymentRef = obj.PaymentIntent
		}
		return true, nil
	}, func(order domain.Order) {
		if r.audit != nil {
			r.audit.Record(order.ID, audit.EventPaymentSucceeded, "", map[string]any{
				"session_id":  obj.ID,
				"payment_ref": obj.PaymentIntent,
			})
		}
	})
}

// handlePaymentFailed помечает оплату неуспешной и добавляет запись в
// журнал неуспешных платежей плательщика. Заказ с подтверждённой
// оплатой не трогается: событие пришло с опозданием.
func (r *Reconciler) handlePaymentFailed(siteID string, event gateway.Event) error {
	obj, err := event.Object()
	if err != nil {
		return err
	}
	order, ok, err := r.lookupOrder(siteID, event, obj)
	if err != nil || !ok {
		return err
	}

	if order.PaymentStatus == domain.PaymentStatusCompleted || order.PaymentStatus == domain.PaymentStatusRefunded {
		r.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"event_id": event.ID,
		}).Debug("stale failure event for settled order ignored")
		return nil
	}

	// Журнал append-only и привязан к плательщику, не к заказу;
	// сумма и позиции заказа не изменяются. EventID защищает журнал от
	// дубликатов при повторной доставке: сбой после Append оставляет
	// событие незавершённым, и повтор снова дойдёт до этой точки.
	payerKey := "email:" + order.BuyerEmail
	if order.UserID != "" {
		payerKey = "user:" + order.UserID
	}
	attempt := obj.AttemptCount
	if attempt <= 0 {
		attempt = 1
	}
	entry := domain.FailedPaymentEntry{
		SiteID:      siteID,
		EventID:     event.ID,
		PayerKey:    payerKey,
		OrderID:     order.ID,
		InvoiceRef:  obj.ID,
		AmountMinor: obj.AmountMinor,
		Currency:    obj.Currency,
		Reason:      obj.FailureReason,
		Attempt:     attempt,
		FailedAt:    time.Now().UTC(),
	}
	if err := r.ledger.Append(entry); err != nil {
		return fmt.Errorf("append failed payment ledger: %w", err)
	}

	return r.saveWithRetry(order.ID, func(order *domain.Order) (bool, error) {
		if order.PaymentStatus != domain.PaymentStatusPending {
			return false, nil
		}
		order.PaymentStatus = domain.PaymentStatusFailed
		return true, nil
	}, func(order domain.Order) {
		if r.audit != nil {
			r.audit.Record(order.ID, audit.EventPaymentFailed, obj.FailureReason, map[string]any{
				"invoice_ref": obj.ID,
			})
		}
	})
}

// handleRefundCompleted фиксирует завершённый возврат со стороны шлюза.
func (r *Reconciler) handleRefundCompleted(siteID string, event gateway.Event) error {
	obj, err := event.Object()
	if err != nil {
		return err
	}
	order, ok, err := r.lookupOrder(siteID, event, obj)
	if err != nil || !ok {
		return err
	}

	return r.saveWithRetry(order.ID, func(order *domain.Order) (bool, error) {
		if order.PaymentStatus == domain.PaymentStatusRefunded {
			return false, nil
		}
		order.PaymentStatus = domain.PaymentStatusRefunded
		switch order.Status {
		case domain.OrderStatusCancellationRequested, domain.OrderStatusCancelled:
			order.Status = domain.OrderStatusRefunded
		}
		if obj.ID != "" && order.RefundRef == "" {
			order.RefundRef = obj.ID
		}
		return true, nil
	}, func(order domain.Order) {
		if r.audit != nil {
			r.audit.Record(order.ID, audit.EventOrderRefunded, "gateway refund event", map[string]any{
				"refund_ref": obj.ID,
			})
		}
	})
}

// lookupOrder находит заказ по order_id из metadata события.
// Событие без order_id либо по неизвестному заказу считается
// устаревшим или чужим и подтверждается без изменений состояния.
func (r *Reconciler) lookupOrder(siteID string, event gateway.Event, obj gateway.EventObject) (domain.Order, bool, error) {
	orderID := obj.Metadata[gateway.MetaOrderID]
	if orderID == "" {
		r.logger.WithField("event_id", event.ID).Debug("webhook event without order metadata")
		return domain.Order{}, false, nil
	}
	order, err := r.orders.Get(orderID)
	if err != nil {
		if err == domain.ErrOrderNotFound {
			r.logger.WithFields(log.Fields{
				"event_id": event.ID,
				"order_id": orderID,
			}).Info("webhook event for unknown order acknowledged")
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("load order: %w", err)
	}
	if order.SiteID != siteID {
		r.logger.WithFields(log.Fields{
			"event_id": event.ID,
			"order_id": orderID,
		}).Warn("webhook site mismatch, event ignored")
		return domain.Order{}, false, nil
	}
	return order, true, nil
}

// saveWithRetry применяет мутацию к свежей версии заказа с повтором
// при конфликте версий. Мутация обязана перепроверять предусловие:
// конкурирующая запись могла уже привести заказ к целевому состоянию.
func (r *Reconciler) saveWithRetry(orderID string, mutate func(*domain.Order) (bool, error), applied func(domain.Order)) error {
	for attempt := 0; attempt < saveMaxRetries; attempt++ {
		order, err := r.orders.Get(orderID)
		if err != nil {
			return fmt.Errorf("reload order: %w", err)
		}

		changed, err := mutate(&order)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		order.UpdatedAt = time.Now().UTC()
		if err := r.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < saveMaxRetries-1 {
				r.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
				}).Warn("version conflict detected, retrying")
				time.Sleep(saveBaseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return fmt.Errorf("save order: %w", err)
		}

		if applied != nil {
			applied(order)
		}
		return nil
	}
	return domain.ErrOrderVersionConflict
}
