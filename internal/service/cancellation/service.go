// Пакет cancellation разрешает отмену заказа и возврат средств:
// проверка владельца и предусловий, поиск платёжной ссылки по цепочке
// источников и выпуск возврата через шлюз.
package cancellation

import (
	"errors"
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
	// maxSearchPages — жёсткий потолок постраничного поиска сессий.
	// После него поиск сдаётся и отмена уходит в ручную обработку
	// возврата вместо бесконечного сканирования.
	maxSearchPages = 5
	searchPageSize = 20

	saveMaxRetries = 3
	saveBaseDelay  = 10 * time.Millisecond
)

// RefundOutcome описывает исход возврата при отмене.
type RefundOutcome string

const (
	// RefundNone — возврат не требовался: оплата не была подтверждена.
	RefundNone RefundOutcome = "none"
	// RefundIssued — возврат выпущен на точную сумму заказа.
	RefundIssued RefundOutcome = "refunded"
	// RefundManual — платёжная ссылка не разрешилась; заказ отменён и
	// помечен для ручной обработки возврата.
	RefundManual RefundOutcome = "manual_required"
)

// errPaymentConfirmed сигнализирует из finalize, что оплата заказа
// подтвердилась между проверкой предусловий и записью: решение о
// возврате должно быть принято заново.
var errPaymentConfirmed = errors.New("payment confirmed during cancellation")

// Requester — identity инициатора отмены.
type Requester struct {
	UserID string
	Email  string
}

// Service реализует отмену заказов и разрешение возвратов.
type Service struct {
	orders  domain.OrderRepository
	creds   *credentials.Resolver
	gateway domain.PaymentGateway
	audit   *audit.Recorder
	metrics *metrics.CommerceMetrics
	logger  *log.Entry
}

// NewService создаёт сервис отмены. metrics может быть nil.
func NewService(
	orders domain.OrderRepository,
	creds *credentials.Resolver,
	gw domain.PaymentGateway,
	recorder *audit.Recorder,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "cancellation")
	}
	return &Service{
		orders:  orders,
		creds:   creds,
		gateway: gw,
		audit:   recorder,
		metrics: m,
		logger:  logger,
	}
}

// Cancel отменяет заказ от имени requester. При подтверждённой оплате
// возврат выпускается на точную сумму заказа; ошибка возврата
// прерывает отмену целиком, не оставляя заказ полу-отменённым без
// разрешённых денег.
func (s *Service) Cancel(orderID string, requester Requester) (domain.Order, RefundOutcome, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, RefundNone, err
	}
	if !order.BelongsTo(requester.UserID, requester.Email) {
		return domain.Order{}, RefundNone, domain.ErrForbidden
	}
	if err := order.CanCancel(); err != nil {
		return domain.Order{}, RefundNone, err
	}

	// Без подтверждённой оплаты возврат не нужен: прямой переход в
	// Cancelled. Предусловие перепроверяется на свежей версии заказа:
	// webhook об успешной оплате мог прийти после первого чтения.
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		updated, err := s.finalize(order.ID, func(o *domain.Order) (bool, error) {
			if o.PaymentStatus == domain.PaymentStatusCompleted {
				return false, errPaymentConfirmed
			}
			if o.Status == domain.OrderStatusCancelled {
				return false, nil
			}
			if err := o.CanCancel(); err != nil {
				return false, err
			}
			o.Status = domain.OrderStatusCancelled
			return true, nil
		})
		if errors.Is(err, errPaymentConfirmed) {
			// Оплата подтвердилась посреди отмены: деньги уже у нас,
			// решение принимается заново по оплаченному заказу.
			s.logger.WithField("order_id", order.ID).Info("payment confirmed during cancellation, resolving refund")
			fresh, err := s.orders.Get(order.ID)
			if err != nil {
				return domain.Order{}, RefundNone, err
			}
			return s.cancelPaid(fresh)
		}
		if err != nil {
			return domain.Order{}, RefundNone, err
		}
		if s.audit != nil {
			s.audit.Record(updated.ID, audit.EventOrderCancelled, "cancelled by buyer", nil)
		}
		return updated, RefundNone, nil
	}

	return s.cancelPaid(order)
}

// cancelPaid отменяет заказ с подтверждённой оплатой: разрешает
// платёжную ссылку, выпускает возврат на точную сумму и доводит заказ
// до терминального состояния.
func (s *Service) cancelPaid(order domain.Order) (domain.Order, RefundOutcome, error) {
	creds, err := s.creds.Resolve(order.SiteID)
	if err != nil {
		return domain.Order{}, RefundNone, err
	}

	paymentRef := s.resolvePaymentRef(creds, order)
	if paymentRef == "" {
		// Ссылка не разрешилась ни одним из источников: заказ всё же
		// отменяется, возврат уходит в ручную обработку.
		s.logger.WithField("order_id", order.ID).Warn("refund reference unresolved, flagging for manual handling")
		if s.metrics != nil {
			s.metrics.RecordManualRefund()
		}
		updated, err := s.finalize(order.ID, func(o *domain.Order) (bool, error) {
			if o.Status == domain.OrderStatusCancelled && o.ManualRefundRequired {
				return false, nil
			}
			o.Status = domain.OrderStatusCancelled
			o.ManualRefundRequired = true
			return true, nil
		})
		if err != nil {
			return domain.Order{}, RefundNone, err
		}
		if s.audit != nil {
			s.audit.Record(updated.ID, audit.EventRefundFlaggedManual, "payment reference unresolved", nil)
		}
		return updated, RefundManual, nil
	}

	refund, err := s.gateway.CreateRefund(creds, domain.RefundRequest{
		PaymentRef:  paymentRef,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Metadata:    map[string]string{gateway.MetaOrderID: order.ID, gateway.MetaSiteID: order.SiteID},
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("refund failed, cancellation aborted")
		if s.metrics != nil {
			s.metrics.RecordRefundFailed()
		}
		return domain.Order{}, RefundNone, err
	}

	// Возврат уже выпущен: результат фиксируется безусловно, даже если
	// статусы заказа сдвинулись конкурирующей записью.
	updated, err := s.finalize(order.ID, func(o *domain.Order) (bool, error) {
		if o.Status == domain.OrderStatusCancelled && o.PaymentStatus == domain.PaymentStatusRefunded && o.RefundRef != "" {
			return false, nil
		}
		o.Status = domain.OrderStatusCancelled
		o.PaymentStatus = domain.PaymentStatusRefunded
		o.ManualRefundRequired = false
		if o.RefundRef == "" {
			o.RefundRef = refund.ID
		}
		return true, nil
	})
	if err != nil {
		return domain.Order{}, RefundNone, err
	}
	if s.metrics != nil {
		s.metrics.RecordRefundIssued()
	}
	if s.audit != nil {
		s.audit.Record(updated.ID, audit.EventOrderRefunded, "cancelled with refund", map[string]any{
			"refund_ref":   refund.ID,
			"amount_minor": order.TotalMinor,
		})
	}
	return updated, RefundIssued, nil
}

// resolvePaymentRef разрешает платёжную ссылку в порядке предпочтения:
// прямая ссылка на заказе, ограниченный постраничный поиск по недавним
// сессиям тенанта, резервная ссылка на списание.
func (s *Service) resolvePaymentRef(creds domain.Credentials, order domain.Order) string {
	if order.PaymentRef != "" {
		return order.PaymentRef
	}

	if ref := s.searchSessions(creds, order.ID); ref != "" {
		return ref
	}

	return order.ChargeRef
}

// searchSessions сканирует до maxSearchPages страниц недавних сессий в
// поиске оплаченной сессии с metadata этого заказа. Ошибки шлюза не
// фатальны: поиск просто сдаётся, сработает следующий источник.
func (s *Service) searchSessions(creds domain.Credentials, orderID string) string {
	cursor := ""
	for page := 0; page < maxSearchPages; page++ {
		result, err := s.gateway.ListSessions(creds, searchPageSize, cursor)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("session search aborted")
			return ""
		}
		for _, session := range result.Sessions {
			if session.Metadata[gateway.MetaOrderID] == orderID && session.Paid && session.PaymentRef != "" {
				return session.PaymentRef
			}
		}
		if !result.HasMore || result.NextCursor == "" {
			return ""
		}
		cursor = result.NextCursor
	}
	return ""
}

// finalize применяет мутацию к свежей версии заказа с повтором при
// конфликте версий. Мутация обязана перепроверять предусловия:
// конкурирующий webhook мог уже применить часть переходов, и целевые
// статусы нельзя записывать вслепую поверх реального состояния.
func (s *Service) finalize(orderID string, mutate func(*domain.Order) (bool, error)) (domain.Order, error) {
	for attempt := 0; attempt < saveMaxRetries; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("reload order: %w", err)
		}

		changed, err := mutate(&order)
		if err != nil {
			return domain.Order{}, err
		}
		if !changed {
			return order, nil
		}
		order.UpdatedAt = time.Now().UTC()

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < saveMaxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
				}).Warn("version conflict detected, retrying")
				time.Sleep(saveBaseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, fmt.Errorf("save order: %w", err)
		}
		order.Version++
		return order, nil
	}
	return domain.Order{}, domain.ErrOrderVersionConflict
}
