// Пакет gateway содержит клиент платёжного шлюза за узким портом
// domain.PaymentGateway: создание и чтение checkout-сессий,
// постраничный список сессий и возвраты.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/client"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultRequestTimeout = 10 * time.Second

// Client — клиент шлюза поверх stripe-go. Секретный ключ не хранится в
// клиенте, а передаётся с каждым вызовом: один процесс обслуживает
// много тенантов с разными ключами, API-инстансы кэшируются по ключу.
type Client struct {
	baseURL string
	logger  *log.Entry

	mu   sync.Mutex
	apis map[string]*client.API
}

// NewClient создаёт клиент шлюза. baseURL переопределяет адрес API
// (тестовые стенды, прокси); пустая строка — адрес шлюза по умолчанию.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "gateway")
	}
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		apis:    make(map[string]*client.API),
	}
}

// api возвращает API-инстанс под секретный ключ тенанта.
func (c *Client) api(secretKey string) *client.API {
	c.mu.Lock()
	defer c.mu.Unlock()

	if api, ok := c.apis[secretKey]; ok {
		return api
	}

	var backends *stripe.Backends
	if c.baseURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(c.baseURL),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	api := &client.API{}
	api.Init(secretKey, backends)
	c.apis[secretKey] = api
	return api
}

// CreateSession создаёт checkout-сессию под заказ с точными серверными
// ценами позиций. Запрос идемпотентен по идентификатору заказа:
// повторная попытка после таймаута вернёт уже созданную сессию, а не
// создаст вторую.
func (c *Client) CreateSession(creds domain.Credentials, req domain.SessionRequest) (domain.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.BuyerEmail),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("session-" + req.OrderID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("payment_intent")

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(line.Qty)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(line.UnitPriceMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Title),
				},
			},
		})
	}

	session, err := c.api(creds.SecretKey).CheckoutSessions.New(params)
	if err != nil {
		return domain.Session{}, c.mapError("create session", err, false)
	}
	return sessionToDomain(session), nil
}

// GetSession возвращает сессию по идентификатору.
func (c *Client) GetSession(creds domain.Credentials, sessionID string) (domain.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	session, err := c.api(creds.SecretKey).CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return domain.Session{}, c.mapError("get session", err, false)
	}
	return sessionToDomain(session), nil
}

// ListSessions возвращает страницу недавних сессий тенанта.
func (c *Client) ListSessions(creds domain.Credentials, limit int, cursor string) (domain.SessionPage, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	if cursor != "" {
		params.StartingAfter = stripe.String(cursor)
	}
	params.AddExpand("data.payment_intent")

	// Итератор догружает следующую страницу сам; остановка ровно на
	// limit удерживает ListSessions в рамках одной страницы.
	page := domain.SessionPage{}
	iter := c.api(creds.SecretKey).CheckoutSessions.List(params)
	for iter.Next() {
		page.Sessions = append(page.Sessions, sessionToDomain(iter.CheckoutSession()))
		if len(page.Sessions) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return domain.SessionPage{}, c.mapError("list sessions", err, false)
	}

	if meta := iter.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	if n := len(page.Sessions); n > 0 {
		page.NextCursor = page.Sessions[n-1].ID
	}
	return page, nil
}

// CreateRefund инициирует возврат средств по платёжной ссылке:
// payment intent либо прямое списание (ch_-префикс).
func (c *Client) CreateRefund(creds domain.Credentials, req domain.RefundRequest) (domain.Refund, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.AmountMinor),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("refund-" + req.PaymentRef)
	if strings.HasPrefix(req.PaymentRef, "ch_") {
		params.Charge = stripe.String(req.PaymentRef)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentRef)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	refund, err := c.api(creds.SecretKey).Refunds.New(params)
	if err != nil {
		return domain.Refund{}, c.mapError("create refund", err, true)
	}
	return domain.Refund{
		ID:          refund.ID,
		AmountMinor: refund.Amount,
		Status:      string(refund.Status),
	}, nil
}

// mapError переводит ошибки шлюза в доменную таксономию: 5xx и сетевые
// сбои — в ErrGatewayUnavailable, чтобы вызывающий мог безопасно
// повторить; отклонённый возврат — в ErrRefundRejected.
func (c *Client) mapError(op string, err error, refund bool) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			c.logger.WithFields(log.Fields{"op": op, "status": stripeErr.HTTPStatusCode}).Warn("gateway server error")
			return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, stripeErr.HTTPStatusCode)
		}
		if refund {
			return fmt.Errorf("%w: %s: %s", domain.ErrRefundRejected, stripeErr.Code, stripeErr.Msg)
		}
		return fmt.Errorf("gateway rejected request: %s: %s", stripeErr.Code, stripeErr.Msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timeout", domain.ErrGatewayUnavailable)
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}

func sessionToDomain(session *stripe.CheckoutSession) domain.Session {
	out := domain.Session{
		ID:          session.ID,
		URL:         session.URL,
		Status:      domain.SessionStatus(session.Status),
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountMinor: session.AmountTotal,
		Currency:    strings.ToUpper(string(session.Currency)),
		Metadata:    session.Metadata,
		CreatedAt:   time.Unix(session.Created, 0).UTC(),
	}
	if session.PaymentIntent != nil {
		out.PaymentRef = session.PaymentIntent.ID
	}
	return out
}

var _ domain.PaymentGateway = (*Client)(nil)
