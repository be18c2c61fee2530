// Пакет checkout оркеструет оформление заказа: валидация корзины и
// адресов, серверный пересчёт цен и остатков, расчёт доставки и налога,
// создание заказа и checkout-сессии у платёжного шлюза.
package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/audit"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
	"github.com/vladislavdragonenkov/storefront/internal/service/shipping"
)

// defaultTaxRateBP — налоговая ставка по умолчанию в базисных пунктах
// от (subtotal + shipping), когда сайт её не задал. Вопрос о
// юрисдикционном расчёте вынесен в конфигурацию тенанта.
const defaultTaxRateBP int64 = 2000

const defaultCurrency = "USD"

// Request описывает запрос на создание заказа.
type Request struct {
	SiteID   string
	Identity domain.Identity

	BuyerEmail      string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	DeliveryMethod  domain.DeliveryMethod
	Notes           string

	// SuccessURL и CancelURL — адреса возврата из шлюза; должны
	// сохранять маршрутизацию тенанта (его домен/путь).
	SuccessURL string
	CancelURL  string
}

// Result — итог оформления. Order заполнен всегда, когда заказ создан;
// Session пуста, если создание платёжной сессии не удалось. Это
// задокументированное частичное состояние: заказ остаётся Pending, а
// сессию можно создать повторно через RetrySession.
type Result struct {
	Order   domain.Order
	Session domain.Session
}

// Service реализует оркестратор checkout.
type Service struct {
	orders  domain.OrderRepository
	carts   *cart.Service
	configs domain.TenantConfigRepository
	catalog domain.CatalogService
	creds   *credentials.Resolver
	gateway domain.PaymentGateway
	audit   *audit.Recorder
	metrics *metrics.CommerceMetrics
	logger  *log.Entry
}

// NewService создаёт оркестратор checkout.
func NewService(
	orders domain.OrderRepository,
	carts *cart.Service,
	configs domain.TenantConfigRepository,
	catalog domain.CatalogService,
	creds *credentials.Resolver,
	gw domain.PaymentGateway,
	recorder *audit.Recorder,
	m *metrics.CommerceMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{
		orders:  orders,
		carts:   carts,
		configs: configs,
		catalog: catalog,
		creds:   creds,
		gateway: gw,
		audit:   recorder,
		metrics: m,
		logger:  logger,
	}
}

// CreateOrder создаёт заказ из корзины identity и запрашивает
// checkout-сессию у шлюза. При ошибке сессии заказ уже существует в
// состоянии Pending/Pending; вызывающий получает и заказ, и ошибку.
func (s *Service) CreateOrder(req Request) (Result, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() { s.metrics.RecordCheckoutDuration(time.Since(start)) }()
	}

	result, err := s.createOrder(req)
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordCheckoutFailed()
		} else {
			s.metrics.RecordCheckoutCompleted()
		}
	}
	return result, err
}

func (s *Service) createOrder(req Request) (Result, error) {
	if req.BuyerEmail == "" {
		return Result{}, domain.ErrBuyerEmailRequired
	}
	if !req.ShippingAddress.Valid() || !req.BillingAddress.Valid() {
		return Result{}, domain.ErrInvalidAddress
	}
	if !req.DeliveryMethod.Valid() {
		return Result{}, domain.ErrDeliveryMethodInvalid
	}

	crt, err := s.carts.ResolveForCheckout(req.SiteID, req.Identity)
	if err != nil {
		return Result{}, err
	}
	if len(crt.Items) == 0 {
		return Result{}, domain.ErrEmptyCart
	}

	cfg, err := s.configs.Get(req.SiteID)
	if err != nil {
		return Result{}, domain.ErrGatewayNotConfigured
	}
	currency := cfg.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	// Цены и остатки перечитываются из каталога в момент оформления:
	// снапшотам корзины не доверяем, окно рассинхронизации сужается
	// до этого чтения.
	items, subtotal, err := s.revalidate(req.SiteID, crt.Items)
	if err != nil {
		return Result{}, err
	}

	shippingCost := shipping.Cost(cfg.Delivery, req.DeliveryMethod, crt.ItemCount())
	tax := taxSurcharge(subtotal+shippingCost, cfg.Delivery.TaxRateBasisPoints)

	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		SiteID:          req.SiteID,
		BuyerEmail:      req.BuyerEmail,
		UserID:          req.Identity.UserID,
		Items:           items,
		SubtotalMinor:   subtotal,
		ShippingMinor:   shippingCost,
		TaxMinor:        tax,
		TotalMinor:      subtotal + shippingCost + tax,
		Currency:        currency,
		DeliveryMethod:  req.DeliveryMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Result{}, fmt.Errorf("order invariants violated: %v", errs)
	}

	if err := s.orders.Create(order); err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	if s.audit != nil {
		s.audit.Record(order.ID, audit.EventOrderCreated, "", map[string]any{
			"site_id":     order.SiteID,
			"buyer":       order.BuyerEmail,
			"total_minor": order.TotalMinor,
			"currency":    order.Currency,
		})
	}

	// Корзина очищается сразу после создания заказа: повторная отправка
	// формы не породит второй заказ из тех же позиций.
	if err := s.carts.Clear(req.SiteID, req.Identity); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to clear cart after order creation")
	}

	session, err := s.createSession(&order, req.SuccessURL, req.CancelURL)
	if err != nil {
		return Result{Order: order}, err
	}
	return Result{Order: order, Session: session}, nil
}

// RetrySession повторно создаёт платёжную сессию для существующего
// заказа в состоянии Pending/Pending. Операция идемпотентна по
// идентификатору заказа.
func (s *Service) RetrySession(orderID string, requesterUserID, requesterEmail, successURL, cancelURL string) (Result, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return Result{}, err
	}
	if !order.BelongsTo(requesterUserID, requesterEmail) {
		return Result{}, domain.ErrForbidden
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusPending {
		return Result{}, domain.ErrInvalidState
	}

	session, err := s.createSession(&order, successURL, cancelURL)
	if err != nil {
		return Result{Order: order}, err
	}
	if s.audit != nil {
		s.audit.Record(order.ID, audit.EventSessionRecreated, "", map[string]any{
			"session_id": session.ID,
		})
	}
	return Result{Order: order, Session: session}, nil
}

// createSession разрешает кредентиалы тенанта и создаёт сессию у шлюза,
// передавая точные серверные цены позиций. Metadata связывает сессию с
// заказом и сайтом.
func (s *Service) createSession(order *domain.Order, successURL, cancelURL string) (domain.Session, error) {
	creds, err := s.creds.Resolve(order.SiteID)
	if err != nil {
		return domain.Session{}, err
	}

	lines := make([]domain.SessionLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, domain.SessionLine{
			Title:          item.Title,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	if order.ShippingMinor > 0 {
		lines = append(lines, domain.SessionLine{
			Title:          "Shipping (" + string(order.DeliveryMethod) + ")",
			Qty:            1,
			UnitPriceMinor: order.ShippingMinor,
		})
	}
	if order.TaxMinor > 0 {
		lines = append(lines, domain.SessionLine{Title: "Tax", Qty: 1, UnitPriceMinor: order.TaxMinor})
	}

	session, err := s.gateway.CreateSession(creds, domain.SessionRequest{
		OrderID:    order.ID,
		SiteID:     order.SiteID,
		BuyerEmail: order.BuyerEmail,
		Currency:   order.Currency,
		Lines:      lines,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			gateway.MetaOrderID: order.ID,
			gateway.MetaSiteID:  order.SiteID,
		},
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("payment session creation failed, order stays pending")
		return domain.Session{}, err
	}

	order.SessionID = session.ID
	if session.PaymentRef != "" {
		order.PaymentRef = session.PaymentRef
	}
	order.UpdatedAt = time.Now().UTC()
	if err := s.orders.Save(*order); err != nil {
		// Сессия уже создана; ссылку восстановит webhook по metadata.
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to persist session reference")
	} else {
		order.Version++
	}
	return session, nil
}

// revalidate перечитывает каждую позицию корзины против каталога и
// возвращает позиции заказа с актуальными ценами.
func (s *Service) revalidate(siteID string, items []domain.CartItem) ([]domain.OrderItem, int64, error) {
	out := make([]domain.OrderItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, err := s.catalog.Product(siteID, item.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if item.Qty > product.EffectiveStock(item.VariantID) {
			return nil, 0, domain.ErrInsufficientStock
		}
		price := product.EffectivePrice(item.VariantID)
		out = append(out, domain.OrderItem{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          product.EffectiveTitle(item.VariantID),
			Qty:            item.Qty,
			UnitPriceMinor: price,
		})
		subtotal += int64(item.Qty) * price
	}
	return out, subtotal, nil
}

// taxSurcharge считает налог в минимальных единицах от базы
// (subtotal + shipping) по ставке в базисных пунктах. nil означает
// «ставка не задана» и даёт ставку по умолчанию; явный ноль — 0%.
func taxSurcharge(baseMinor int64, rateBP *int64) int64 {
	rate := defaultTaxRateBP
	if rateBP != nil {
		rate = *rateBP
	}
	if rate <= 0 {
		return 0
	}
	return baseMinor * rate / 10000
}
