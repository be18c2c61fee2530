// Пакет http — REST-поверхность витрины: корзина, checkout, заказы и
// приём webhook платёжного шлюза.
package http

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cancellation"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/webhook"
)

// Server связывает REST-маршруты с сервисами домена.
type Server struct {
	carts    *cart.Service
	checkout *checkout.Service
	cancel   *cancellation.Service
	webhooks *webhook.Reconciler
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
}

// NewServer создаёт HTTP-сервер API. timeline может быть nil — тогда
// история заказа в детальном ответе опускается.
func NewServer(
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	cancelSvc *cancellation.Service,
	webhooks *webhook.Reconciler,
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Server{
		carts:    carts,
		checkout: checkoutSvc,
		cancel:   cancelSvc,
		webhooks: webhooks,
		orders:   orders,
		timeline: timeline,
		logger:   logger,
	}
}

// Handler возвращает маршрутизатор API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cart", s.handleGetCart)
	mux.HandleFunc("POST /cart", s.handleAddItem)
	mux.HandleFunc("PUT /cart/{productId}", s.handleSetQuantity)
	mux.HandleFunc("DELETE /cart/{productId}", s.handleRemoveItem)
	mux.HandleFunc("DELETE /cart", s.handleClearCart)

	mux.HandleFunc("POST /checkout/create-order", s.handleCreateOrder)
	mux.HandleFunc("POST /checkout/orders/{orderId}/payment-session", s.handleRetrySession)

	mux.HandleFunc("GET /orders", s.handleListOrders)
	mux.HandleFunc("GET /orders/{orderId}", s.handleGetOrder)
	mux.HandleFunc("POST /orders/{orderId}/cancel", s.handleCancelOrder)

	mux.HandleFunc("POST /webhook", s.handleWebhook)

	return mux
}
