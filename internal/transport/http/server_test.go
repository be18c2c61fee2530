package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/service/cancellation"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
	"github.com/vladislavdragonenkov/storefront/internal/service/webhook"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	apphttp "github.com/vladislavdragonenkov/storefront/internal/transport/http"
)

const (
	siteID        = "site-1"
	webhookSecret = "whsec_test"
)

func taxRate(bp int64) *int64 { return &bp }

type env struct {
	handler http.Handler
	orders  domain.OrderRepository
	gateway *gateway.MockGateway
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cat := catalog.NewMockService()
	cat.Put(siteID, domain.Product{ID: "P1", Title: "Widget", PriceMinor: 1000, Stock: 5})

	configs := memory.NewTenantConfigRepository()
	require.NoError(t, configs.Save(domain.TenantConfig{
		SiteID:   siteID,
		Currency: "USD",
		Gateway: domain.GatewayConfig{
			Environment:          domain.EnvironmentSandbox,
			SandboxSecretKey:     "sk_test",
			SandboxWebhookSecret: webhookSecret,
			IsConfigured:         true,
		},
		Delivery: domain.DeliveryConfig{
			StandardBaseMinor:    160,
			StandardPerItemMinor: 80,
			TaxRateBasisPoints:   taxRate(2000),
		},
	}))

	orders := memory.NewOrderRepository()
	ledger := memory.NewLedgerRepository()
	resolver := credentials.NewResolver(configs, nil)
	gw := gateway.NewMockGateway()

	carts := cart.NewService(memory.NewCartRepository(), cat, nil)
	checkoutSvc := checkout.NewService(orders, carts, configs, cat, resolver, gw, nil, nil, nil)
	cancelSvc := cancellation.NewService(orders, resolver, gw, nil, nil, nil)
	reconciler := webhook.NewReconciler(orders, ledger, memory.NewProcessedEventRepository(), resolver, nil, nil, nil)

	server := apphttp.NewServer(carts, checkoutSvc, cancelSvc, reconciler, orders, memory.NewTimelineRepository(), nil)
	return &env{handler: server.Handler(), orders: orders, gateway: gw}
}

func (e *env) do(method, path string, body any, prepare func(r *http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Site-ID", siteID)
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func withSession(id string) func(r *http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "storefront_session", Value: id})
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetCart_SetsSessionCookie(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/cart", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "storefront_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, body["totalMinor"])
}

func TestGetCart_RequiresSiteHeader(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/cart", nil, func(r *http.Request) {
		r.Header.Del("X-Site-ID")
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestCartMutations(t *testing.T) {
	e := newEnv(t)
	sess := withSession("s1")

	rec := e.do(http.MethodPost, "/cart", map[string]any{"productId": "P1", "quantity": 2}, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2000, body["totalMinor"])

	rec = e.do(http.MethodPut, "/cart/P1", map[string]any{"quantity": 1}, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.EqualValues(t, 1000, body["totalMinor"])

	rec = e.do(http.MethodDelete, "/cart/P1", nil, sess)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, body["totalMinor"])
}

func TestAddItem_ErrorMapping(t *testing.T) {
	e := newEnv(t)
	sess := withSession("s1")

	rec := e.do(http.MethodPost, "/cart", map[string]any{"productId": "P1", "quantity": 99}, sess)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode[map[string]string](t, rec)["kind"])

	rec = e.do(http.MethodPost, "/cart", map[string]any{"productId": "missing", "quantity": 1}, sess)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, rec)["kind"])

	rec = e.do(http.MethodPost, "/cart", map[string]any{"productId": "P1", "quantity": 0}, sess)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[map[string]string](t, rec)["kind"])
}

func checkoutBody() map[string]any {
	address := map[string]any{
		"name":       "Jane Buyer",
		"street":     "1 Main St",
		"city":       "Springfield",
		"postalCode": "12345",
		"country":    "US",
	}
	return map[string]any{
		"email":           "buyer@example.com",
		"shippingAddress": address,
		"billingAddress":  address,
		"deliveryMethod":  "standard",
	}
}

func TestCreateOrder_Flow(t *testing.T) {
	e := newEnv(t)
	sess := withSession("s1")

	rec := e.do(http.MethodPost, "/cart", map[string]any{"productId": "P1", "quantity": 2}, sess)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/checkout/create-order", checkoutBody(), sess)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Order struct {
			ID         string `json:"id"`
			TotalMinor int64  `json:"totalMinor"`
			Status     string `json:"status"`
		} `json:"order"`
		PaymentSession *struct {
			URL string `json:"url"`
		} `json:"paymentSession"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2784, resp.Order.TotalMinor)
	assert.Equal(t, "pending", resp.Order.Status)
	require.NotNil(t, resp.PaymentSession)
	assert.NotEmpty(t, resp.PaymentSession.URL)
}

func TestCreateOrder_PartialOutcome(t *testing.T) {
	e := newEnv(t)
	sess := withSession("s1")
	e.gateway.CreateErr = domain.ErrGatewayUnavailable

	rec := e.do(http.MethodPost, "/cart", map[string]any{"productId": "P1", "quantity": 1}, sess)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/checkout/create-order", checkoutBody(), sess)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
		SessionError string `json:"sessionError"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Order.ID, "order must be returned despite session failure")
	assert.Equal(t, "gateway_error", resp.SessionError)

	// Повторная сессия после восстановления шлюза.
	e.gateway.CreateErr = nil
	rec = e.do(http.MethodPost, "/checkout/orders/"+resp.Order.ID+"/payment-session", nil, func(r *http.Request) {
		r.Header.Set("X-User-Email", "buyer@example.com")
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListOrders_RequiresIdentity(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/orders", nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/orders", nil, func(r *http.Request) {
		r.Header.Set("X-User-Email", "buyer@example.com")
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrder_HidesForeignOrders(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	require.NoError(t, e.orders.Create(domain.Order{
		ID:            "ord-1",
		SiteID:        siteID,
		BuyerEmail:    "buyer@example.com",
		UserID:        "u1",
		Items:         []domain.OrderItem{{ProductID: "P1", Title: "Widget", Qty: 1, UnitPriceMinor: 1000}},
		SubtotalMinor: 1000,
		TotalMinor:    1000,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	// Владелец видит заказ.
	rec := e.do(http.MethodGet, "/orders/ord-1", nil, func(r *http.Request) {
		r.Header.Set("X-User-ID", "u1")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Чужой пользователь получает 404, а не 403.
	rec = e.do(http.MethodGet, "/orders/ord-1", nil, func(r *http.Request) {
		r.Header.Set("X-User-ID", "intruder")
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Другой тенант тоже получает 404.
	rec = e.do(http.MethodGet, "/orders/ord-1", nil, func(r *http.Request) {
		r.Header.Set("X-Site-ID", "site-2")
		r.Header.Set("X-User-ID", "u1")
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	require.NoError(t, e.orders.Create(domain.Order{
		ID:            "ord-1",
		SiteID:        siteID,
		BuyerEmail:    "buyer@example.com",
		UserID:        "u1",
		Items:         []domain.OrderItem{{ProductID: "P1", Title: "Widget", Qty: 1, UnitPriceMinor: 1000}},
		SubtotalMinor: 1000,
		TotalMinor:    1000,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	rec := e.do(http.MethodPost, "/orders/ord-1/cancel", nil, func(r *http.Request) {
		r.Header.Set("X-User-ID", "u1")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		RefundOutcome string `json:"refundOutcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Order.Status)
	assert.Equal(t, "none", resp.RefundOutcome)

	// Повторная отмена — конфликт.
	rec = e.do(http.MethodPost, "/orders/ord-1/cancel", nil, func(r *http.Request) {
		r.Header.Set("X-User-ID", "u1")
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_cancelled", decode[map[string]string](t, rec)["kind"])
}

func TestWebhook_StatusMapping(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	require.NoError(t, e.orders.Create(domain.Order{
		ID:            "ord-1",
		SiteID:        siteID,
		BuyerEmail:    "buyer@example.com",
		Items:         []domain.OrderItem{{ProductID: "P1", Title: "Widget", Qty: 1, UnitPriceMinor: 1000}},
		SubtotalMinor: 1000,
		TotalMinor:    1000,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	body, err := json.Marshal(map[string]any{
		"id":      "evt-1",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":       "cs_1",
			"metadata": map[string]string{"order_id": "ord-1", "site_id": siteID},
		}},
	})
	require.NoError(t, err)

	// Невалидная подпись — 400, состояние не меняется.
	rec := e.do(http.MethodPost, "/webhook", nil, func(r *http.Request) {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.Header.Set("Gateway-Signature", gateway.SignPayload(body, "whsec_wrong", time.Now()))
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Валидная подпись — 200 и применённое событие.
	rec = e.do(http.MethodPost, "/webhook", nil, func(r *http.Request) {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.Header.Set("Gateway-Signature", gateway.SignPayload(body, webhookSecret, time.Now()))
	})
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := e.orders.Get("ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)

	// Повторная доставка подтверждается без изменений.
	rec = e.do(http.MethodPost, "/webhook", nil, func(r *http.Request) {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.Header.Set("Gateway-Signature", gateway.SignPayload(body, webhookSecret, time.Now()))
	})
	require.Equal(t, http.StatusOK, rec.Code)
}
