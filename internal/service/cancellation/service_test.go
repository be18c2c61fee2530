package cancellation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
	"github.com/vladislavdragonenkov/storefront/internal/service/cancellation"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const siteID = "site-1"

var owner = cancellation.Requester{UserID: "u1", Email: "buyer@example.com"}

type fixture struct {
	svc     *cancellation.Service
	orders  domain.OrderRepository
	gateway *gateway.MockGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	configs := memory.NewTenantConfigRepository()
	err := configs.Save(domain.TenantConfig{
		SiteID: siteID,
		Gateway: domain.GatewayConfig{
			Environment:          domain.EnvironmentSandbox,
			SandboxSecretKey:     "sk_test",
			SandboxWebhookSecret: "whsec_test",
			IsConfigured:         true,
		},
	})
	if err != nil {
		t.Fatalf("save tenant config: %v", err)
	}

	orders := memory.NewOrderRepository()
	gw := gateway.NewMockGateway()
	svc := cancellation.NewService(orders, credentials.NewResolver(configs, nil), gw, nil, nil, nil)
	return &fixture{svc: svc, orders: orders, gateway: gw}
}

func seedOrder(t *testing.T, orders domain.OrderRepository, mut func(o *domain.Order)) domain.Order {
	t.Helper()
	now := time.Now().UTC()
	order := domain.Order{
		ID:            "ord-1",
		SiteID:        siteID,
		BuyerEmail:    "buyer@example.com",
		UserID:        "u1",
		Items:         []domain.OrderItem{{ProductID: "P1", Title: "Widget", Qty: 2, UnitPriceMinor: 1000}},
		SubtotalMinor: 2000,
		ShippingMinor: 320,
		TaxMinor:      464,
		TotalMinor:    2784,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mut != nil {
		mut(&order)
	}
	if err := orders.Create(order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCancel_PendingWithoutPayment(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, nil)

	order, outcome, err := f.svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != cancellation.RefundNone {
		t.Fatalf("outcome = %s, want none", outcome)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", order.Status)
	}
	if f.gateway.RefundCalls != 0 {
		t.Fatal("unpaid order must not trigger a refund")
	}
}

func TestCancel_Forbidden(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, nil)

	if _, _, err := f.svc.Cancel("ord-1", cancellation.Requester{UserID: "intruder"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancel_ShippedOrderUnchanged(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.Status = domain.OrderStatusShipped
		o.PaymentStatus = domain.PaymentStatusCompleted
	})

	if _, _, err := f.svc.Cancel("ord-1", owner); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	order, _ := f.orders.Get("ord-1")
	if order.Status != domain.OrderStatusShipped {
		t.Fatal("rejected cancellation must not change the order")
	}
	if f.gateway.RefundCalls != 0 {
		t.Fatal("rejected cancellation must not touch the gateway")
	}
}

func TestCancel_PaidOrderRefundsExactTotal(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.Status = domain.OrderStatusProcessing
		o.PaymentStatus = domain.PaymentStatusCompleted
		o.PaymentRef = "pi_123"
	})

	order, outcome, err := f.svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != cancellation.RefundIssued {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if order.Status != domain.OrderStatusCancelled || order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("unexpected final state %s/%s", order.Status, order.PaymentStatus)
	}
	if order.RefundRef == "" {
		t.Fatal("refund reference must be persisted")
	}

	if f.gateway.LastRefund.PaymentRef != "pi_123" {
		t.Fatalf("refund ref = %q, want pi_123", f.gateway.LastRefund.PaymentRef)
	}
	if f.gateway.LastRefund.AmountMinor != 2784 {
		t.Fatalf("refund amount = %d, want exact order total 2784", f.gateway.LastRefund.AmountMinor)
	}
}

func TestCancel_SessionSearchFallback(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusCompleted
	})

	// Прямой ссылки нет; оплаченная сессия лежит на второй странице.
	f.gateway.PageSizeLimit = 2
	for i := 0; i < 3; i++ {
		f.gateway.Sessions = append(f.gateway.Sessions, domain.Session{
			ID:       "cs_other_" + string(rune('a'+i)),
			Metadata: map[string]string{"order_id": "other"},
		})
	}
	f.gateway.Sessions = append(f.gateway.Sessions, domain.Session{
		ID:         "cs_target",
		Paid:       true,
		PaymentRef: "pi_found",
		Metadata:   map[string]string{"order_id": "ord-1"},
	})

	_, outcome, err := f.svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != cancellation.RefundIssued {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if f.gateway.LastRefund.PaymentRef != "pi_found" {
		t.Fatalf("refund ref = %q, want pi_found", f.gateway.LastRefund.PaymentRef)
	}
	if f.gateway.ListCalls < 2 {
		t.Fatalf("search must paginate, got %d list calls", f.gateway.ListCalls)
	}
}

func TestCancel_ChargeRefFallback(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusCompleted
		o.ChargeRef = "ch_789"
	})

	_, outcome, err := f.svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != cancellation.RefundIssued {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if f.gateway.LastRefund.PaymentRef != "ch_789" {
		t.Fatalf("refund ref = %q, want charge fallback ch_789", f.gateway.LastRefund.PaymentRef)
	}
}

func TestCancel_UnresolvedRefFlagsManual(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusCompleted
	})

	order, outcome, err := f.svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != cancellation.RefundManual {
		t.Fatalf("outcome = %s, want manual_required", outcome)
	}
	if order.Status != domain.OrderStatusCancelled || !order.ManualRefundRequired {
		t.Fatalf("order must be cancelled with manual flag, got %+v", order)
	}
	// Оплата остаётся подтверждённой: деньги ещё не возвращены.
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", order.PaymentStatus)
	}
	if f.gateway.RefundCalls != 0 {
		t.Fatal("manual path must not call the gateway refund")
	}
}

func TestCancel_RefundFailureAbortsCancellation(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatusCompleted
		o.PaymentRef = "pi_123"
	})
	f.gateway.RefundErr = domain.ErrRefundRejected

	if _, _, err := f.svc.Cancel("ord-1", owner); !errors.Is(err, domain.ErrRefundRejected) {
		t.Fatalf("expected ErrRefundRejected, got %v", err)
	}

	// Заказ не полу-отменён: статус и оплата не тронуты.
	order, _ := f.orders.Get("ord-1")
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("failed refund must leave order untouched, got %s/%s", order.Status, order.PaymentStatus)
	}
}

// confirmingOrders подтверждает оплату заказа между первым чтением в
// Cancel и перезагрузкой внутри finalize, имитируя webhook об успешной
// оплате, пришедший посреди отмены.
type confirmingOrders struct {
	domain.OrderRepository
	gets int
}

func (r *confirmingOrders) Get(id string) (domain.Order, error) {
	r.gets++
	if r.gets == 2 {
		order, err := r.OrderRepository.Get(id)
		if err != nil {
			return domain.Order{}, err
		}
		order.Status = domain.OrderStatusProcessing
		order.PaymentStatus = domain.PaymentStatusCompleted
		order.PaymentRef = "pi_123"
		order.UpdatedAt = time.Now().UTC()
		if err := r.OrderRepository.Save(order); err != nil {
			return domain.Order{}, err
		}
	}
	return r.OrderRepository.Get(id)
}

func TestCancel_PaymentConfirmedMidCancellation(t *testing.T) {
	configs := memory.NewTenantConfigRepository()
	err := configs.Save(domain.TenantConfig{
		SiteID: siteID,
		Gateway: domain.GatewayConfig{
			Environment:      domain.EnvironmentSandbox,
			SandboxSecretKey: "sk_test",
			IsConfigured:     true,
		},
	})
	if err != nil {
		t.Fatalf("save tenant config: %v", err)
	}

	orders := &confirmingOrders{OrderRepository: memory.NewOrderRepository()}
	seedOrder(t, orders.OrderRepository, nil)
	gw := gateway.NewMockGateway()
	svc := cancellation.NewService(orders, credentials.NewResolver(configs, nil), gw, nil, nil, nil)

	order, outcome, err := svc.Cancel("ord-1", owner)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// Оплата подтвердилась после проверки предусловий: отмена обязана
	// вернуть деньги, а не оставить заказ cancelled с висящей оплатой.
	if outcome != cancellation.RefundIssued {
		t.Fatalf("outcome = %s, want refunded", outcome)
	}
	if gw.RefundCalls != 1 {
		t.Fatalf("refund calls = %d, want 1", gw.RefundCalls)
	}
	if gw.LastRefund.PaymentRef != "pi_123" || gw.LastRefund.AmountMinor != 2784 {
		t.Fatalf("unexpected refund request: %+v", gw.LastRefund)
	}
	if order.Status != domain.OrderStatusCancelled || order.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("final state = %s/%s, want cancelled/refunded", order.Status, order.PaymentStatus)
	}
	if order.RefundRef == "" || order.ManualRefundRequired {
		t.Fatalf("refund must be recorded on the order, got %+v", order)
	}

	stored, _ := orders.OrderRepository.Get("ord-1")
	if stored.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("stored payment status = %s, want refunded", stored.PaymentStatus)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f.orders, func(o *domain.Order) { o.Status = domain.OrderStatusCancelled })

	if _, _, err := f.svc.Cancel("ord-1", owner); !errors.Is(err, domain.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}
