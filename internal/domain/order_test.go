package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		SiteID:     "site-1",
		BuyerEmail: "buyer@example.com",
		UserID:     "user-1",
		Items: []domain.OrderItem{
			{ProductID: "P1", Title: "Widget", Qty: 2, UnitPriceMinor: 1000},
		},
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
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no site",
			mut:  func(o *domain.Order) { o.SiteID = "" },
			want: domain.ErrSiteIDRequired,
		},
		{
			name: "no buyer email",
			mut:  func(o *domain.Order) { o.BuyerEmail = "" },
			want: domain.ErrBuyerEmailRequired,
		},
		{
			name: "no currency",
			mut:  func(o *domain.Order) { o.Currency = "" },
			want: domain.ErrCurrencyRequired,
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
				o.SubtotalMinor = 0
				o.TotalMinor = o.ShippingMinor + o.TaxMinor
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "qty invalid",
			mut:  func(o *domain.Order) { o.Items[0].Qty = 0 },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "price invalid",
			mut:  func(o *domain.Order) { o.Items[0].UnitPriceMinor = -5 },
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "subtotal mismatch",
			mut:  func(o *domain.Order) { o.SubtotalMinor = 999 },
			want: domain.ErrSubtotalMismatch,
		},
		{
			name: "total mismatch",
			mut:  func(o *domain.Order) { o.TotalMinor = 1 },
			want: domain.ErrTotalMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestOrderCanCancel(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   error
	}{
		{domain.OrderStatusPending, nil},
		{domain.OrderStatusProcessing, nil},
		{domain.OrderStatusPacked, nil},
		{domain.OrderStatusCancellationRequested, nil},
		{domain.OrderStatusShipped, domain.ErrInvalidState},
		{domain.OrderStatusDelivered, domain.ErrInvalidState},
		{domain.OrderStatusCancelled, domain.ErrAlreadyCancelled},
		{domain.OrderStatusRefunded, domain.ErrAlreadyCancelled},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			order := makeOrder()
			order.Status = tc.status
			if err := order.CanCancel(); !errors.Is(err, tc.want) {
				t.Fatalf("CanCancel() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOrderBelongsTo(t *testing.T) {
	order := makeOrder()

	if !order.BelongsTo("user-1", "") {
		t.Fatal("owner by user id must match")
	}
	if !order.BelongsTo("", "buyer@example.com") {
		t.Fatal("owner by email must match")
	}
	if order.BelongsTo("user-2", "") {
		t.Fatal("foreign user id must not match")
	}
	if order.BelongsTo("", "other@example.com") {
		t.Fatal("foreign email must not match")
	}
	if order.BelongsTo("", "") {
		t.Fatal("empty identity must not match")
	}

	guest := makeOrder()
	guest.UserID = ""
	if !guest.BelongsTo("", "buyer@example.com") {
		t.Fatal("guest order must match by email")
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusProcessing, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusProcessing, domain.OrderStatusPacked, true},
		{domain.OrderStatusPacked, domain.OrderStatusShipped, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusRefunded, true},
		{domain.OrderStatusPending, domain.OrderStatusPending, true},
		{domain.OrderStatusPending, domain.OrderStatusDelivered, false},
	}

	for _, tc := range cases {
		if got := domain.ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
