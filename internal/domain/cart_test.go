package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestIdentityKey(t *testing.T) {
	cases := []struct {
		name string
		id   domain.Identity
		want string
	}{
		{"user only", domain.Identity{UserID: "u1"}, "user:u1"},
		{"session only", domain.Identity{SessionID: "s1"}, "session:s1"},
		{"user wins over session", domain.Identity{UserID: "u1", SessionID: "s1"}, "user:u1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.id.Key(); got != tc.want {
				t.Fatalf("Key() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCartRecalculate(t *testing.T) {
	cart := domain.Cart{
		Items: []domain.CartItem{
			{ProductID: "P1", Qty: 2, UnitPriceMinor: 1000},
			{ProductID: "P2", Qty: 3, UnitPriceMinor: 150},
		},
		TotalMinor: 9999, // устаревшее значение, должно быть перезаписано
	}

	cart.Recalculate()
	if cart.TotalMinor != 2450 {
		t.Fatalf("TotalMinor = %d, want 2450", cart.TotalMinor)
	}

	cart.Items = nil
	cart.Recalculate()
	if cart.TotalMinor != 0 {
		t.Fatalf("TotalMinor for empty cart = %d, want 0", cart.TotalMinor)
	}
}

func TestCartFindItem_VariantIdentity(t *testing.T) {
	cart := domain.Cart{
		Items: []domain.CartItem{
			{ProductID: "P1", VariantID: "", Qty: 1},
			{ProductID: "P1", VariantID: "v1", Qty: 2},
		},
	}

	if idx := cart.FindItem("P1", ""); idx != 0 {
		t.Fatalf("FindItem(P1, \"\") = %d, want 0", idx)
	}
	if idx := cart.FindItem("P1", "v1"); idx != 1 {
		t.Fatalf("FindItem(P1, v1) = %d, want 1", idx)
	}
	if idx := cart.FindItem("P1", "v2"); idx != -1 {
		t.Fatalf("FindItem(P1, v2) = %d, want -1", idx)
	}
}

func TestCartItemCount(t *testing.T) {
	cart := domain.Cart{
		Items: []domain.CartItem{
			{ProductID: "P1", Qty: 2},
			{ProductID: "P2", Qty: 3},
		},
	}
	if n := cart.ItemCount(); n != 5 {
		t.Fatalf("ItemCount() = %d, want 5", n)
	}
}
