package cart_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const siteID = "site-1"

func newService(t *testing.T) (*cart.Service, *catalog.MockService) {
	t.Helper()
	cat := catalog.NewMockService()
	cat.Put(siteID, domain.Product{ID: "P1", Title: "Widget", PriceMinor: 1000, Stock: 5})
	price := int64(1200)
	stock := int32(2)
	cat.Put(siteID, domain.Product{
		ID: "P2", Title: "Gadget", PriceMinor: 900, Stock: 10,
		Variants: []domain.Variant{
			{ID: "v1", Title: "Large", PriceMinor: &price, Stock: &stock},
		},
	})
	return cart.NewService(memory.NewCartRepository(), cat, nil), cat
}

func checkTotalInvariant(t *testing.T, crt domain.Cart) {
	t.Helper()
	var want int64
	for _, item := range crt.Items {
		want += int64(item.Qty) * item.UnitPriceMinor
	}
	if crt.TotalMinor != want {
		t.Fatalf("cart total invariant violated: total=%d, sum=%d", crt.TotalMinor, want)
	}
}

func TestAddItem_TotalInvariantAfterEveryMutation(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	crt, err := svc.AddItem(siteID, id, "P1", "", 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	checkTotalInvariant(t, crt)
	if crt.TotalMinor != 2000 {
		t.Fatalf("total = %d, want 2000", crt.TotalMinor)
	}

	crt, err = svc.AddItem(siteID, id, "P2", "v1", 1)
	if err != nil {
		t.Fatalf("AddItem variant: %v", err)
	}
	checkTotalInvariant(t, crt)
	if crt.TotalMinor != 3200 {
		t.Fatalf("total = %d, want 3200", crt.TotalMinor)
	}

	crt, err = svc.SetQuantity(siteID, id, "P1", "", 1)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	checkTotalInvariant(t, crt)

	crt, err = svc.RemoveItem(siteID, id, "P2", "v1")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	checkTotalInvariant(t, crt)
	if crt.TotalMinor != 1000 {
		t.Fatalf("total = %d, want 1000", crt.TotalMinor)
	}
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.AddItem(siteID, id, "P1", "", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	crt, err := svc.AddItem(siteID, id, "P1", "", 1)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(crt.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(crt.Items))
	}
	if crt.Items[0].Qty != 3 {
		t.Fatalf("merged qty = %d, want 3", crt.Items[0].Qty)
	}
}

func TestAddItem_VariantLinesAreDistinct(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.AddItem(siteID, id, "P2", "", 1); err != nil {
		t.Fatalf("AddItem base: %v", err)
	}
	crt, err := svc.AddItem(siteID, id, "P2", "v1", 1)
	if err != nil {
		t.Fatalf("AddItem variant: %v", err)
	}
	if len(crt.Items) != 2 {
		t.Fatalf("variant must be its own line, got %d lines", len(crt.Items))
	}
}

func TestAddItem_InsufficientStockLeavesStateUnchanged(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.AddItem(siteID, id, "P1", "", 4); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	// 4 в корзине + 2 > stock 5.
	if _, err := svc.AddItem(siteID, id, "P1", "", 2); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	crt, err := svc.Get(siteID, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if crt.Items[0].Qty != 4 {
		t.Fatalf("failed add must not mutate cart, qty = %d", crt.Items[0].Qty)
	}
}

func TestAddItem_VariantStockOverride(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	// Вариант v1 ограничен остатком 2, родительский stock 10 не действует.
	if _, err := svc.AddItem(siteID, id, "P2", "v1", 3); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for variant, got %v", err)
	}
}

func TestAddItem_Validation(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.AddItem(siteID, id, "P1", "", 0); !errors.Is(err, domain.ErrQuantityInvalid) {
		t.Fatalf("zero qty: expected ErrQuantityInvalid, got %v", err)
	}
	if _, err := svc.AddItem(siteID, id, "missing", "", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("unknown product: expected ErrProductNotFound, got %v", err)
	}
}

func TestSetQuantity_MissingLine(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.SetQuantity(siteID, id, "P1", "", 1); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestGet_LazyEmptyCart(t *testing.T) {
	svc, _ := newService(t)

	crt, err := svc.Get(siteID, domain.Identity{SessionID: "fresh"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(crt.Items) != 0 || crt.TotalMinor != 0 {
		t.Fatalf("fresh cart must be empty, got %+v", crt)
	}
	if crt.ID != "" {
		t.Fatal("empty cart must not be persisted")
	}
}

func TestResolveForCheckout_MergesAnonymousCart(t *testing.T) {
	svc, _ := newService(t)
	session := domain.Identity{SessionID: "s1"}
	user := domain.Identity{UserID: "u1"}

	// Анонимная корзина собрана до входа в аккаунт.
	if _, err := svc.AddItem(siteID, session, "P1", "", 2); err != nil {
		t.Fatalf("AddItem anonymous: %v", err)
	}
	if _, err := svc.AddItem(siteID, session, "P2", "", 1); err != nil {
		t.Fatalf("AddItem anonymous: %v", err)
	}
	// Пользовательская корзина уже содержит P1.
	if _, err := svc.AddItem(siteID, user, "P1", "", 1); err != nil {
		t.Fatalf("AddItem user: %v", err)
	}

	merged, err := svc.ResolveForCheckout(siteID, domain.Identity{UserID: "u1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("ResolveForCheckout: %v", err)
	}
	checkTotalInvariant(t, merged)

	if idx := merged.FindItem("P1", ""); idx < 0 || merged.Items[idx].Qty != 3 {
		t.Fatalf("P1 quantities must merge, got %+v", merged.Items)
	}
	if idx := merged.FindItem("P2", ""); idx < 0 || merged.Items[idx].Qty != 1 {
		t.Fatalf("P2 must carry over, got %+v", merged.Items)
	}

	// Анонимная корзина удалена после слияния.
	anon, err := svc.Get(siteID, session)
	if err != nil {
		t.Fatalf("Get anonymous: %v", err)
	}
	if len(anon.Items) != 0 {
		t.Fatalf("anonymous cart must be dropped after merge, got %+v", anon.Items)
	}
}

func TestClear(t *testing.T) {
	svc, _ := newService(t)
	id := domain.Identity{SessionID: "s1"}

	if _, err := svc.AddItem(siteID, id, "P1", "", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := svc.Clear(siteID, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	crt, err := svc.Get(siteID, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(crt.Items) != 0 {
		t.Fatalf("cart must be empty after clear, got %+v", crt.Items)
	}
}
