package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory — in-memory реализация CartRepository.
// Ключ хранения — пара (siteID, ownerKey).
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository возвращает in-memory репозиторий корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items: make(map[string]domain.Cart),
	}
}

func cartKey(siteID, ownerKey string) string {
	return siteID + "/" + ownerKey
}

// Get возвращает корзину владельца; ok == false, если корзины ещё нет.
func (r *cartRepositoryInMemory) Get(siteID, ownerKey string) (domain.Cart, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[cartKey(siteID, ownerKey)]
	if !ok {
		return domain.Cart{}, false, nil
	}
	return cloneCart(cart), true, nil
}

// Save перезаписывает корзину владельца целиком.
func (r *cartRepositoryInMemory) Save(cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[cartKey(cart.SiteID, cart.OwnerKey)] = cloneCart(cart)
	return nil
}

// Delete удаляет корзину владельца; отсутствие корзины не считается ошибкой.
func (r *cartRepositoryInMemory) Delete(siteID, ownerKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, cartKey(siteID, ownerKey))
	return nil
}

func cloneCart(src domain.Cart) domain.Cart {
	dst := src
	dst.Items = append([]domain.CartItem(nil), src.Items...)
	return dst
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
