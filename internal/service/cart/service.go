// Пакет cart владеет состоянием корзин: позиции, количества и снапшоты
// цен. Итог корзины пересчитывается на каждой мутации и никогда не
// хранится устаревшим.
package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service реализует операции над корзинами одной identity.
type Service struct {
	carts   domain.CartRepository
	catalog domain.CatalogService
	logger  *log.Entry
}

// NewService создаёт сервис корзин поверх хранилища и внешнего каталога.
func NewService(carts domain.CartRepository, catalog domain.CatalogService, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	return &Service{carts: carts, catalog: catalog, logger: logger}
}

// Get возвращает корзину identity. Если корзины ещё нет, возвращается
// пустая корзина без записи в хранилище: корзина создаётся лениво при
// первом добавлении товара.
func (s *Service) Get(siteID string, id domain.Identity) (domain.Cart, error) {
	if id.Empty() {
		return domain.Cart{}, fmt.Errorf("cart identity is empty")
	}
	cart, ok, err := s.carts.Get(siteID, id.Key())
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return s.emptyCart(siteID, id), nil
	}
	return cart, nil
}

// AddItem добавляет qty единиц товара в корзину. Идентичность позиции —
// пара (productID, variantID); существующая позиция увеличивается.
// Цена и остаток читаются из каталога в момент вызова.
func (s *Service) AddItem(siteID string, id domain.Identity, productID, variantID string, qty int32) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}

	product, err := s.catalog.Product(siteID, productID)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.Get(siteID, id)
	if err != nil {
		return domain.Cart{}, err
	}

	existing := int32(0)
	idx := cart.FindItem(productID, variantID)
	if idx >= 0 {
		existing = cart.Items[idx].Qty
	}
	if existing+qty > product.EffectiveStock(variantID) {
		return domain.Cart{}, domain.ErrInsufficientStock
	}

	if idx >= 0 {
		cart.Items[idx].Qty += qty
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:      productID,
			VariantID:      variantID,
			Title:          product.EffectiveTitle(variantID),
			Qty:            qty,
			UnitPriceMinor: product.EffectivePrice(variantID),
		})
	}

	return cart, s.persist(&cart)
}

// SetQuantity выставляет количество существующей позиции.
func (s *Service) SetQuantity(siteID string, id domain.Identity, productID, variantID string, qty int32) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}

	cart, err := s.Get(siteID, id)
	if err != nil {
		return domain.Cart{}, err
	}
	idx := cart.FindItem(productID, variantID)
	if idx < 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	product, err := s.catalog.Product(siteID, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if qty > product.EffectiveStock(variantID) {
		return domain.Cart{}, domain.ErrInsufficientStock
	}

	cart.Items[idx].Qty = qty
	return cart, s.persist(&cart)
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(siteID string, id domain.Identity, productID, variantID string) (domain.Cart, error) {
	cart, err := s.Get(siteID, id)
	if err != nil {
		return domain.Cart{}, err
	}
	idx := cart.FindItem(productID, variantID)
	if idx < 0 {
		return domain.Cart{}, domain.ErrCartItemNotFound
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return cart, s.persist(&cart)
}

// Clear удаляет корзину identity целиком.
func (s *Service) Clear(siteID string, id domain.Identity) error {
	if id.Empty() {
		return nil
	}
	return s.carts.Delete(siteID, id.Key())
}

// ResolveForCheckout возвращает корзину для оформления заказа. Если
// пользователь авторизовался посреди сессии, анонимная корзина
// сливается (не перезаписывается) в пользовательскую, после чего
// анонимная удаляется.
func (s *Service) ResolveForCheckout(siteID string, id domain.Identity) (domain.Cart, error) {
	if id.UserID == "" || id.SessionID == "" {
		return s.Get(siteID, id)
	}

	userKey := domain.Identity{UserID: id.UserID}.Key()
	sessionKey := domain.Identity{SessionID: id.SessionID}.Key()

	userCart, userOK, err := s.carts.Get(siteID, userKey)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load user cart: %w", err)
	}
	sessionCart, sessionOK, err := s.carts.Get(siteID, sessionKey)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load session cart: %w", err)
	}
	if !sessionOK {
		if !userOK {
			return s.emptyCart(siteID, id), nil
		}
		return userCart, nil
	}

	if !userOK {
		userCart = s.emptyCart(siteID, domain.Identity{UserID: id.UserID})
	}

	// Слияние построчно по идентичности (product, variant); снапшот
	// цены пользовательской корзины имеет приоритет.
	for _, item := range sessionCart.Items {
		if idx := userCart.FindItem(item.ProductID, item.VariantID); idx >= 0 {
			userCart.Items[idx].Qty += item.Qty
			continue
		}
		userCart.Items = append(userCart.Items, item)
	}

	if err := s.persist(&userCart); err != nil {
		return domain.Cart{}, err
	}
	if err := s.carts.Delete(siteID, sessionKey); err != nil {
		s.logger.WithError(err).WithField("site_id", siteID).Warn("failed to drop merged session cart")
	}
	return userCart, nil
}

func (s *Service) persist(cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.ID == "" {
		cart.ID = uuid.NewString()
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Recalculate()
	if err := s.carts.Save(*cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) emptyCart(siteID string, id domain.Identity) domain.Cart {
	return domain.Cart{
		SiteID:   siteID,
		OwnerKey: id.Key(),
		Items:    []domain.CartItem{},
	}
}
