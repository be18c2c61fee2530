package domain

import "time"

// Identity определяет владельца корзины: авторизованный пользователь
// либо анонимная сессия. Заполнено должно быть ровно одно из полей;
// при наличии обоих приоритет у пользователя.
type Identity struct {
	UserID    string
	SessionID string
}

// Key возвращает ключ хранения корзины для этой identity.
func (i Identity) Key() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "session:" + i.SessionID
}

// Anonymous сообщает, принадлежит ли identity неавторизованной сессии.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Empty сообщает, что identity не определена вовсе.
func (i Identity) Empty() bool {
	return i.UserID == "" && i.SessionID == ""
}

// CartItem представляет одну позицию корзины.
// Идентичность позиции — пара (ProductID, VariantID): две записи,
// отличающиеся только вариантом, считаются разными строками.
type CartItem struct {
	ProductID string
	VariantID string
	Title     string
	Qty       int32
	// UnitPriceMinor — снапшот цены за единицу на момент добавления,
	// в минимальных денежных единицах.
	UnitPriceMinor int64
}

// Cart агрегирует позиции корзины одной identity в рамках сайта.
type Cart struct {
	ID         string
	SiteID     string
	OwnerKey   string
	Currency   string
	Items      []CartItem
	TotalMinor int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Recalculate пересчитывает TotalMinor по позициям. Вызывается после
// каждой мутации: итог никогда не хранится устаревшим.
func (c *Cart) Recalculate() {
	var total int64
	for _, item := range c.Items {
		total += int64(item.Qty) * item.UnitPriceMinor
	}
	c.TotalMinor = total
}

// FindItem возвращает индекс позиции с данной идентичностью или -1.
func (c *Cart) FindItem(productID, variantID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID && item.VariantID == variantID {
			return i
		}
	}
	return -1
}

// ItemCount возвращает суммарное количество единиц товара в корзине.
func (c *Cart) ItemCount() int32 {
	var n int32
	for _, item := range c.Items {
		n += item.Qty
	}
	return n
}
