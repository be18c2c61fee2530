package domain

// Variant описывает вариант товара. Цена и остаток опциональны:
// при отсутствии действует значение товара-родителя.
type Variant struct {
	ID         string
	Title      string
	PriceMinor *int64
	Stock      *int32
}

// Product — read-only представление товара из внешнего каталога.
// Ядро никогда не изменяет остатки, только читает их для валидации.
type Product struct {
	ID         string
	Title      string
	PriceMinor int64
	Stock      int32
	Variants   []Variant
}

// EffectivePrice возвращает действующую цену для пары (товар, вариант):
// цена варианта, если вариант найден и цена у него задана, иначе цена товара.
func (p *Product) EffectivePrice(variantID string) int64 {
	if variantID == "" {
		return p.PriceMinor
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			if v.PriceMinor != nil {
				return *v.PriceMinor
			}
			return p.PriceMinor
		}
	}
	return p.PriceMinor
}

// EffectiveStock возвращает действующий остаток по тем же правилам.
func (p *Product) EffectiveStock(variantID string) int32 {
	if variantID == "" {
		return p.Stock
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			if v.Stock != nil {
				return *v.Stock
			}
			return p.Stock
		}
	}
	return p.Stock
}

// EffectiveTitle возвращает заголовок позиции с учётом варианта.
func (p *Product) EffectiveTitle(variantID string) string {
	if variantID == "" {
		return p.Title
	}
	for _, v := range p.Variants {
		if v.ID == variantID && v.Title != "" {
			return p.Title + " — " + v.Title
		}
	}
	return p.Title
}

// CatalogService описывает взаимодействие с внешним каталогом товаров.
type CatalogService interface {
	// Product возвращает товар сайта или ErrProductNotFound.
	Product(siteID, productID string) (Product, error)
}
