// Пакет shipping вычисляет стоимость доставки по тарифам сайта.
// Расчёт выполняется только на сервере из сохранённой конфигурации
// тенанта: клиентскому вводу стоимость доставки не доверяется.
package shipping

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// Тарифы по умолчанию, применяются при отсутствующей или некорректной
// конфигурации доставки у сайта.
const (
	DefaultStandardBaseMinor    int64 = 500
	DefaultStandardPerItemMinor int64 = 100
	DefaultExpressBaseMinor     int64 = 1200
	DefaultExpressPerItemMinor  int64 = 250
	DefaultPickupCostMinor      int64 = 0
)

// Cost возвращает стоимость доставки в минимальных денежных единицах.
// Модель: pickup — фиксированная стоимость; standard и express —
// base + perItem * itemCount по тарифам метода.
func Cost(cfg domain.DeliveryConfig, method domain.DeliveryMethod, itemCount int32) int64 {
	if itemCount < 0 {
		itemCount = 0
	}

	switch method {
	case domain.DeliveryPickup:
		return pick(cfg.PickupCostMinor, DefaultPickupCostMinor)
	case domain.DeliveryExpress:
		base, perItem := rates(cfg.ExpressBaseMinor, cfg.ExpressPerItemMinor,
			DefaultExpressBaseMinor, DefaultExpressPerItemMinor)
		return base + perItem*int64(itemCount)
	default:
		// Неизвестный метод тарифицируется как standard: оркестратор
		// отклоняет его ещё до расчёта, здесь это только страховка суммы.
		base, perItem := rates(cfg.StandardBaseMinor, cfg.StandardPerItemMinor,
			DefaultStandardBaseMinor, DefaultStandardPerItemMinor)
		return base + perItem*int64(itemCount)
	}
}

// rates возвращает тарифы метода. Пара (0, 0) означает «метод не
// настроен», отрицательные значения — некорректную конфигурацию;
// в обоих случаях действуют значения по умолчанию.
func rates(base, perItem, defBase, defPerItem int64) (int64, int64) {
	if base < 0 || perItem < 0 || (base == 0 && perItem == 0) {
		return defBase, defPerItem
	}
	return base, perItem
}

func pick(v, def int64) int64 {
	if v < 0 {
		return def
	}
	return v
}
