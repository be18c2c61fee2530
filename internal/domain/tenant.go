package domain

import "time"

// Environment — заявленное окружение платёжного шлюза тенанта.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Valid проверяет, что окружение относится к поддерживаемым значениям.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// GatewayConfig хранит ключи платёжного шлюза тенанта для обоих окружений.
// Для любой операции используются только ключи заявленного Environment:
// неявного фолбэка между sandbox и production нет.
type GatewayConfig struct {
	Environment Environment

	SandboxPublicKey     string
	SandboxSecretKey     string
	SandboxWebhookSecret string

	ProductionPublicKey     string
	ProductionSecretKey     string
	ProductionWebhookSecret string

	// LegacySecretKey и LegacyWebhookSecret — устаревшие одиночные поля.
	// При первой записи конфигурации они переносятся в поля заявленного
	// окружения и после этого не читаются.
	LegacySecretKey     string
	LegacyWebhookSecret string

	IsConfigured bool
}

// DeliveryConfig хранит тарифы доставки и налоговую ставку сайта.
// Нулевая структура означает «не настроено»: калькулятор в этом случае
// применяет задокументированные значения по умолчанию.
type DeliveryConfig struct {
	StandardBaseMinor    int64
	StandardPerItemMinor int64
	ExpressBaseMinor     int64
	ExpressPerItemMinor  int64
	PickupCostMinor      int64

	// TaxRateBasisPoints — ставка налога в базисных пунктах от
	// (subtotal + shipping). 2000 = 20%. nil означает «не задано»,
	// применяется ставка по умолчанию; явный ноль — честные 0%.
	TaxRateBasisPoints *int64
}

// TenantConfig — конфигурация одного сайта платформы.
// Читается оркестратором checkout и webhook-реконсилятором на каждой
// операции без кэширования: тенант может сменить окружение в любой момент.
type TenantConfig struct {
	SiteID    string
	Currency  string
	Gateway   GatewayConfig
	Delivery  DeliveryConfig
	UpdatedAt time.Time
}
