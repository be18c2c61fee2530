// Пакет credentials выбирает ключи платёжного шлюза тенанта.
// Выбор детерминирован: заявленное окружение → ключи только этого
// окружения, без неявного фолбэка между sandbox и production.
package credentials

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Resolver читает конфигурацию сайта на каждой операции и выдаёт
// кредентиалы под заявленное окружение. Кэширования между запросами
// нет: тенант может сменить окружение в любой момент.
type Resolver struct {
	configs domain.TenantConfigRepository
	logger  *log.Entry
}

// NewResolver создаёт резолвер поверх хранилища конфигураций.
func NewResolver(configs domain.TenantConfigRepository, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.WithField("component", "credentials")
	}
	return &Resolver{configs: configs, logger: logger}
}

// Resolve возвращает кредентиалы сайта для его заявленного окружения.
func (r *Resolver) Resolve(siteID string) (domain.Credentials, error) {
	cfg, err := r.configs.Get(siteID)
	if err != nil {
		return domain.Credentials{}, domain.ErrGatewayNotConfigured
	}
	return FromConfig(cfg.Gateway)
}

// FromConfig — чистая функция выбора кредентиалов из конфигурации шлюза.
// Устаревшие одиночные поля здесь не читаются: они переносятся в поля
// окружений при записи конфигурации (см. MigrateLegacy).
func FromConfig(gc domain.GatewayConfig) (domain.Credentials, error) {
	env := gc.Environment
	if !env.Valid() {
		env = domain.EnvironmentSandbox
	}

	creds := domain.Credentials{Environment: env}
	switch env {
	case domain.EnvironmentProduction:
		creds.SecretKey = strings.TrimSpace(gc.ProductionSecretKey)
		creds.WebhookSecret = strings.TrimSpace(gc.ProductionWebhookSecret)
	default:
		creds.SecretKey = strings.TrimSpace(gc.SandboxSecretKey)
		creds.WebhookSecret = strings.TrimSpace(gc.SandboxWebhookSecret)
	}

	if creds.SecretKey == "" {
		return domain.Credentials{}, domain.ErrGatewayNotConfigured
	}
	return creds, nil
}

// MigrateLegacy переносит устаревшие одиночные поля в поля заявленного
// окружения, если те ещё пусты, и очищает устаревшие поля. Возвращает
// true, если конфигурация изменилась.
func MigrateLegacy(gc *domain.GatewayConfig) bool {
	if gc.LegacySecretKey == "" && gc.LegacyWebhookSecret == "" {
		return false
	}

	env := gc.Environment
	if !env.Valid() {
		env = domain.EnvironmentSandbox
		gc.Environment = env
	}

	switch env {
	case domain.EnvironmentProduction:
		if gc.ProductionSecretKey == "" {
			gc.ProductionSecretKey = gc.LegacySecretKey
		}
		if gc.ProductionWebhookSecret == "" {
			gc.ProductionWebhookSecret = gc.LegacyWebhookSecret
		}
	default:
		if gc.SandboxSecretKey == "" {
			gc.SandboxSecretKey = gc.LegacySecretKey
		}
		if gc.SandboxWebhookSecret == "" {
			gc.SandboxWebhookSecret = gc.LegacyWebhookSecret
		}
	}

	gc.LegacySecretKey = ""
	gc.LegacyWebhookSecret = ""
	return true
}

// SaveConfig сохраняет конфигурацию сайта, выполняя перенос устаревших
// полей при первой записи. После переноса устаревшие поля не читаются.
func (r *Resolver) SaveConfig(cfg domain.TenantConfig) error {
	if MigrateLegacy(&cfg.Gateway) {
		r.logger.WithField("site_id", cfg.SiteID).Info("legacy gateway credentials migrated")
	}
	_, err := FromConfig(cfg.Gateway)
	cfg.Gateway.IsConfigured = err == nil
	return r.configs.Save(cfg)
}
