package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type tenantConfigRepository struct {
	db *sql.DB
}

// NewTenantConfigRepository создаёт PostgreSQL-реализацию TenantConfigRepository.
func NewTenantConfigRepository(store *Store) domain.TenantConfigRepository {
	return &tenantConfigRepository{db: store.DB()}
}

// gatewayRecord — представление ключей шлюза в JSONB-колонке.
// Секреты хранятся как есть; шифрование на уровне БД — забота деплоя.
type gatewayRecord struct {
	Environment string `json:"environment"`

	SandboxPublicKey     string `json:"sandbox_public_key,omitempty"`
	SandboxSecretKey     string `json:"sandbox_secret_key,omitempty"`
	SandboxWebhookSecret string `json:"sandbox_webhook_secret,omitempty"`

	ProductionPublicKey     string `json:"production_public_key,omitempty"`
	ProductionSecretKey     string `json:"production_secret_key,omitempty"`
	ProductionWebhookSecret string `json:"production_webhook_secret,omitempty"`

	LegacySecretKey     string `json:"legacy_secret_key,omitempty"`
	LegacyWebhookSecret string `json:"legacy_webhook_secret,omitempty"`

	IsConfigured bool `json:"is_configured"`
}

type deliveryRecord struct {
	StandardBaseMinor    int64 `json:"standard_base_minor,omitempty"`
	StandardPerItemMinor int64 `json:"standard_per_item_minor,omitempty"`
	ExpressBaseMinor     int64 `json:"express_base_minor,omitempty"`
	ExpressPerItemMinor  int64 `json:"express_per_item_minor,omitempty"`
	PickupCostMinor      int64 `json:"pickup_cost_minor,omitempty"`
	// Указатель различает «не задано» (null) и явный ноль процентов.
	TaxRateBasisPoints *int64 `json:"tax_rate_basis_points,omitempty"`
}

func (r *tenantConfigRepository) Get(siteID string) (domain.TenantConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		cfg         domain.TenantConfig
		gatewayRaw  []byte
		deliveryRaw []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT site_id, currency, gateway, delivery, updated_at
		FROM tenant_configs
		WHERE site_id = $1
	`, siteID).Scan(&cfg.SiteID, &cfg.Currency, &gatewayRaw, &deliveryRaw, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TenantConfig{}, domain.ErrTenantConfigNotFound
		}
		return domain.TenantConfig{}, fmt.Errorf("select tenant config: %w", err)
	}

	var gw gatewayRecord
	if len(gatewayRaw) > 0 {
		if err := json.Unmarshal(gatewayRaw, &gw); err != nil {
			return domain.TenantConfig{}, fmt.Errorf("decode gateway config: %w", err)
		}
	}
	cfg.Gateway = domain.GatewayConfig{
		Environment:             domain.Environment(gw.Environment),
		SandboxPublicKey:        gw.SandboxPublicKey,
		SandboxSecretKey:        gw.SandboxSecretKey,
		SandboxWebhookSecret:    gw.SandboxWebhookSecret,
		ProductionPublicKey:     gw.ProductionPublicKey,
		ProductionSecretKey:     gw.ProductionSecretKey,
		ProductionWebhookSecret: gw.ProductionWebhookSecret,
		LegacySecretKey:         gw.LegacySecretKey,
		LegacyWebhookSecret:     gw.LegacyWebhookSecret,
		IsConfigured:            gw.IsConfigured,
	}

	var dl deliveryRecord
	if len(deliveryRaw) > 0 {
		if err := json.Unmarshal(deliveryRaw, &dl); err != nil {
			return domain.TenantConfig{}, fmt.Errorf("decode delivery config: %w", err)
		}
	}
	cfg.Delivery = domain.DeliveryConfig{
		StandardBaseMinor:    dl.StandardBaseMinor,
		StandardPerItemMinor: dl.StandardPerItemMinor,
		ExpressBaseMinor:     dl.ExpressBaseMinor,
		ExpressPerItemMinor:  dl.ExpressPerItemMinor,
		PickupCostMinor:      dl.PickupCostMinor,
		TaxRateBasisPoints:   dl.TaxRateBasisPoints,
	}

	return cfg, nil
}

func (r *tenantConfigRepository) Save(cfg domain.TenantConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	gatewayRaw, err := json.Marshal(gatewayRecord{
		Environment:             string(cfg.Gateway.Environment),
		SandboxPublicKey:        cfg.Gateway.SandboxPublicKey,
		SandboxSecretKey:        cfg.Gateway.SandboxSecretKey,
		SandboxWebhookSecret:    cfg.Gateway.SandboxWebhookSecret,
		ProductionPublicKey:     cfg.Gateway.ProductionPublicKey,
		ProductionSecretKey:     cfg.Gateway.ProductionSecretKey,
		ProductionWebhookSecret: cfg.Gateway.ProductionWebhookSecret,
		LegacySecretKey:         cfg.Gateway.LegacySecretKey,
		LegacyWebhookSecret:     cfg.Gateway.LegacyWebhookSecret,
		IsConfigured:            cfg.Gateway.IsConfigured,
	})
	if err != nil {
		return fmt.Errorf("encode gateway config: %w", err)
	}

	deliveryRaw, err := json.Marshal(deliveryRecord{
		StandardBaseMinor:    cfg.Delivery.StandardBaseMinor,
		StandardPerItemMinor: cfg.Delivery.StandardPerItemMinor,
		ExpressBaseMinor:     cfg.Delivery.ExpressBaseMinor,
		ExpressPerItemMinor:  cfg.Delivery.ExpressPerItemMinor,
		PickupCostMinor:      cfg.Delivery.PickupCostMinor,
		TaxRateBasisPoints:   cfg.Delivery.TaxRateBasisPoints,
	})
	if err != nil {
		return fmt.Errorf("encode delivery config: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_configs (site_id, currency, gateway, delivery, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (site_id) DO UPDATE
		SET currency = EXCLUDED.currency,
		    gateway = EXCLUDED.gateway,
		    delivery = EXCLUDED.delivery,
		    updated_at = EXCLUDED.updated_at
	`, cfg.SiteID, cfg.Currency, gatewayRaw, deliveryRaw, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert tenant config: %w", err)
	}

	return nil
}

var _ domain.TenantConfigRepository = (*tenantConfigRepository)(nil)
