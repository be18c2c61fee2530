package credentials_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestFromConfig_EnvironmentSelection(t *testing.T) {
	gc := domain.GatewayConfig{
		Environment:             domain.EnvironmentProduction,
		SandboxSecretKey:        "sk_sandbox",
		SandboxWebhookSecret:    "whsec_sandbox",
		ProductionSecretKey:     "sk_production",
		ProductionWebhookSecret: "whsec_production",
	}

	creds, err := credentials.FromConfig(gc)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if creds.SecretKey != "sk_production" || creds.WebhookSecret != "whsec_production" {
		t.Fatalf("production env must select production keys, got %+v", creds)
	}

	gc.Environment = domain.EnvironmentSandbox
	creds, err = credentials.FromConfig(gc)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if creds.SecretKey != "sk_sandbox" || creds.WebhookSecret != "whsec_sandbox" {
		t.Fatalf("sandbox env must select sandbox keys, got %+v", creds)
	}
}

func TestFromConfig_NoCrossEnvironmentFallback(t *testing.T) {
	// Production заявлен, но настроен только sandbox: фолбэка нет.
	gc := domain.GatewayConfig{
		Environment:      domain.EnvironmentProduction,
		SandboxSecretKey: "sk_sandbox",
	}

	if _, err := credentials.FromConfig(gc); !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
	}
}

func TestFromConfig_InvalidEnvironmentDefaultsToSandbox(t *testing.T) {
	gc := domain.GatewayConfig{
		Environment:      "staging",
		SandboxSecretKey: "sk_sandbox",
	}

	creds, err := credentials.FromConfig(gc)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if creds.Environment != domain.EnvironmentSandbox || creds.SecretKey != "sk_sandbox" {
		t.Fatalf("unknown env must default to sandbox, got %+v", creds)
	}
}

func TestMigrateLegacy(t *testing.T) {
	gc := domain.GatewayConfig{
		Environment:         domain.EnvironmentSandbox,
		LegacySecretKey:     "sk_legacy",
		LegacyWebhookSecret: "whsec_legacy",
	}

	if !credentials.MigrateLegacy(&gc) {
		t.Fatal("expected migration to report a change")
	}
	if gc.SandboxSecretKey != "sk_legacy" || gc.SandboxWebhookSecret != "whsec_legacy" {
		t.Fatalf("legacy keys must move into sandbox fields, got %+v", gc)
	}
	if gc.LegacySecretKey != "" || gc.LegacyWebhookSecret != "" {
		t.Fatal("legacy fields must be cleared after migration")
	}

	// Повторный вызов — no-op.
	if credentials.MigrateLegacy(&gc) {
		t.Fatal("second migration must be a no-op")
	}
}

func TestMigrateLegacy_DoesNotOverwrite(t *testing.T) {
	gc := domain.GatewayConfig{
		Environment:      domain.EnvironmentSandbox,
		SandboxSecretKey: "sk_current",
		LegacySecretKey:  "sk_legacy",
	}

	credentials.MigrateLegacy(&gc)
	if gc.SandboxSecretKey != "sk_current" {
		t.Fatalf("existing key must not be overwritten, got %q", gc.SandboxSecretKey)
	}
}

func TestResolver_ResolveAndSave(t *testing.T) {
	repo := memory.NewTenantConfigRepository()
	resolver := credentials.NewResolver(repo, nil)

	if _, err := resolver.Resolve("unknown-site"); !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Fatalf("unknown site must resolve to ErrGatewayNotConfigured, got %v", err)
	}

	err := resolver.SaveConfig(domain.TenantConfig{
		SiteID: "site-1",
		Gateway: domain.GatewayConfig{
			Environment:         domain.EnvironmentSandbox,
			LegacySecretKey:     "sk_legacy",
			LegacyWebhookSecret: "whsec_legacy",
		},
	})
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	creds, err := resolver.Resolve("site-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if creds.SecretKey != "sk_legacy" || creds.WebhookSecret != "whsec_legacy" {
		t.Fatalf("migrated legacy keys expected, got %+v", creds)
	}

	saved, err := repo.Get("site-1")
	if err != nil {
		t.Fatalf("Get saved config: %v", err)
	}
	if !saved.Gateway.IsConfigured {
		t.Fatal("saved config must be marked configured")
	}
	if saved.Gateway.LegacySecretKey != "" {
		t.Fatal("legacy key must not survive save")
	}
}
