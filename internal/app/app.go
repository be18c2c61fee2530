// Пакет app собирает зависимости витрины и управляет жизненным циклом
// HTTP-серверов и фоновых воркеров.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/gateway"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/audit"
	"github.com/vladislavdragonenkov/storefront/internal/service/cancellation"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/credentials"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/webhook"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	transport "github.com/vladislavdragonenkov/storefront/internal/transport/http"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Config описывает настройки запуска приложения.
type Config struct {
	APIAddr     string
	MetricsAddr string

	// DatabaseDSN пустой означает in-memory хранилище.
	DatabaseDSN string
	// KafkaBrokers пустой означает запуск без публикации событий.
	KafkaBrokers string
	// GatewayBaseURL переопределяет адрес API платёжного шлюза
	// (тестовые стенды, прокси); пустой — адрес шлюза по умолчанию.
	GatewayBaseURL string

	// Catalog — клиент каталога платформы; nil означает mock-каталог
	// для локального запуска без платформенных сервисов.
	Catalog domain.CatalogService
}

// DefaultConfig возвращает базовые адреса API и HTTP-метрик.
func DefaultConfig() Config {
	return Config{
		APIAddr:     ":8080",
		MetricsAddr: ":9090",
	}
}

// repositories — набор хранилищ, собранный под выбранный backend.
type repositories struct {
	orders    domain.OrderRepository
	carts     domain.CartRepository
	tenants   domain.TenantConfigRepository
	ledger    domain.LedgerRepository
	processed domain.ProcessedEventRepository
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository

	store *postgres.Store
}

func buildRepositories(ctx context.Context, cfg Config, logger *log.Entry) (repositories, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("database DSN is empty, using in-memory storage")
		return repositories{
			orders:    memory.NewOrderRepository(),
			carts:     memory.NewCartRepository(),
			tenants:   memory.NewTenantConfigRepository(),
			ledger:    memory.NewLedgerRepository(),
			processed: memory.NewProcessedEventRepository(),
			outbox:    memory.NewOutboxRepository(),
			timeline:  memory.NewTimelineRepository(),
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return repositories{}, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return repositories{}, err
	}
	logger.Info("postgres storage initialized")

	return repositories{
		orders:    postgres.NewOrderRepository(store),
		carts:     postgres.NewCartRepository(store),
		tenants:   postgres.NewTenantConfigRepository(store),
		ledger:    postgres.NewLedgerRepository(store),
		processed: postgres.NewProcessedEventRepository(store),
		outbox:    postgres.NewOutboxRepository(store),
		timeline:  postgres.NewTimelineRepository(store),
		store:     store,
	}, nil
}

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	repos, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if repos.store != nil {
			_ = repos.store.Close()
		}
	}()

	commerceMetrics := metrics.NewCommerceMetrics()

	catalogSvc := cfg.Catalog
	if catalogSvc == nil {
		logger.Info("catalog client is not configured, using in-memory catalog")
		catalogSvc = catalog.NewMockService()
	}

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, logger.WithField("component", "gateway"))
	credsResolver := credentials.NewResolver(repos.tenants, logger.WithField("component", "credentials"))
	recorder := audit.NewRecorder(repos.outbox, repos.timeline, commerceMetrics, logger.WithField("component", "audit"))

	cartSvc := cart.NewService(repos.carts, catalogSvc, logger.WithField("component", "cart"))
	checkoutSvc := checkout.NewService(
		repos.orders, cartSvc, repos.tenants, catalogSvc,
		credsResolver, gatewayClient, recorder, commerceMetrics,
		logger.WithField("component", "checkout"),
	)
	cancelSvc := cancellation.NewService(
		repos.orders, credsResolver, gatewayClient, recorder, commerceMetrics,
		logger.WithField("component", "cancellation"),
	)
	reconciler := webhook.NewReconciler(
		repos.orders, repos.ledger, repos.processed,
		credsResolver, recorder, commerceMetrics,
		logger.WithField("component", "webhook"),
	)

	// Kafka producer и outbox worker опциональны: без брокеров события
	// копятся в outbox и могут быть опубликованы после включения Kafka.
	var kafkaProducer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")

			publisher := kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
			dlq := kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
			worker := outbox.NewWorker(repos.outbox, publisher,
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(dlq),
			)
			go worker.Run(ctx)
		}
	}

	cleanup := webhook.NewCleanupWorker(repos.processed,
		webhook.WithLogger(logger.WithField("component", "webhook-cleanup")),
	)
	go cleanup.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if repos.store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return repos.store.Ping(checkCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiServer := transport.NewServer(
		cartSvc, checkoutSvc, cancelSvc, reconciler,
		repos.orders, repos.timeline,
		logger.WithField("component", "http"),
	)
	apiSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API сервер слушает %s", cfg.APIAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем API сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
