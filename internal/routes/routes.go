package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletbook/walletbook/internal/auth"
	"github.com/walletbook/walletbook/internal/config"
	"github.com/walletbook/walletbook/internal/identity"
	"github.com/walletbook/walletbook/internal/ledger"
	"github.com/walletbook/walletbook/internal/logging"
	"github.com/walletbook/walletbook/internal/middleware"
	"github.com/walletbook/walletbook/internal/notification"
	"github.com/walletbook/walletbook/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. Exactly one of
// DB or Badger is expected for the postgres and badger drivers; the memory
// driver needs neither.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Badger *badger.DB
	Logger *slog.Logger
}

type stores struct {
	identities identity.Repository
	wallets    wallet.Repository
	ledger     ledger.Ledger
}

func buildStores(d Deps) (stores, error) {
	switch d.Cfg.StorageDriver {
	case config.StoragePostgres:
		if d.DB == nil {
			return stores{}, fmt.Errorf("postgres pool is required for STORAGE_DRIVER=%s", d.Cfg.StorageDriver)
		}
		return stores{
			identities: identity.NewPostgresRepository(d.DB),
			wallets:    wallet.NewPostgresRepository(d.DB),
			ledger:     ledger.NewPostgresLedger(d.DB),
		}, nil
	case config.StorageBadger:
		if d.Badger == nil {
			return stores{}, fmt.Errorf("badger db is required for STORAGE_DRIVER=%s", d.Cfg.StorageDriver)
		}
		return stores{
			identities: identity.NewBadgerRepository(d.Badger),
			wallets:    wallet.NewBadgerRepository(d.Badger),
			ledger:     ledger.NewBadgerLedger(d.Badger),
		}, nil
	case config.StorageMemory:
		return stores{
			identities: identity.NewMemoryRepository(),
			wallets:    wallet.NewMemoryRepository(),
			ledger:     ledger.NewInMemory(),
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown storage driver %q", d.Cfg.StorageDriver)
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
	}

	st, err := buildStores(d)
	if err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.CORS(d.Cfg.CORSOrigin))

	RegisterHealthRoutes(app, d)

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(d.Cache, "")}
	}

	identitySvc := identity.NewService(st.identities)
	authSvc := auth.NewService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, st.identities)
	ledgerSvc := ledger.NewService(st.ledger, notifier, d.Logger)
	walletSvc := wallet.NewService(st.wallets, st.ledger, d.Logger)

	authHandler := auth.NewHandler(identitySvc, authSvc)
	walletHandler := wallet.NewHandler(walletSvc, ledgerSvc)
	txHandler := ledger.NewHandler(ledgerSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger))

	protected := api.Group("", middleware.JWTAuth(authSvc), middleware.WriteRateLimit(d.Cfg.WriteRateLimit))
	RegisterProfileRoutes(protected, authHandler)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterTransactionRoutes(protected, txHandler, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	return nil
}
