package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tiered-ledger/config"
	httpHandler "tiered-ledger/internal/adapter/http/handler"
	"tiered-ledger/internal/adapter/storage/memory"
	pgStorage "tiered-ledger/internal/adapter/storage/postgres"
	redisStorage "tiered-ledger/internal/adapter/storage/redis"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/internal/service"
	"tiered-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	accounts     ports.AccountRepository
	transactions ports.TransactionRepository
	paymentModes ports.PaymentModeRepository
	settlements  ports.SettlementRepository
	adjustments  ports.PLAdjustmentRepository
	idempotency  ports.IdempotencyRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Tiered Ledger")

	ctx := context.Background()

	repos, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeStorage()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional. Without it the game feed has no replay protection,
	// PIN lockout and rate limiting are off, and idempotency relies on storage.
	var (
		idempotencyCache ports.IdempotencyCache
		nonceStore       ports.NonceStore
		attemptLimiter   ports.AttemptLimiter
		rateLimitStore   *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		nonceStore = redisStorage.NewNonceStore(rdb)
		attemptLimiter = redisStorage.NewAttemptLimiter(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: PIN lockout, rate limiting and game feed replay protection are off")
	}

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	accountSvc := service.NewAccountService(repos.accounts, hashSvc, logger.Component(log, "accounts"))
	credSvc := service.NewCredentialService(
		repos.accounts,
		hashSvc,
		attemptLimiter,
		cfg.Security.MaxPinAttempts,
		cfg.Security.PinLockoutWindow,
		logger.Component(log, "credentials"),
	)
	balanceSvc := service.NewBalanceService(repos.accounts, repos.transactions, repos.adjustments, repos.settlements, logger.Component(log, "balances"))
	ledgerSvc := service.NewLedgerService(repos.transactions, balanceSvc, logger.Component(log, "ledger"))
	workflowSvc := service.NewWorkflowService(
		repos.accounts,
		repos.paymentModes,
		repos.transactions,
		ledgerSvc,
		credSvc,
		repos.transactor,
		logger.Component(log, "workflow"),
	)
	settlementSvc := service.NewSettlementService(
		repos.accounts,
		repos.settlements,
		ledgerSvc,
		balanceSvc,
		credSvc,
		repos.transactor,
		logger.Component(log, "settlement"),
	)
	gameResultSvc := service.NewGameResultService(
		repos.accounts,
		repos.adjustments,
		repos.idempotency,
		idempotencyCache,
		ledgerSvc,
		balanceSvc,
		repos.transactor,
		logger.Component(log, "game_results"),
	)
	paymentModeSvc := service.NewPaymentModeService(repos.accounts, repos.paymentModes, encSvc, logger.Component(log, "payment_modes"))
	authSvc := service.NewAuthService(repos.accounts, credSvc, tokenSvc)
	reportingSvc := service.NewReportingService(repos.accounts, repos.transactions, balanceSvc)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	if cfg.Bootstrap.Username != "" && cfg.Bootstrap.Password != "" {
		root, err := accountSvc.EnsurePowerhouse(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.Password, cfg.Bootstrap.Pin)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap powerhouse account")
		}
		log.Info().Str("account_id", root.ID.String()).Str("username", root.Username).Msg("Powerhouse account ready")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		AccountSvc:     accountSvc,
		BalanceSvc:     balanceSvc,
		CredentialSvc:  credSvc,
		WorkflowSvc:    workflowSvc,
		SettlementSvc:  settlementSvc,
		GameResultSvc:  gameResultSvc,
		PaymentModeSvc: paymentModeSvc,
		ReportingSvc:   reportingSvc,
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		NonceStore:     nonceStore,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		HealthCheckers: healthCheckers,
		GameFeedSecret: cfg.Security.GameFeedSecret,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage connects the configured backend. The returned func releases it.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, all data is lost on exit")
		store := memory.NewStore()
		return &repositories{
			accounts:     memory.NewAccountRepo(store),
			transactions: memory.NewTransactionRepo(store),
			paymentModes: memory.NewPaymentModeRepo(store),
			settlements:  memory.NewSettlementRepo(store),
			adjustments:  memory.NewPLAdjustmentRepo(store),
			idempotency:  memory.NewIdempotencyRepo(store),
			audit:        memory.NewAuditRepo(store),
			transactor:   store,
			health:       store,
		}, func() {}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("applying schema: %w", err)
	}
	log.Info().Msg("PostgreSQL schema applied")

	return &repositories{
		accounts:     pgStorage.NewAccountRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		paymentModes: pgStorage.NewPaymentModeRepo(pool),
		settlements:  pgStorage.NewSettlementRepo(pool),
		adjustments:  pgStorage.NewPLAdjustmentRepo(pool),
		idempotency:  pgStorage.NewIdempotencyRepo(pool),
		audit:        pgStorage.NewAuditRepository(pool),
		transactor:   pgStorage.NewTransactor(pool),
		health:       pgStorage.NewHealthCheck(pool),
	}, pool.Close, nil
}
