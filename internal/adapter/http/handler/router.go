package handler

import (
	"tiered-ledger/internal/adapter/http/middleware"
	redisStore "tiered-ledger/internal/adapter/storage/redis"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	AccountSvc     ports.AccountService
	BalanceSvc     ports.BalanceService
	CredentialSvc  ports.CredentialService
	WorkflowSvc    ports.WorkflowService
	SettlementSvc  ports.SettlementService
	GameResultSvc  ports.GameResultService
	PaymentModeSvc ports.PaymentModeService
	ReportingSvc   ports.ReportingService
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	NonceStore     ports.NonceStore           // nil = no replay protection on the game feed
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	GameFeedSecret string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login/", rl("auth_login"), authHandler.Login)

	// --- HMAC-authenticated game feed ---
	gameHandler := NewGameResultHandler(deps.GameResultSvc)
	feed := v1.Group("/internal", middleware.GameFeedAuth(deps.GameFeedSecret, deps.SigSvc, deps.NonceStore, deps.Logger))
	{
		feed.POST("/game-results/", rl("game_feed"), gameHandler.Record)
	}

	// --- JWT-authenticated routes, {role} must match the token ---
	tiered := v1.Group("/:role", middleware.JWTAuth(deps.TokenSvc), middleware.RequireRole())

	accountHandler := NewAccountHandler(deps.AccountSvc, deps.BalanceSvc)
	accounts := tiered.Group("/accounts")
	{
		accounts.POST("/", rl("mutations"), accountHandler.Create)
		accounts.GET("/:id/", rl("reads"), accountHandler.Get)
		accounts.GET("/:id/descendants/", rl("reads"), accountHandler.Descendants)
		accounts.GET("/:id/balance/", rl("reads"), accountHandler.Balance)
		accounts.GET("/:id/reconcile/", rl("reads"), accountHandler.Reconcile)
		accounts.POST("/:id/deactivate/", rl("mutations"), accountHandler.Deactivate)
		accounts.POST("/:id/activate/", rl("mutations"), accountHandler.Activate)
		accounts.POST("/:id/exposure-limit/", rl("mutations"), accountHandler.SetExposureLimit)
	}

	ledgerHandler := NewLedgerHandler(deps.WorkflowSvc)
	for path, txType := range map[string]domain.TransactionType{
		"/deposits":    domain.TransactionTypeDeposit,
		"/withdrawals": domain.TransactionTypeWithdrawal,
	} {
		g := tiered.Group(path)
		g.GET("/", rl("reads"), ledgerHandler.List(txType))
		g.POST("/create/", rl("mutations"), ledgerHandler.Create(txType))
		g.POST("/direct/", rl("mutations"), ledgerHandler.Direct(txType))
		g.POST("/:id/approve/", rl("mutations"), ledgerHandler.Approve(txType))
		g.POST("/:id/reject/", rl("mutations"), ledgerHandler.Reject(txType))
	}
	tiered.POST("/bonuses/direct/", rl("mutations"), ledgerHandler.Direct(domain.TransactionTypeBonus))
	tiered.POST("/commissions/direct/", rl("mutations"), ledgerHandler.Direct(domain.TransactionTypeCommission))

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	tiered.POST("/settlement/:masterId/", middleware.RequireRole(domain.RoleSuper), rl("mutations"), settlementHandler.Settle)
	tiered.GET("/settlements/", rl("reads"), settlementHandler.List)

	credentialHandler := NewCredentialHandler(deps.AccountSvc, deps.CredentialSvc)
	tiered.POST("/:userType/:id/regenerate-pin/", rl("credentials"), credentialHandler.RegeneratePin)
	tiered.POST("/:userType/:id/reset-password/", rl("credentials"), credentialHandler.ResetPassword)

	reportHandler := NewReportHandler(deps.ReportingSvc)
	tiered.GET("/accounting-report/", rl("reads"), reportHandler.AccountingReport)

	paymentModeHandler := NewPaymentModeHandler(deps.PaymentModeSvc)
	modes := tiered.Group("/payment-modes", middleware.RequireRole(domain.RoleMaster))
	{
		modes.GET("/", rl("reads"), paymentModeHandler.List)
		modes.POST("/", rl("mutations"), paymentModeHandler.Create)
		modes.POST("/:id/active/", rl("mutations"), paymentModeHandler.SetActive)
	}

	return r
}
