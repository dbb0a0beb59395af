package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"wordledger/internal/caching"
	"wordledger/internal/config"
	"wordledger/internal/handlers"
	"wordledger/internal/jobs"
	"wordledger/internal/middleware"
	"wordledger/internal/repositories"
	"wordledger/internal/services"
	"wordledger/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	storageSvc, err := services.NewStorageService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	opsRepo := repositories.NewOpsLogRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Create services
	ledgerSvc := services.NewLedgerService(ledgerRepo, tenantRepo)
	tenantSvc := services.NewTenantService(tenantRepo, opsRepo, cacheSvc)
	auditSvc := services.NewAuditService(txRepo, opsRepo, storageSvc, cfg.BackupBucket)

	// Create handlers
	authHandlers := handlers.NewAuthHandlers(cfg.AdminSecret, cfg.JWTSecret, cfg.AdminTokenTTL)
	ledgerHandlers := handlers.NewLedgerHandlers(ledgerSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	auditHandlers := handlers.NewAuditHandlers(auditSvc, opsRepo)
	healthHandlers := handlers.NewHealthHandlers(pool)

	// Background reconciliation
	reconciler, err := jobs.NewReconciler(tenantRepo, txRepo, cfg.ReconcileInterval)
	if err != nil {
		log.Fatalf("Failed to initialize reconciliation job: %v", err)
	}
	reconciler.Start()
	defer reconciler.Stop()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	v1 := e.Group("/v1")
	v1.POST("/auth/admin/login", authHandlers.AdminLogin)

	// Tenant self-service routes (per-tenant API key)
	tenant := v1.Group("")
	tenant.Use(middleware.TenantAuth(tenantRepo, cacheSvc))
	tenant.POST("/charge", ledgerHandlers.Charge, middleware.RateLimitByTenant(cacheSvc, cfg.ChargeRateLimit, cfg.ChargeRateWindow))
	tenant.GET("/balance", ledgerHandlers.GetBalance)
	tenant.GET("/audit/history", auditHandlers.OwnHistory)

	// Administrative routes (admin JWT)
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))

	admin.POST("/tenants", tenantHandlers.CreateTenant)
	admin.GET("/tenants", tenantHandlers.ListTenants)
	admin.DELETE("/tenants/:id", tenantHandlers.DeleteTenant)
	admin.PUT("/tenants/:id/tariffs", tenantHandlers.SetTariffs)
	admin.PUT("/tenants/:id/metadata", tenantHandlers.UpdateMetadata)
	admin.POST("/tenants/:id/rotate-key", tenantHandlers.RotateAPIKey)
	admin.GET("/tenants/export", tenantHandlers.ExportTenants)

	admin.POST("/payments", ledgerHandlers.RegisterPayment)
	admin.POST("/adjustments", ledgerHandlers.AdminAdjustment)

	admin.GET("/audit", auditHandlers.ListAll)
	admin.GET("/audit/tenants/:tenant_id", auditHandlers.TenantHistory)
	admin.POST("/audit/delete-range", auditHandlers.DeleteRange)
	admin.POST("/audit/delete-by-tenant", auditHandlers.DeleteByTenant)
	admin.POST("/audit/delete-by-service", auditHandlers.DeleteByService)
	admin.POST("/audit/reset", auditHandlers.Reset)
	admin.GET("/audit/export", auditHandlers.ExportCSV)
	admin.POST("/audit/backup", auditHandlers.Backup)
	admin.GET("/ops", auditHandlers.ListOps)

	log.Printf("wordledger v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
