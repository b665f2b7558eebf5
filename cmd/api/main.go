package main

import (
	"log"

	_ "tourinvoice/api/swagger" // swagger docs
	"tourinvoice/internal/attachment"
	"tourinvoice/internal/calculator"
	"tourinvoice/internal/config"
	"tourinvoice/internal/database"
	"tourinvoice/internal/handler"
	"tourinvoice/internal/logger"
	"tourinvoice/internal/metrics"
	"tourinvoice/internal/money"
	"tourinvoice/internal/render"
	"tourinvoice/internal/repository"
	"tourinvoice/internal/service"
	"tourinvoice/internal/wizard"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Tour Invoice API
// @version         1.0
// @description     Multi-step tour expense claims: wizard, validation and PDF reports.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := config.LoadDotEnv("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewConnection(cfg.DBDriver, cfg.DSN(), zlog)
	if err != nil {
		zlog.Fatal("Database connection failed", zap.Error(err))
	}
	zlog.Info("Connected to database", zap.String("driver", cfg.DBDriver))

	formatter, err := money.NewFormatter(cfg.CurrencyLocale)
	if err != nil {
		zlog.Fatal("Currency formatter setup failed", zap.Error(err))
	}
	source, err := attachment.New(cfg.AttachmentDir, cfg.AttachmentS3Bucket, cfg.AWSRegion)
	if err != nil {
		zlog.Fatal("Attachment source setup failed", zap.Error(err))
	}
	m := metrics.New(prometheus.DefaultRegisterer)

	// Set up dependencies (Repository -> Service -> Handler)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	txManager := repository.NewTransactionManager(db)

	calc := calculator.New(cfg.DARate)
	renderer := render.NewRenderer(render.DefaultOptions(formatter, cfg.DARate), source, zlog.Named("render"), m)
	invoiceService := service.NewInvoiceService(invoiceRepo, auditRepo, txManager, renderer, cfg.RenderTempDir, m, zlog.Named("invoice"))
	wizardService := service.NewWizardService(snapshotRepo, calc, invoiceService, auditRepo, zlog.Named("wizard"), wizard.WithMetrics(m))
	auditService := service.NewAuditService(auditRepo)

	wizardHandler := handler.NewWizardHandler(wizardService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, zlog.Named("http"))
	auditHandler := handler.NewAuditHandler(auditService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(zlog.Named("http")))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", logger.HeaderRequestID}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", logger.HeaderRequestID}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	wizardHandler.RegisterRoutes(router.Group(""))
	invoiceHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	zlog.Info("Server listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
