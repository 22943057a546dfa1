package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/auth"
	"github.com/iliyamo/product-watch/internal/config"
	"github.com/iliyamo/product-watch/internal/database"
	"github.com/iliyamo/product-watch/internal/handler"
	"github.com/iliyamo/product-watch/internal/middleware"
	"github.com/iliyamo/product-watch/internal/queue"
	"github.com/iliyamo/product-watch/internal/repository"
	"github.com/iliyamo/product-watch/internal/router"
	"github.com/iliyamo/product-watch/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// The Redis client may come back nil; every consumer of it degrades:
	// caching and rate limiting switch off, token liveness follows the
	// strict/lax policy.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; cache and rate limiting disabled")
	}

	engine := auth.NewTokenEngine(cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays,
		auth.NewTokenStore(rdb), cfg.StrictTokens)

	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	visits := repository.NewVisitRepo(db)

	notifier := service.NewRabbitNotifier()
	productSvc := service.NewProductService(products, users, notifier, rdb, cfg.ProductCacheTTL)
	visitSvc := service.NewVisitService(visits, products)

	limiter := middleware.NewRateLimiter(rdb, config.LoadRateLimitConfig())

	// Notification consumer runs for the life of the process and handles
	// its own reconnects.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	if cfg.ReportInterval > 0 {
		reporter := service.NewDailyReporter(visitSvc, users, notifier, cfg.ReportInterval)
		go reporter.Run(context.Background())
	}

	e := echo.New()
	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(cfg, users, engine),
		Products:  handler.NewProductHandler(productSvc, visitSvc),
		Visits:    handler.NewVisitHandler(visitSvc),
		UserGate:  middleware.AuthGate(engine, users, limiter, false),
		AdminGate: middleware.AuthGate(engine, users, limiter, true),
		Tracking:  middleware.VisitTracking(visitSvc),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
