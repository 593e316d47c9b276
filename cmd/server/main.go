package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/railway-reservation/internal/config"
	"github.com/iliyamo/railway-reservation/internal/database"
	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/handler"
	"github.com/iliyamo/railway-reservation/internal/middleware"
	"github.com/iliyamo/railway-reservation/internal/mirror"
	"github.com/iliyamo/railway-reservation/internal/repository"
	"github.com/iliyamo/railway-reservation/internal/router"
	"github.com/iliyamo/railway-reservation/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
		Path:   cfg.DBPath,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dialect := repository.MySQL
	if cfg.DBDriver == database.DriverSQLite {
		dialect = repository.SQLite
	}
	store := repository.NewStore(db, dialect)
	idx := mirror.New()
	eng := engine.New(engine.Using(store.Begin), idx, store)
	if err := eng.RebuildMirror(ctx); err != nil {
		log.Fatalf("load mirror: %v", err)
	}
	log.Infof("mirror loaded with %d trains", idx.Len())

	var pub service.Publisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub = service.NewRabbitPublisher(cfg.RabbitURL, cfg.EventQueue)
	} else {
		log.Warn("RABBITMQ_URL not set; booking events disabled")
	}
	defer pub.Close()
	notifier := service.NewNotifier(pub, service.DefaultNotifyBuffer)
	defer notifier.Close()

	rdb := config.NewRedisClient()
	var cacheStore middleware.CacheStore
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		cacheStore = rdb
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), cacheStore, idx.Generation)

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	bookings := handler.NewBookingHandler(eng, notifier)
	trains := handler.NewTrainHandler(eng, idx)
	reports := handler.NewReportHandler(eng, idx)

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, trains, bookings, limiter, cache)
	router.RegisterBooking(e, bookings, trains, cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, trains, bookings, reports, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
