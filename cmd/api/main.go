package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/OpraEria/gather/config"
	"github.com/OpraEria/gather/internal/handler"
	authHandler "github.com/OpraEria/gather/internal/handler/auth"
	eventHandler "github.com/OpraEria/gather/internal/handler/event"
	notificationHandler "github.com/OpraEria/gather/internal/handler/notification"
	userHandler "github.com/OpraEria/gather/internal/handler/user"
	"github.com/OpraEria/gather/internal/middleware"
	"github.com/OpraEria/gather/internal/repository/postgres"
	"github.com/OpraEria/gather/internal/router"
	eventService "github.com/OpraEria/gather/internal/service/event"
	notificationService "github.com/OpraEria/gather/internal/service/notification"
	userService "github.com/OpraEria/gather/internal/service/user"
	"github.com/OpraEria/gather/pkg/auth"
	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging/redis"
	"github.com/OpraEria/gather/pkg/metrics"
	"github.com/OpraEria/gather/pkg/pushtransport"
	"github.com/OpraEria/gather/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	if err := handler.RegisterValidations(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	eventRepo := postgres.NewEventRepository(base)
	subscriptionRepo := postgres.NewSubscriptionRepository(base)

	// Services
	m := metrics.NewMetrics("gather")
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(12)
	sender := pushtransport.NewWebPushSender(pushtransport.Config{
		Subscriber:      cfg.WebPush.Subscriber,
		VAPIDPublicKey:  cfg.WebPush.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.WebPush.VAPIDPrivateKey,
		TTL:             cfg.WebPush.TTL,
	})

	userSvc := userService.NewService(userRepo, hasher, jwtSvc)
	notificationSvc := notificationService.NewService(
		subscriptionRepo, sender, broker, m, appLogger, cfg.Fanout.MaxConcurrency)
	eventSvc := eventService.NewService(eventRepo, userRepo, notificationSvc, broker, appLogger)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(userSvc)
	userH := userHandler.NewHandler(userSvc)
	eventH := eventHandler.NewHandler(eventSvc)
	notificationH := notificationHandler.NewHandler(notificationSvc)

	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(authMiddleware, authH, userH, eventH, notificationH, h, router.RouterConfig{
		RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst: cfg.RateLimit.Burst,
		CORS:      middleware.DefaultCORSConfig(),
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
