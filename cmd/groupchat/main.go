package main

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/kgellert/hodatay-groupchat/internal/auth"
	"github.com/kgellert/hodatay-groupchat/internal/config"
	configHandler "github.com/kgellert/hodatay-groupchat/internal/config/handler"
	"github.com/kgellert/hodatay-groupchat/internal/groups"
	groupsrepo "github.com/kgellert/hodatay-groupchat/internal/groups/repo"
	mwLogger "github.com/kgellert/hodatay-groupchat/internal/http-server/middleware/logger"
	response "github.com/kgellert/hodatay-groupchat/internal/lib"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	messagesHandler "github.com/kgellert/hodatay-groupchat/internal/messages/handler"
	messagesrepo "github.com/kgellert/hodatay-groupchat/internal/messages/repo"
	"github.com/kgellert/hodatay-groupchat/internal/messages/service"
	"github.com/kgellert/hodatay-groupchat/internal/risk"
	"github.com/kgellert/hodatay-groupchat/internal/storage"
	"github.com/kgellert/hodatay-groupchat/internal/throttle"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
	uploadsHandler "github.com/kgellert/hodatay-groupchat/internal/uploads/handler"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
	wsHandler "github.com/kgellert/hodatay-groupchat/internal/ws/handler"
	"github.com/kgellert/hodatay-groupchat/internal/ws/hub"
	"github.com/kgellert/hodatay-groupchat/internal/ws/relay"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting groupchat", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	groupsRepo := groupsrepo.New(db)
	messagesRepo := messagesrepo.New(db)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", sl.Err(err))
			os.Exit(1)
		}
	}

	limiter, err := setupThrottle(ctx, cfg.Throttle, redisClient, cfg.Messages.LiveLocationWindow, log)
	if err != nil {
		log.Error("failed to init throttle", sl.Err(err))
		os.Exit(1)
	}

	h := hub.NewHub(log)
	go h.Run(ctx)

	publisher, err := setupPublisher(ctx, cfg.Realtime, redisClient, h, log)
	if err != nil {
		log.Error("failed to init realtime relay", sl.Err(err))
		os.Exit(1)
	}

	var resolver uploads.Resolver = uploads.Passthrough{}
	var objectStorage *uploads.Storage
	if cfg.S3.Bucket != "" {
		s3Client, err := uploads.NewS3Client(ctx, cfg.S3)
		if err != nil {
			log.Error("failed to load aws config", sl.Err(err))
			os.Exit(1)
		}
		objectStorage = uploads.NewStorage(cfg.S3.Bucket, cfg.S3.KeyPrefix, s3Client, s3.NewPresignClient(s3Client))
		resolver = objectStorage
	}

	svc := service.New(
		messagesRepo,
		groups.NewGuard(groupsRepo),
		resolver,
		limiter,
		publisher,
		service.Config{
			MaxAttachments:     cfg.Messages.MaxAttachments,
			StoreTimeout:       cfg.Messages.StoreTimeout,
			LiveLocationWindow: cfg.Messages.LiveLocationWindow,
		},
		log,
	)

	if cfg.Risk.AMQPURL != "" {
		consumer := risk.NewConsumer(risk.NewNotifier(publisher), log)
		go func() {
			if err := consumer.Run(ctx, cfg.Risk.AMQPURL, cfg.Risk.Queue); err != nil {
				log.Error("risk consumer stopped", sl.Err(err))
			}
		}()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			log.Error("health check failed", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, response.SuccessResponse{Success: true})
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))

		r.Get("/config", configHandler.New(cfg, log).GetConfig())

		messagesHandler.New(svc, log).Routes(r)

		if objectStorage != nil {
			uploadsHandler.New(objectStorage, log).Routes(r)
		}

		r.Get("/ws", wsHandler.New(h, svc, cfg.Realtime.SendBuffer, log).ServeWS())
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}

	log.Info("server stopped")
}

func setupThrottle(
	ctx context.Context,
	cfg config.ThrottleConfig,
	client *redis.Client,
	window time.Duration,
	log *slog.Logger,
) (throttle.Throttle, error) {
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("throttle backend redis needs redis.addr")
		}
		return throttle.NewRedis(client, cfg.Prefix), nil

	case "", "memory":
		m := throttle.NewMemory()
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := m.Sweep(window); n > 0 {
						log.Debug("swept live location throttle", slog.Int("dropped", n))
					}
				}
			}
		}()
		return m, nil
	}

	return nil, errors.New("unknown throttle backend " + cfg.Backend)
}

func setupPublisher(
	ctx context.Context,
	cfg config.RealtimeConfig,
	client *redis.Client,
	h *hub.Hub,
	log *slog.Logger,
) (ws.Publisher, error) {
	switch cfg.Relay {
	case "redis":
		if client == nil {
			return nil, errors.New("realtime relay redis needs redis.addr")
		}

		r := relay.NewRedis(client, cfg.Channel, h, log)
		ready := make(chan struct{})
		errCh := make(chan error, 1)
		go func() { errCh <- r.Run(ctx, ready) }()

		select {
		case <-ready:
		case err := <-errCh:
			if err == nil {
				err = errors.New("realtime relay stopped before subscribing")
			}
			return nil, err
		}

		go func() {
			if err := <-errCh; err != nil {
				log.Error("realtime relay stopped", sl.Err(err))
			}
		}()
		return r, nil

	case "", "local":
		return h, nil
	}

	return nil, errors.New("unknown realtime relay " + cfg.Relay)
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
