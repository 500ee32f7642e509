package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/gedebog_store/internal/admin"
	"github.com/Skotchmaster/gedebog_store/internal/backend"
	"github.com/Skotchmaster/gedebog_store/internal/cart"
	"github.com/Skotchmaster/gedebog_store/internal/catalog"
	"github.com/Skotchmaster/gedebog_store/internal/checkout"
	"github.com/Skotchmaster/gedebog_store/internal/config"
	"github.com/Skotchmaster/gedebog_store/internal/db"
	"github.com/Skotchmaster/gedebog_store/internal/es"
	"github.com/Skotchmaster/gedebog_store/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/gedebog_store/internal/middleware/logging"
	"github.com/Skotchmaster/gedebog_store/internal/mykafka"
	"github.com/Skotchmaster/gedebog_store/internal/orders"
	"github.com/Skotchmaster/gedebog_store/internal/realtime"
	"github.com/Skotchmaster/gedebog_store/internal/service/search"
	"github.com/Skotchmaster/gedebog_store/internal/session"
	"github.com/Skotchmaster/gedebog_store/internal/storage"
	httpserver "github.com/Skotchmaster/gedebog_store/internal/transport/http"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	runCtx, cancelRun := context.WithCancel(cmd.Context())
	defer cancelRun()

	cfg, logger, gdb, err := bootstrap(runCtx)
	if err != nil {
		return err
	}
	config.MustNonEmptyBytes(cfg.SessionSecret, "SESSION_SECRET")

	if autoMigrate {
		if err := db.Migrate(gdb); err != nil {
			return err
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	hub := realtime.NewHub(logger)
	var notifier realtime.Notifier
	var listener *realtime.PGListener
	if isPostgres(cfg.DatabaseURL) {
		notifier = &realtime.PGNotifier{DB: sqlDB, Channel: cfg.RealtimeChannel}
		listener, err = realtime.NewPGListener(cfg.DatabaseURL, cfg.RealtimeChannel, hub, logger)
		if err != nil {
			return err
		}
		go listener.Run(runCtx)
	}

	objects, err := storage.NewDir(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		return err
	}
	client := backend.New(gdb, hub, notifier, objects)

	var cache catalog.Cache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(runCtx).Err(); err != nil {
			logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		}
		cache = catalog.NewRedisCache(rdb)
	}

	var searcher catalog.Searcher
	var indexer admin.Indexer
	esClient, err := es.NewClient(es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword}, logger)
	if err != nil {
		logger.Warn("search_index_unavailable", "reason", "fallback_to_db", "error", err)
	} else if ix := search.New(esClient, cfg.ESIndex); ix != nil {
		searcher, indexer = ix, ix
	}

	producer := mykafka.NewProducer(cfg.KafkaBrokers)

	cat := catalog.New(client, cache, searcher)
	catalogWatch := cat.Watch(client)
	carts := cart.NewRegistry(client, cfg.CartIdleTTL, logger)
	go carts.Run(runCtx)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(logger),
		csrf.Middleware(csrf.Config{
			Secure:       cfg.CookieSecure,
			SkipPrefixes: []string{"/health/"},
		}),
	)

	deps := httpserver.Deps{
		Backend: client,
		Sessions: session.CookieCodec{
			Secret: cfg.SessionSecret,
			Secure: cfg.CookieSecure,
		},
		Carts:    carts,
		Catalog:  cat,
		Checkout: checkout.New(client, producer),
		History:  orders.NewHistory(client),
		Admin:    admin.New(client, cat, indexer, producer),
		Producer: producer,
		Ready: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
	}
	if strings.HasPrefix(cfg.MediaBaseURL, "/") {
		deps.Media = objects.Handler()
		deps.MediaPrefix = strings.TrimRight(cfg.MediaBaseURL, "/")
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Event streams only return when their request context ends.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	srv.BaseContext = func(net.Listener) context.Context { return streamCtx }
	srv.RegisterOnShutdown(cancelStreams)

	go func() {
		logger.Info("server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
			cancelRun()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-runCtx.Done():
	}

	go func() {
		<-quit
		logger.Warn("force exit")
		os.Exit(1)
	}()

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	cancelRun()
	catalogWatch.Close()
	carts.Close()
	hub.Close()
	if listener != nil {
		if err := listener.Close(); err != nil {
			logger.Error("listener_close_error", "error", err)
		}
	}
	if err := producer.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
