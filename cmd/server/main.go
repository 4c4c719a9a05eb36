package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/ketchup-chat/internal/api"
	"github.com/npezzotti/ketchup-chat/internal/catalog"
	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/history"
	"github.com/npezzotti/ketchup-chat/internal/server"
	"github.com/npezzotti/ketchup-chat/internal/stats"
	"github.com/redis/go-redis/v9"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	persistenceURL string
	catalogURL     string
	redisAddr      string
	timeout        time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&persistenceURL, "persistence-url", "http://localhost:3001", "base url of the persistence service")
	flag.StringVar(&catalogURL, "catalog-url", "", "base url of the catalog service, empty disables the catalog proxy")
	flag.StringVar(&redisAddr, "redis-addr", "", "redis address for the catalog page cache, empty disables caching")
	flag.DurationVar(&timeout, "persistence-timeout", config.DefaultPersistenceTimeout, "timeout for persistence and catalog calls")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[ketchup-chat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, persistenceURL, catalogURL, redisAddr, allowedOrigins, timeout)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux, logger)

	chatServer, err := server.NewChatServer(logger, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	var cat api.CatalogFetcher
	if cfg.CatalogURL != "" {
		var cache catalog.Cache
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()

			if err := rdb.Ping(context.Background()).Err(); err != nil {
				logger.Printf("redis unavailable, catalog pages will not be cached: %v", err)
			} else {
				cache = catalog.NewRedisCache(rdb, "ketchup:catalog:", catalog.DefaultCacheTTL)
			}
		}
		cat = catalog.NewClient(cfg.CatalogURL, cfg.PersistenceTimeout, cache, logger)
	}

	gateway := history.NewGateway(cfg.PersistenceURL, cfg.PersistenceTimeout)

	srv := api.NewKetchupApp(mux, logger, chatServer, gateway, cat, cfg)

	statsUpdater.Run()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
