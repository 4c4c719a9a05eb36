package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/database"
	"github.com/npezzotti/ketchup-chat/internal/persistence"
)

var (
	addr string
	dsn  string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:3001", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.Parse()

	logger := log.New(os.Stderr, "[ketchup-historyd] ", log.LstdFlags)

	cfg, err := config.NewHistoryConfig(addr, dsn)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgMessageRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	srv := persistence.NewService(http.NewServeMux(), logger, dbConn, cfg)

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

	shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println(err)
	}

	logger.Println("shutdown complete")
}
