package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/ketchup-chat/internal/catalog"
	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/server"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

// HistoryStore is the persistence service as seen by the proxy routes.
type HistoryStore interface {
	Persist(ctx context.Context, room types.RoomId, userId, text string) (types.Record, error)
	History(ctx context.Context, room types.RoomId) ([]types.Record, error)
}

type CatalogFetcher interface {
	FetchPage(ctx context.Context, resource string, f catalog.Filter, page, size int) (json.RawMessage, error)
}

type KetchupApp struct {
	log            *log.Logger
	mux            *http.Server
	cs             *server.ChatServer
	history        HistoryStore
	catalog        CatalogFetcher
	allowedOrigins []string
}

// NewKetchupApp wires the front-end routes onto mux. cat may be nil when no
// catalog service is configured.
func NewKetchupApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, hs HistoryStore, cat CatalogFetcher, cfg *config.Config) *KetchupApp {
	s := &KetchupApp{
		log:            logger,
		cs:             cs,
		history:        hs,
		catalog:        cat,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws/chat", s.serveWs(protocol.ChannelChat))
	mux.HandleFunc("GET /ws/news", s.serveWs(protocol.ChannelNews))
	mux.HandleFunc("POST /chat/save", s.saveMessage)
	mux.HandleFunc("GET /chat/history/{room}", s.getHistory)
	mux.HandleFunc("GET /catalog/{resource...}", s.getCatalogPage)
	mux.HandleFunc("GET /healthz", s.healthz)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.recoverPanic(h)
	h = handlers.LoggingHandler(logger.Writer(), h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *KetchupApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *KetchupApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
