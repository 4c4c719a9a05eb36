// Package persistence serves the message store over HTTP for the chat
// front end.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/database"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

const saveSuccessMessage = "Message saved successfully"

type Service struct {
	log  *log.Logger
	repo database.MessageRepository
	srv  *http.Server
}

func NewService(mux *http.ServeMux, logger *log.Logger, repo database.MessageRepository, cfg *config.HistoryConfig) *Service {
	s := &Service{
		log:  logger,
		repo: repo,
	}

	mux.HandleFunc("POST /chat/save", s.saveMessage)
	mux.HandleFunc("GET /chat/history/{room}", s.getHistory)
	mux.HandleFunc("GET /healthz", s.healthCheck)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handlers.LoggingHandler(logger.Writer(), mux),
	}

	return s
}

func (s *Service) Start() error {
	s.log.Printf("starting persistence service on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("persistence service shutdown: %w", err)
	}
	return nil
}

func (s *Service) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, statusCode int, msg string) {
	s.writeJson(w, statusCode, types.ErrorResponse{Error: msg})
}

func toRecord(m database.Message) types.Record {
	return types.Record{
		Room:      types.RoomId(m.Room),
		UserId:    m.UserId,
		Message:   m.Body,
		Timestamp: m.CreatedAt.UTC(),
	}
}

func (s *Service) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		s.writeError(w, http.StatusInternalServerError, "database unavailable")
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) saveMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Room == "" || req.UserId == "" || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "room, userId and message are required")
		return
	}

	msg, err := s.repo.CreateMessage(r.Context(), database.CreateMessageParams{
		Room:   req.Room.String(),
		UserId: req.UserId,
		Body:   req.Message,
	})
	if err != nil {
		s.log.Printf("create message: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	s.writeJson(w, http.StatusCreated, types.SaveResponse{
		Message: saveSuccessMessage,
		Data:    toRecord(msg),
	})
}

func (s *Service) getHistory(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")

	messages, err := s.repo.ListMessages(r.Context(), room)
	if err != nil {
		s.log.Printf("list messages for room %q: %v", room, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	records := make([]types.Record, 0, len(messages))
	for _, m := range messages {
		records = append(records, toRecord(m))
	}

	s.writeJson(w, http.StatusOK, records)
}
