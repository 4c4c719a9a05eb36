package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/ketchup-chat/internal/catalog"
	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/server"
	"github.com/npezzotti/ketchup-chat/internal/types"
)

const saveSuccessMessage = "Message saved successfully"

var errMissingFields = errors.New("room, userId and message are required")

func (s *KetchupApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *KetchupApp) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *KetchupApp) saveMessage(w http.ResponseWriter, r *http.Request) {
	var req types.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, newApiError(http.StatusBadRequest, err))
		return
	}

	if req.Room == "" || req.UserId == "" || req.Message == "" {
		s.writeError(w, proxyError(http.StatusBadRequest, errMissingFields))
		return
	}

	rec, err := s.history.Persist(r.Context(), req.Room, req.UserId, req.Message)
	if err != nil {
		s.writeError(w, proxyError(http.StatusInternalServerError, err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.SaveResponse{
		Message: saveSuccessMessage,
		Data:    rec,
	})
}

func (s *KetchupApp) getHistory(w http.ResponseWriter, r *http.Request) {
	room := types.RoomId(r.PathValue("room"))

	records, err := s.history.History(r.Context(), room)
	if err != nil {
		s.writeError(w, proxyError(http.StatusInternalServerError, err))
		return
	}

	s.writeJson(w, http.StatusOK, records)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (s *KetchupApp) getCatalogPage(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeError(w, newApiError(http.StatusNotFound, nil))
		return
	}

	page, err := queryInt(r, "page", catalog.DefaultPage)
	if err != nil {
		s.writeError(w, newApiError(http.StatusBadRequest, err))
		return
	}
	size, err := queryInt(r, "size", catalog.DefaultSize)
	if err != nil {
		s.writeError(w, newApiError(http.StatusBadRequest, err))
		return
	}

	filter := catalog.Filter{}
	for k, v := range r.URL.Query() {
		if k == "page" || k == "size" || len(v) == 0 {
			continue
		}
		filter[k] = v[0]
	}

	data, err := s.catalog.FetchPage(r.Context(), r.PathValue("resource"), filter, page, size)
	if err != nil {
		s.writeError(w, catalogError(err))
		return
	}

	s.writeJson(w, http.StatusOK, data)
}

func (s *KetchupApp) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no origin
		return true
	}

	return slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin) ||
		strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
}

func (s *KetchupApp) serveWs(ch protocol.Channel) http.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Println("error upgrading connection:", err)
			return
		}

		client := server.NewClient(conn, ch, s.cs, s.log)

		s.cs.RegisterClient(client)
		go client.Write()
		go client.Read()
	}
}
