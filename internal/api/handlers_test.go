package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/ketchup-chat/internal/catalog"
	"github.com/npezzotti/ketchup-chat/internal/config"
	"github.com/npezzotti/ketchup-chat/internal/protocol"
	"github.com/npezzotti/ketchup-chat/internal/server"
	"github.com/npezzotti/ketchup-chat/internal/stats"
	"github.com/npezzotti/ketchup-chat/internal/testutil"
	"github.com/npezzotti/ketchup-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Persist(ctx context.Context, room types.RoomId, userId, text string) (types.Record, error) {
	args := m.Called(room, userId, text)
	return args.Get(0).(types.Record), args.Error(1)
}

func (m *mockHistory) History(ctx context.Context, room types.RoomId) ([]types.Record, error) {
	args := m.Called(room)
	records, _ := args.Get(0).([]types.Record)
	return records, args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) FetchPage(ctx context.Context, resource string, f catalog.Filter, page, size int) (json.RawMessage, error) {
	args := m.Called(resource, f, page, size)
	data, _ := args.Get(0).(json.RawMessage)
	return data, args.Error(1)
}

func newTestApp(t *testing.T, hs HistoryStore, cat CatalogFetcher) *KetchupApp {
	cfg := &config.Config{
		ServerAddr:     "localhost:8000",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return NewKetchupApp(http.NewServeMux(), testutil.TestLogger(t), nil, hs, cat, cfg)
}

func serve(app *KetchupApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rr, req)
	return rr
}

func TestNewKetchupApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	hs := &mockHistory{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewKetchupApp(mux, logger, cs, hs, nil, cfg)

	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, cs, app.cs, "expected chat server to be set")
	assert.Equal(t, hs, app.history, "expected history store to be set")
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address to match config")

	for _, path := range []string{"/ws/chat", "/ws/news", "/chat/history/42", "/catalog/movies", "/healthz"} {
		_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEmpty(t, pattern, "expected a route for %s", path)
	}
}

func Test_healthz(t *testing.T) {
	rr := serve(newTestApp(t, nil, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func Test_saveMessage(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	tcases := []struct {
		name           string
		body           string
		mockRecord     types.Record
		mockErr        error
		callsStore     bool
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "saved",
			body:           `{"room":42,"userId":"alice","message":"hi"}`,
			mockRecord:     types.Record{Room: "42", UserId: "alice", Message: "hi", Timestamp: ts},
			callsStore:     true,
			expectedStatus: http.StatusCreated,
			expectedBody:   `{"message":"Message saved successfully","data":{"room":"42","userId":"alice","message":"hi","timestamp":"2024-03-05T14:07:09Z"}}`,
		},
		{
			name:           "persistence failure",
			body:           `{"room":"42","userId":"alice","message":"hi"}`,
			mockErr:        errors.New("persistence service returned 503"),
			callsStore:     true,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"persistence service returned 503"}`,
		},
		{
			name:           "missing message",
			body:           `{"room":"42","userId":"alice"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"room, userId and message are required"}`,
		},
		{
			name:           "invalid json",
			body:           `{"room":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status_code":400,"message":"bad request"}`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			hs := &mockHistory{}
			defer hs.AssertExpectations(t)
			if tc.callsStore {
				hs.On("Persist", types.RoomId("42"), "alice", "hi").Return(tc.mockRecord, tc.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/chat/save", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := serve(newTestApp(t, hs, nil), req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
}

func Test_getHistory(t *testing.T) {
	t.Run("records", func(t *testing.T) {
		hs := &mockHistory{}
		defer hs.AssertExpectations(t)
		hs.On("History", types.RoomId("42")).Return([]types.Record{
			{Room: "42", UserId: "bob", Message: "one", Timestamp: time.UnixMilli(100).UTC()},
		}, nil).Once()

		rr := serve(newTestApp(t, hs, nil), httptest.NewRequest(http.MethodGet, "/chat/history/42", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var records []types.Record
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
		assert.Len(t, records, 1)
		assert.Equal(t, "one", records[0].Message)
	})

	t.Run("empty", func(t *testing.T) {
		hs := &mockHistory{}
		hs.On("History", types.NewsRoomId).Return([]types.Record{}, nil).Once()

		rr := serve(newTestApp(t, hs, nil), httptest.NewRequest(http.MethodGet, "/chat/history/0", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("failure", func(t *testing.T) {
		hs := &mockHistory{}
		hs.On("History", types.RoomId("42")).Return(nil, errors.New("timeout")).Once()

		rr := serve(newTestApp(t, hs, nil), httptest.NewRequest(http.MethodGet, "/chat/history/42", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"timeout"}`, rr.Body.String())
	})
}

func Test_getCatalogPage(t *testing.T) {
	tcases := []struct {
		name           string
		path           string
		mockFilter     catalog.Filter
		mockPage       int
		mockSize       int
		mockData       json.RawMessage
		mockErr        error
		callsCatalog   bool
		expectedStatus int
	}{
		{
			name:           "defaults",
			path:           "/catalog/movies/top-rated",
			mockFilter:     catalog.Filter{},
			mockPage:       0,
			mockSize:       20,
			mockData:       json.RawMessage(`{"content":[]}`),
			callsCatalog:   true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "filters and paging",
			path:           "/catalog/movies?genre=drama&page=2&size=5",
			mockFilter:     catalog.Filter{"genre": "drama"},
			mockPage:       2,
			mockSize:       5,
			mockData:       json.RawMessage(`[]`),
			callsCatalog:   true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad page",
			path:           "/catalog/movies?page=first",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid size",
			path:           "/catalog/movies?size=1000",
			mockFilter:     catalog.Filter{},
			mockSize:       1000,
			mockErr:        catalog.ErrInvalidPage,
			callsCatalog:   true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "upstream not found",
			path:           "/catalog/unknown",
			mockFilter:     catalog.Filter{},
			mockSize:       20,
			mockErr:        &catalog.StatusError{StatusCode: http.StatusNotFound},
			callsCatalog:   true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "upstream failure",
			path:           "/catalog/movies",
			mockFilter:     catalog.Filter{},
			mockSize:       20,
			mockErr:        errors.New("connection refused"),
			callsCatalog:   true,
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cat := &mockCatalog{}
			defer cat.AssertExpectations(t)
			if tc.callsCatalog {
				resource := strings.TrimPrefix(strings.SplitN(tc.path, "?", 2)[0], "/catalog/")
				cat.On("FetchPage", resource, tc.mockFilter, tc.mockPage, tc.mockSize).
					Return(tc.mockData, tc.mockErr).Once()
			}

			rr := serve(newTestApp(t, nil, cat), httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.mockData != nil {
				assert.JSONEq(t, string(tc.mockData), rr.Body.String())
			}
		})
	}

	t.Run("no catalog configured", func(t *testing.T) {
		rr := serve(newTestApp(t, nil, nil), httptest.NewRequest(http.MethodGet, "/catalog/movies", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_checkOrigin(t *testing.T) {
	app := newTestApp(t, nil, nil)

	tcases := []struct {
		origin   string
		expected bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://example.com", true},
		{"http://evil.com", false},
	}

	for _, tc := range tcases {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/ws/chat", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.expected, app.checkOrigin(req), "origin %q", tc.origin)
	}
}

func Test_serveWs(t *testing.T) {
	logger := testutil.TestLogger(t)
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	cs, err := server.NewChatServer(logger, su)
	require.NoError(t, err)
	go cs.Run()

	app := NewKetchupApp(http.NewServeMux(), logger, cs, nil, nil, &config.Config{ServerAddr: "localhost:0"})
	srv := httptest.NewServer(app.mux.Handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
		srv.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	chat, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/chat", nil)
	require.NoError(t, err)
	defer chat.Close()
	news, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/news", nil)
	require.NoError(t, err)
	defer news.Close()

	require.NoError(t, news.WriteJSON(protocol.JoinNews("alice")))
	require.NoError(t, chat.WriteJSON(protocol.JoinRoom("42", "alice")))

	var ev protocol.ServerEvent
	chat.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, chat.ReadJSON(&ev))
	assert.Equal(t, protocol.EventJoined, ev.Event)
	assert.Equal(t, types.RoomId("42"), ev.Room)

	news.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, news.ReadJSON(&ev))
	assert.Equal(t, protocol.EventJoined, ev.Event)
	assert.Equal(t, "alice", ev.UserId)

	// a news event never reaches the chat channel
	require.NoError(t, news.WriteJSON(protocol.News("alice", "headline")))
	news.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, news.ReadJSON(&ev))
	assert.Equal(t, "headline", ev.Text)

	chat.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = chat.ReadMessage()
	assert.Error(t, err)
}

func TestLoggingHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	app := newTestApp(t, nil, nil)
	app.log.SetOutput(buf)

	// the access log writer is captured at construction time
	app = NewKetchupApp(http.NewServeMux(), app.log, nil, nil, nil, &config.Config{})
	serve(app, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), `"GET /healthz HTTP/1.1" 200`)
}
