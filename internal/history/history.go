// Package history talks to the persistence service that stores chat and
// news messages.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npezzotti/ketchup-chat/internal/types"
)

// StatusError is returned when the persistence service answers with a
// non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("persistence service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("persistence service returned %d: %s", e.StatusCode, e.Message)
}

// Gateway persists messages and loads room history. It performs no retries.
type Gateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Persist stores one message and returns the stored record.
func (g *Gateway) Persist(ctx context.Context, room types.RoomId, userId, text string) (types.Record, error) {
	body, err := json.Marshal(types.SaveRequest{Room: room, UserId: userId, Message: text})
	if err != nil {
		return types.Record{}, fmt.Errorf("encode save request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/save", bytes.NewReader(body))
	if err != nil {
		return types.Record{}, fmt.Errorf("new save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp types.SaveResponse
	if err := g.do(req, &resp); err != nil {
		return types.Record{}, fmt.Errorf("persist message: %w", err)
	}

	return resp.Data, nil
}

// History returns the stored messages of room, oldest first. An empty
// room yields an empty slice and no error.
func (g *Gateway) History(ctx context.Context, room types.RoomId) ([]types.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/chat/history/"+url.PathEscape(room.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("new history request: %w", err)
	}

	var records []types.Record
	if err := g.do(req, &records); err != nil {
		return nil, fmt.Errorf("load history for room %q: %w", room, err)
	}
	if records == nil {
		records = []types.Record{}
	}

	types.SortRecords(records)
	return records, nil
}

func (g *Gateway) do(req *http.Request, v any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func statusError(resp *http.Response) *StatusError {
	serr := &StatusError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body types.ErrorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		serr.Message = body.Error
	} else {
		serr.Message = strings.TrimSpace(string(raw))
	}

	return serr
}
