// Package catalog proxies paginated listings from the catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultPage = 0
	DefaultSize = 20
	MaxSize     = 100
)

var ErrInvalidPage = errors.New("invalid page")

// Filter holds resource specific query parameters, e.g. genre or title.
type Filter map[string]string

// Cache stores raw catalog pages.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, page []byte) error
}

// StatusError is returned when the catalog service answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog service returned %d", e.StatusCode)
}

type Client struct {
	log     *log.Logger
	baseURL string
	http    *http.Client
	cache   Cache
	group   singleflight.Group
}

// NewClient creates a catalog client. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache Cache, logger *log.Logger) *Client {
	return &Client{
		log:     logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
	}
}

func pageQuery(f Filter, page, size int) url.Values {
	q := url.Values{}
	for k, v := range f {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}

// FetchPage returns one page of resource as raw JSON. Concurrent requests
// for the same page share a single upstream call.
func (c *Client) FetchPage(ctx context.Context, resource string, f Filter, page, size int) (json.RawMessage, error) {
	resource = strings.Trim(resource, "/")
	if resource == "" {
		return nil, fmt.Errorf("%w: empty resource", ErrInvalidPage)
	}
	if page < 0 || size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, size)
	}

	key := resource + "?" + pageQuery(f, page, size).Encode()

	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Printf("catalog cache get %q: %v", key, err)
		} else if ok {
			return data, nil
		}
	}

	// The shared fetch outlives any one caller; a cancelled caller stops
	// waiting without failing the others.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		data, err := c.fetch(fetchCtx, key)
		if err != nil {
			return nil, err
		}

		if c.cache != nil {
			if err := c.cache.Set(fetchCtx, key, data); err != nil {
				c.log.Printf("catalog cache set %q: %v", key, err)
			}
		}
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("new catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog page: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("catalog page %q is not valid json", path)
	}

	return data, nil
}
