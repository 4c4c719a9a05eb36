package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const DefaultPersistenceTimeout = 5 * time.Second

// Config configures the front-end server.
type Config struct {
	ServerAddr         string
	PersistenceURL     string
	CatalogURL         string
	RedisAddr          string
	AllowedOrigins     []string
	PersistenceTimeout time.Duration
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerURL          *url.URL
	Name               string
	Room               string
	PersistenceTimeout time.Duration
}

// HistoryConfig configures the reference persistence service.
type HistoryConfig struct {
	ServerAddr  string
	DatabaseDSN string
}

func parseBaseURL(name, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s must be an http or https url, got %q", name, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s must include a host", name)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func NewConfig(serverAddr, persistenceURL, catalogURL, redisAddr string, allowedOrigins []string, timeout time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if persistenceURL == "" {
		return nil, fmt.Errorf("persistence url cannot be empty")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("persistence timeout cannot be negative")
	}
	if timeout == 0 {
		timeout = DefaultPersistenceTimeout
	}

	persistenceURL, err := parseBaseURL("persistence url", persistenceURL)
	if err != nil {
		return nil, err
	}

	// The catalog proxy is optional.
	if catalogURL != "" {
		if catalogURL, err = parseBaseURL("catalog url", catalogURL); err != nil {
			return nil, err
		}
	}

	return &Config{
		ServerAddr:         serverAddr,
		PersistenceURL:     persistenceURL,
		CatalogURL:         catalogURL,
		RedisAddr:          redisAddr,
		AllowedOrigins:     allowedOrigins,
		PersistenceTimeout: timeout,
	}, nil
}

func NewClientConfig(serverURL, name, room string, timeout time.Duration) (*ClientConfig, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server url cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultPersistenceTimeout
	}

	base, err := parseBaseURL("server url", serverURL)
	if err != nil {
		return nil, err
	}
	u, _ := url.Parse(base)

	return &ClientConfig{
		ServerURL:          u,
		Name:               strings.TrimSpace(name),
		Room:               strings.TrimSpace(room),
		PersistenceTimeout: timeout,
	}, nil
}

// WebsocketURL returns the ws or wss url of the given server path.
func (c *ClientConfig) WebsocketURL(path string) string {
	u := *c.ServerURL
	u.Scheme = "ws"
	if c.ServerURL.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	return u.String()
}

func NewHistoryConfig(serverAddr, databaseDSN string) (*HistoryConfig, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	return &HistoryConfig{
		ServerAddr:  serverAddr,
		DatabaseDSN: databaseDSN,
	}, nil
}
