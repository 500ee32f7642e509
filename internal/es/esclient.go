package es

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"
)

type Config struct {
	URL      string
	User     string
	Password string
}

// NewClient connects and checks the cluster answers Info. An empty URL
// returns a nil client: search then falls back to the database.
func NewClient(cfg Config, logger *slog.Logger) (*elasticsearch.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "es", "url", cfg.URL)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("es: new client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Error("es_info_failed", slog.String("status", res.Status()), slog.String("body", string(body)))
		return nil, fmt.Errorf("es: info: %s", res.Status())
	}

	log.Info("es_connected")
	return client, nil
}
