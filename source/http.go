package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// HTTP polls a RIS endpoint that returns the worklist as a JSON array of entries.
type HTTP struct {
	url    string
	client *retryablehttp.Client
}

// NewHTTP creates a source for url. Failed requests are retried up to
// retryMax times.
func NewHTTP(url string, retryMax int, logger zerolog.Logger) *HTTP {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = leveledLogger{logger}
	return &HTTP{url: url, client: client}
}

// Entries fetches and decodes the worklist.
func (h *HTTP) Entries(ctx context.Context) ([]worklist.Entry, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build worklist request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch worklist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch worklist: unexpected status %d: %s", resp.StatusCode, body)
	}

	var entries []worklist.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode worklist: %w", err)
	}
	return entries, nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.logger.Error().Fields(kv).Msg(msg)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.logger.Warn().Fields(kv).Msg(msg)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.logger.Debug().Fields(kv).Msg(msg)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.logger.Trace().Fields(kv).Msg(msg)
}
