// Package openai adapts OpenAI-compatible chat and embedding endpoints.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

// Config holds the endpoint settings shared by the chat backend and embedder.
// MaxTokens caps the embedder input or the chat completion length; Temperature
// applies to chat only.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

func newClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// classifyAPIError attaches the component kind, maps 401/403 to
// ErrUnauthorized and marks retryable failures with ErrTemporary.
func classifyAPIError(ctx context.Context, kind error, operation string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.WrapCallError(ctx, kind, operation, err)
	}

	status := 0
	var detail string
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		detail = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
	}

	if status != 0 {
		cause := fmt.Errorf("status %d: %s", status, detail)
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			cause = fmt.Errorf("%w: %w", domain.ErrUnauthorized, cause)
		case isRetryableStatus(status):
			cause = fmt.Errorf("%w: %w", domain.ErrTemporary, cause)
		}
		return domain.WrapError(kind, operation, cause)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(kind, operation, fmt.Errorf("%w: %w", domain.ErrTemporary, err))
	}
	return domain.WrapError(kind, operation, err)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// extractDetail reads the "detail" field some compatible servers return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return strings.TrimSpace(string(body))
}
