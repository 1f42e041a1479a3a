// Package httprequest implements the api_call action: an HTTP request whose
// URL, headers and body support $variable substitution from runtime data.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veilstream/conduit/pkg/protocol"
	"github.com/veilstream/conduit/pkg/template"
)

const defaultTimeoutSeconds = 30

var (
	// ErrURLRequired is returned when the configuration has no url.
	ErrURLRequired = errors.New("missing or invalid 'url' in configuration")
	// ErrHTTPStatus is returned when the response status indicates failure.
	ErrHTTPStatus = errors.New("http request returned error status")
)

// Action performs one HTTP request. Retries are owned by the engine's action
// node processor, not by the action itself.
type Action struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// NewAction creates an Action from node configuration.
func NewAction(config map[string]any) (*Action, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLRequired
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for key, value := range headersConfig {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Action{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Body:    body,
		Timeout: timeout,
	}, nil
}

// Execute performs the request and returns status code, parsed body and
// response headers. Status codes of 400 and above are reported as errors so
// the engine's retry policy applies.
func (a *Action) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "api_call_action")

	url := template.Substitute(a.URL, executionCtx.RuntimeData)
	body := template.Substitute(a.Body, executionCtx.RuntimeData)

	logger.InfoContext(ctx, "Executing api_call action", "method", a.Method, "url", url)

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range a.Headers {
		req.Header.Set(key, template.Substitute(value, executionCtx.RuntimeData))
	}

	client := &http.Client{Timeout: a.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	result, err := a.processResponse(ctx, resp, logger)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	return result, nil
}

func (a *Action) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	logger.InfoContext(ctx, "api_call action completed",
		"status_code", resp.StatusCode, "body_length", len(bodyBytes))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}, nil
}
