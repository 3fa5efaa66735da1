package odex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"seabridge/ms_odex_gateway/internal/core/carrier"
	"seabridge/ms_odex_gateway/internal/infrastructure/cache"
	ctxutil "seabridge/ms_odex_gateway/internal/infrastructure/context"
	infrahttp "seabridge/ms_odex_gateway/internal/infrastructure/http"
	"seabridge/ms_odex_gateway/internal/infrastructure/security"
)

// failureStatusCode is persisted when no HTTP response was received at all
// (network error, timeout, open breaker).
const failureStatusCode = http.StatusInternalServerError

// ClientConfig holds configuration for the ODeX forwarder.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxBodySize             int
	LogRequestBody          bool
	LogResponseBody         bool
	BreakerMaxFailures      int
	BreakerFailureThreshold float64
	BreakerCooldown         time.Duration
	TokenTTL                time.Duration
}

// Client implements carrier.Forwarder against the ODeX API. It never
// returns transport failures as errors; every call produces a Result the
// gateway can persist.
type Client struct {
	client      *http.Client
	log         *slog.Logger
	breaker     *CircuitBreaker
	tokens      *cache.TokenCache
	tokenTTL    time.Duration
	maxBodySize int
	logReqBody  bool
	logRespBody bool
}

// NewClient creates a forwarder with connection pooling and a 30s default
// timeout, matching the carrier's contract.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 102400 // 100KB default
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = 55 * time.Minute
	}

	httpClient := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	})

	return &Client{
		client:      httpClient,
		log:         log,
		breaker:     NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerFailureThreshold, cfg.BreakerCooldown),
		tokens:      cache.NewTokenCache(),
		tokenTTL:    tokenTTL,
		maxBodySize: maxBodySize,
		logReqBody:  cfg.LogRequestBody,
		logRespBody: cfg.LogResponseBody,
	}
}

// Forward executes one outbound call. Any 2xx resolves to a successful
// Result; everything else, including timeouts and an open breaker, resolves
// to a failed Result carrying whatever partial response was available.
func (c *Client) Forward(ctx context.Context, req carrier.Request) carrier.Result {
	correlationID := ctxutil.GetCorrelationID(ctx)
	start := time.Now()

	if err := c.breaker.Allow(); err != nil {
		c.log.Warn("carrier_call_rejected",
			"correlation_id", correlationID,
			"url", security.SanitizeURL(req.URL),
			"reason", err.Error(),
		)
		return failureResult(err.Error(), time.Since(start))
	}

	res := c.do(ctx, correlationID, req, start)
	// Carrier-side HTTP errors (4xx/5xx) are the carrier answering; only
	// transport-level failures with no response trip the breaker.
	c.breaker.Record(res.Failed && res.Headers == nil)
	return res
}

func (c *Client) do(ctx context.Context, correlationID string, req carrier.Request, start time.Time) carrier.Result {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return failureResult(fmt.Sprintf("marshal request body: %v", err), time.Since(start))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(body))
	if err != nil {
		return failureResult(fmt.Sprintf("build request: %v", err), time.Since(start))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if correlationID != "" {
		httpReq.Header.Set("X-Correlation-ID", correlationID)
	}
	if httpReq.Header.Get("Authorization") == "" {
		if token, ok := c.tokens.Get(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logRequest(correlationID, method, req.URL, body)

	resp, err := c.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.log.Error("carrier_request_failed",
			"correlation_id", correlationID,
			"method", method,
			"url", security.SanitizeURL(req.URL),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return failureResult(err.Error(), duration)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	duration = time.Since(start)
	if readErr != nil {
		c.log.Error("carrier_response_read_failed",
			"correlation_id", correlationID,
			"url", security.SanitizeURL(req.URL),
			"error", readErr.Error(),
		)
		return failureResult(fmt.Sprintf("read response body: %v", readErr), duration)
	}

	res := carrier.Result{
		StatusCode:  resp.StatusCode,
		Data:        decodeBody(respBody),
		Headers:     flattenHeaders(resp.Header),
		TimeTakenMs: duration.Milliseconds(),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Failed = true
		res.ErrorMsg = errorMessage(res.Data, resp.StatusCode)
	}
	c.updateToken(req.URL, resp.StatusCode, res.Data)

	c.logResponse(correlationID, method, req.URL, resp.StatusCode, duration, respBody)
	return res
}

// updateToken maintains the carrier session token. A successful
// authentication caches its token for reuse on later calls; a 401 on any
// call discards the cached token so the next request authenticates fresh.
func (c *Client) updateToken(url string, status int, data map[string]any) {
	if status == http.StatusUnauthorized {
		c.tokens.Clear()
		return
	}
	if status < 200 || status >= 300 || !strings.HasSuffix(url, "/authenticate") {
		return
	}
	if token, ok := data["token"].(string); ok && token != "" {
		c.tokens.Set(token, c.tokenTTL)
	}
}

func (c *Client) logRequest(correlationID, method, url string, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"method", method,
		"url", security.SanitizeURL(url),
	}
	if c.logReqBody && len(body) > 0 {
		attrs = append(attrs, "request_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}
	c.log.Info("carrier_request", attrs...)
}

func (c *Client) logResponse(correlationID, method, url string, status int, duration time.Duration, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"method", method,
		"url", security.SanitizeURL(url),
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"response_size_bytes", len(body),
	}
	if c.logRespBody && len(body) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}

	switch {
	case status >= 500:
		c.log.Error("carrier_response", attrs...)
	case status >= 400:
		c.log.Warn("carrier_response", attrs...)
	default:
		c.log.Info("carrier_response", attrs...)
	}
}

// failureResult builds the soft-failure shape persisted when no usable
// response exists: sentinel 500 and a message payload.
func failureResult(message string, elapsed time.Duration) carrier.Result {
	return carrier.Result{
		StatusCode:  failureStatusCode,
		Data:        map[string]any{"message": message},
		TimeTakenMs: elapsed.Milliseconds(),
		Failed:      true,
		ErrorMsg:    message,
	}
}

// decodeBody parses a response body into an opaque JSON object. Non-object
// and non-JSON payloads are wrapped so the stored shape stays uniform.
func decodeBody(body []byte) map[string]any {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return map[string]any{"data": v}
	}
	return map[string]any{"raw": string(body)}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}

// errorMessage extracts a human-readable error from a carrier payload,
// falling back to the HTTP status.
func errorMessage(data map[string]any, status int) string {
	for _, key := range []string{"message", "error", "errorMessage"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("carrier returned status %d", status)
}
