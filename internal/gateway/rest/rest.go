package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/oguzkaracar/coursecommerce/internal/gateway"
	"github.com/oguzkaracar/coursecommerce/pkg/httpclient"
)

// Gateway talks to the payment provider's REST API. All calls go through a
// circuit breaker so a degraded provider does not pile up blocked refund
// requests.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// Config holds the REST gateway settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// NewGateway creates a REST gateway client with retry and breaker defaults.
func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	base := httpclient.New(httpclient.DefaultConfig())
	breaker := httpclient.NewCircuitBreakerClient(base,
		httpclient.DefaultCircuitBreakerConfig("payment-gateway"), logger)

	return &Gateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  breaker,
		logger:  logger,
	}
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RetrieveCapture fetches the capture record for a payment reference.
func (g *Gateway) RetrieveCapture(ctx context.Context, paymentRef string) (*gateway.Capture, error) {
	url := fmt.Sprintf("%s/v1/captures/%s", g.baseURL, paymentRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create capture request: %w", err)
	}
	g.authorize(req)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve capture %s: %w", paymentRef, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var capture gateway.Capture
	if err := json.NewDecoder(resp.Body).Decode(&capture); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}
	return &capture, nil
}

// CreateRefund issues a refund. The Idempotency-Key header makes retries
// after ambiguous failures safe on the provider side.
func (g *Gateway) CreateRefund(ctx context.Context, refundReq *gateway.RefundRequest) (*gateway.Refund, error) {
	body, err := json.Marshal(refundReq)
	if err != nil {
		return nil, fmt.Errorf("marshal refund request: %w", err)
	}

	url := g.baseURL + "/v1/refunds"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create refund request: %w", err)
	}
	g.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	if refundReq.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", refundReq.IdempotencyKey)
	}

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create refund for %s: %w", refundReq.PaymentRef, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, g.parseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var refund gateway.Refund
	if err := json.NewDecoder(resp.Body).Decode(&refund); err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}
	return &refund, nil
}

// ListRefunds returns every refund recorded against a capture.
func (g *Gateway) ListRefunds(ctx context.Context, paymentRef string) ([]gateway.Refund, error) {
	url := fmt.Sprintf("%s/v1/captures/%s/refunds", g.baseURL, paymentRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create list refunds request: %w", err)
	}
	g.authorize(req)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list refunds for %s: %w", paymentRef, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		Data []gateway.Refund `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode refund list response: %w", err)
	}
	return payload.Data, nil
}

func (g *Gateway) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
}

// parseError translates a non-2xx provider response into a gateway.Error
// when the body carries a structured code, so callers can match sentinels
// like ErrAmountExceedsRefundable with errors.Is.
func (g *Gateway) parseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("payment gateway returned status %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var envelope errorEnvelope
	if json.Unmarshal(bodyBytes, &envelope) == nil && envelope.Error != nil {
		return &gateway.Error{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return gateway.ErrCaptureNotFound
	}
	return fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(bodyBytes))
}
