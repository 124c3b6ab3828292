package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"supplier-import-service/internal/models"
)

// ErrSupplierUnavailable is returned when the supplier API circuit is open
var ErrSupplierUnavailable = errors.New("supplier API unavailable")

// SupplierClient is the boundary to the external dropshipping supplier
// API. Every call may fail or time out; callers must treat absence as
// "unknown", never as zero.
type SupplierClient interface {
	FetchProductDetails(ctx context.Context, productID string) (*models.SupplierProductRecord, error)
	FetchVariants(ctx context.Context, productID string) ([]models.SupplierVariant, error)
	FetchInventory(ctx context.Context, productID string) ([]models.InventorySignal, error)
	FetchFreightQuotes(ctx context.Context, variantID, destinationCountry string, qty int) ([]models.FreightQuote, error)
}

// HTTPSupplierClient talks to the supplier's REST API with a per-call
// timeout, a small retry budget, client-side rate limiting and a circuit
// breaker.
type HTTPSupplierClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retrier    *Retrier
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	logger     *logrus.Entry
}

// SupplierClientConfig configures an HTTPSupplierClient
type SupplierClientConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration // per-request timeout
	RequestsPerSec float64       // upstream rate limit budget
	Burst          int
	MaxRetries     int
}

// NewHTTPSupplierClient creates the production supplier client
func NewHTTPSupplierClient(cfg SupplierClientConfig, logger *logrus.Logger) *HTTPSupplierClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps == 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = int(rps)
	}
	retryCfg := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}
	return &HTTPSupplierClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    NewRetrier(retryCfg),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker:    NewCircuitBreaker(5, 30*time.Second),
		logger:     logger.WithField("component", "supplier-client"),
	}
}

type productResponse struct {
	Success bool                          `json:"success"`
	Data    *models.SupplierProductRecord `json:"data,omitempty"`
	Message *string                       `json:"message,omitempty"`
}

type variantsResponse struct {
	Success bool                     `json:"success"`
	Data    []models.SupplierVariant `json:"data,omitempty"`
	Message *string                  `json:"message,omitempty"`
}

type inventoryResponse struct {
	Success bool                     `json:"success"`
	Data    []models.InventorySignal `json:"data,omitempty"`
	Message *string                  `json:"message,omitempty"`
}

type freightResponse struct {
	Success bool                  `json:"success"`
	Data    []models.FreightQuote `json:"data,omitempty"`
	Message *string               `json:"message,omitempty"`
}

// FetchProductDetails retrieves the raw catalog record for one product
func (c *HTTPSupplierClient) FetchProductDetails(ctx context.Context, productID string) (*models.SupplierProductRecord, error) {
	var resp productResponse
	if err := c.get(ctx, fmt.Sprintf("/products/%s", url.PathEscape(productID)), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("supplier returned no product for %s: %s", productID, message(resp.Message))
	}
	return resp.Data, nil
}

// FetchVariants retrieves the variant list for one product
func (c *HTTPSupplierClient) FetchVariants(ctx context.Context, productID string) ([]models.SupplierVariant, error) {
	var resp variantsResponse
	if err := c.get(ctx, fmt.Sprintf("/products/%s/variants", url.PathEscape(productID)), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchInventory retrieves the warehouse/factory stock feed for one product
func (c *HTTPSupplierClient) FetchInventory(ctx context.Context, productID string) ([]models.InventorySignal, error) {
	var resp inventoryResponse
	if err := c.get(ctx, fmt.Sprintf("/products/%s/inventory", url.PathEscape(productID)), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchFreightQuotes retrieves the shipping options for one variant to the
// given destination
func (c *HTTPSupplierClient) FetchFreightQuotes(ctx context.Context, variantID, destinationCountry string, qty int) ([]models.FreightQuote, error) {
	path := fmt.Sprintf("/freight/quotes?variantId=%s&country=%s&qty=%d",
		url.QueryEscape(variantID), url.QueryEscape(destinationCountry), qty)
	var resp freightResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPSupplierClient) get(ctx context.Context, path string, out interface{}) error {
	if !c.breaker.Allow() {
		return ErrSupplierUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.retrier.DoHTTP(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("supplier API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("supplier API returned status %d: %s", resp.StatusCode, string(body))
	}

	c.breaker.RecordSuccess()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode supplier response: %w", err)
	}
	return nil
}

func message(m *string) string {
	if m == nil {
		return "no message"
	}
	return *m
}
