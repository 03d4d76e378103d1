package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/domain"
)

// productEnvelope is the wire format of the product service: the payload is
// wrapped in a success flag and an optional message.
type productEnvelope struct {
	Success bool            `json:"success"`
	Data    *domain.Product `json:"data"`
	Message string          `json:"message"`
}

// ProductClient fetches current product snapshots from the product service.
type ProductClient struct {
	baseURL     string
	httpc       *http.Client
	breaker     *gobreaker.CircuitBreaker[*domain.Product]
	retryBase   time.Duration
	callTimeout time.Duration
}

func NewProductClient(baseURL string, httpc *http.Client) *ProductClient {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &ProductClient{
		baseURL:     baseURL,
		httpc:       httpc,
		breaker:     gobreaker.NewCircuitBreaker[*domain.Product](breakerSettings("product-service")),
		retryBase:   retryBaseDelay,
		callTimeout: productCallTimeout,
	}
}

// GetProduct returns the current snapshot for the product id, or a
// classified error. Retry and timeout discipline matches ValidateUser, with
// a 10s bound per call.
func (c *ProductClient) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	product, err := c.breaker.Execute(func() (*domain.Product, error) {
		return c.fetchWithRetry(ctx, productID)
	})
	if err != nil {
		return nil, mapBreakerErr(err, "product service")
	}
	return product, nil
}

func (c *ProductClient) fetchWithRetry(ctx context.Context, productID int64) (*domain.Product, error) {
	attempt := 0
	op := func() (*domain.Product, error) {
		attempt++
		if attempt > 1 {
			log.Printf("retrying product fetch for id %d, attempt %d", productID, attempt)
		}
		return c.fetch(ctx, productID)
	}

	product, err := backoff.RetryWithData(op, newBackOff(ctx, c.retryBase))
	if err != nil {
		if ctx.Err() != nil && apperr.KindOf(err) == apperr.Unknown {
			return nil, apperr.Wrap(apperr.DependencyUnavailable, "product service request timed out", err)
		}
		return nil, err
	}
	return product, nil
}

func (c *ProductClient) fetch(ctx context.Context, productID int64) (*domain.Product, error) {
	url := fmt.Sprintf("%s/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build product request: %w", err))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(apperr.Wrap(apperr.DependencyUnavailable, "product service request timed out", err))
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "product service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return decodeProduct(resp, productID)
	}

	classified := classifyProductStatus(resp.StatusCode, productID)
	if retryableStatus(resp.StatusCode) {
		return nil, classified
	}
	return nil, backoff.Permanent(classified)
}

func decodeProduct(resp *http.Response, productID int64) (*domain.Product, error) {
	var envelope productEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode product response: %w", err))
	}
	if !envelope.Success {
		return nil, backoff.Permanent(apperr.Newf(apperr.ProductInvalid,
			"product service returned failure for %d: %s", productID, envelope.Message))
	}
	if envelope.Data == nil {
		return nil, backoff.Permanent(apperr.Newf(apperr.NotFound, "product not found: %d", productID))
	}
	if envelope.Data.Currency == "" {
		envelope.Data.Currency = domain.DefaultCurrency
	}
	return envelope.Data, nil
}

func classifyProductStatus(status int, productID int64) error {
	switch status {
	case http.StatusNotFound:
		return apperr.Newf(apperr.NotFound, "product not found: %d", productID)
	case http.StatusRequestTimeout:
		return apperr.New(apperr.DependencyUnavailable, "product service request timed out")
	default:
		if status >= 500 {
			return apperr.Newf(apperr.DependencyUnavailable, "product service temporarily unavailable (status %d)", status)
		}
		return apperr.Newf(apperr.InvalidInput, "invalid product request: %d (status %d)", productID, status)
	}
}
