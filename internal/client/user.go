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

// UserClient validates bearer tokens against the user service /auth/me
// endpoint and classifies every failure into the apperr taxonomy.
type UserClient struct {
	baseURL     string
	httpc       *http.Client
	breaker     *gobreaker.CircuitBreaker[*domain.User]
	retryBase   time.Duration
	callTimeout time.Duration
}

func NewUserClient(baseURL string, httpc *http.Client) *UserClient {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &UserClient{
		baseURL:     baseURL,
		httpc:       httpc,
		breaker:     gobreaker.NewCircuitBreaker[*domain.User](breakerSettings("user-service")),
		retryBase:   retryBaseDelay,
		callTimeout: userCallTimeout,
	}
}

// ValidateUser resolves the token to a user snapshot. Connection failures,
// request timeouts and 5xx responses are retried with exponential backoff up
// to three attempts; any other failure is terminal.
func (c *UserClient) ValidateUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperr.New(apperr.Unauthenticated, "missing bearer token")
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	user, err := c.breaker.Execute(func() (*domain.User, error) {
		return c.validateWithRetry(ctx, token)
	})
	if err != nil {
		return nil, mapBreakerErr(err, "user service")
	}
	return user, nil
}

func (c *UserClient) validateWithRetry(ctx context.Context, token string) (*domain.User, error) {
	attempt := 0
	op := func() (*domain.User, error) {
		attempt++
		if attempt > 1 {
			log.Printf("retrying user validation, attempt %d", attempt)
		}
		return c.validate(ctx, token)
	}

	user, err := backoff.RetryWithData(op, newBackOff(ctx, c.retryBase))
	if err != nil {
		if ctx.Err() != nil && apperr.KindOf(err) == apperr.Unknown {
			return nil, apperr.Wrap(apperr.DependencyUnavailable, "user service request timed out", err)
		}
		return nil, err
	}
	return user, nil
}

func (c *UserClient) validate(ctx context.Context, token string) (*domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build user request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(apperr.Wrap(apperr.DependencyUnavailable, "user service request timed out", err))
		}
		return nil, apperr.Wrap(apperr.DependencyUnavailable, "user service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var user domain.User
		if errDecode := json.NewDecoder(resp.Body).Decode(&user); errDecode != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode user response: %w", errDecode))
		}
		if user.ID <= 0 {
			return nil, backoff.Permanent(apperr.New(apperr.Unauthenticated, "user service returned no user id"))
		}
		return &user, nil
	}

	classified := classifyUserStatus(resp.StatusCode)
	if retryableStatus(resp.StatusCode) {
		return nil, classified
	}
	return nil, backoff.Permanent(classified)
}

func classifyUserStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return apperr.New(apperr.Unauthenticated, "invalid or expired token")
	case http.StatusForbidden:
		return apperr.New(apperr.AccessDenied, "user access forbidden")
	case http.StatusNotFound:
		return apperr.New(apperr.NotFound, "user not found")
	case http.StatusRequestTimeout:
		return apperr.New(apperr.DependencyUnavailable, "user service request timed out")
	default:
		if status >= 500 {
			return apperr.Newf(apperr.DependencyUnavailable, "user service temporarily unavailable (status %d)", status)
		}
		return apperr.Newf(apperr.InvalidInput, "invalid request to user service (status %d)", status)
	}
}
