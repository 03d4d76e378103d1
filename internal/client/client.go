// Package client holds the typed HTTP clients for the two remote
// authorities the cart depends on: the user service and the product service.
// Both clients are stateless and safe for concurrent use.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/storefront/cart-service/internal/apperr"
)

const (
	maxAttempts        = 3
	retryBaseDelay     = 500 * time.Millisecond
	userCallTimeout    = 8 * time.Second
	productCallTimeout = 10 * time.Second
)

// retryableStatus reports whether a response status justifies another
// attempt. Client errors other than request-timeout are never retried.
func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status >= 500
}

func newBackOff(ctx context.Context, base time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)
}

// breakerSettings trips only on dependency failures. Terminal outcomes such
// as a rejected token or a missing product are valid answers from the remote
// side and must not open the breaker.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.IsKind(err, apperr.DependencyUnavailable)
		},
	}
}

func mapBreakerErr(err error, service string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.DependencyUnavailable, service+" circuit open", err)
	}
	return err
}
