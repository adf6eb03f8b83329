package calcbench

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthcheckConfig provides configurations for healthchecks being performed, such as the amount of retries or backoff duration
type HealthcheckConfig struct {
	Retries int // How many times the healthcheck is attempted until the service is considered unreachable

	Backoff time.Duration // How long to wait between each healthcheck retry

	BackoffIncrement time.Duration // By how much to increment the backoff on each failed attempt
	MaxBackoff       time.Duration // The maximum duration the backoff may reach after incrementing. When the backoff has reached this value, it won't increase any further

	Timeout time.Duration // How long a single attempt may take until it counts as failed. No limit if 0
}

// healthchecker is the part of [ServiceClient] needed to perform healthchecks
type healthchecker interface {
	Healthcheck(ctx context.Context) (*HealthResponse, error)
}

// performHealthcheck polls the service until it answers its healthcheck or the retries are used up.
// The returned error is a [*ConnectivityError] if the service never answered.
func (h HealthcheckConfig) performHealthcheck(ctx context.Context, client healthchecker, url string, log *logrus.Entry) (*HealthResponse, error) {
	var lastError error

	backoffDuration := h.Backoff
	for i := 0; i < h.Retries; i++ {
		res, err := h.attempt(ctx, client)
		if err == nil {
			return res, nil
		}
		lastError = err
		log.Debugf("Healthcheck attempt %d/%d failed - %v", i+1, h.Retries, err)

		// Manage backoff
		if i != h.Retries-1 {
			select {
			case <-ctx.Done():
				return nil, &ConnectivityError{URL: url, Attempts: i + 1, Err: ctx.Err()}
			case <-time.After(backoffDuration):
			}
			backoffDuration += h.BackoffIncrement
			if backoffDuration > h.MaxBackoff {
				backoffDuration = h.MaxBackoff
			}
		}
	}

	return nil, &ConnectivityError{URL: url, Attempts: h.Retries, Err: lastError}
}

func (h HealthcheckConfig) attempt(ctx context.Context, client healthchecker) (*HealthResponse, error) {
	if h.Timeout <= 0 {
		return client.Healthcheck(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()
	return client.Healthcheck(ctx)
}
