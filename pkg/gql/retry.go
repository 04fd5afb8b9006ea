package gql

import (
	"context"
	"net"
	"net/http"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/hashicorp/go-retryablehttp"
)

// retryPolicy follows retryablehttp's policy, except that hosts which do not resolve
// fail at once. Each retried attempt is logged.
func retryPolicy(logger logging.KVLogger) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, err
		}
		retry, cause := retryablehttp.ErrorPropagatedRetryPolicy(ctx, resp, err)
		if retry {
			if cause == nil {
				cause = err
			}
			logger.Warn("retrying http request", "err", cause)
		}
		return retry, cause
	}
}
