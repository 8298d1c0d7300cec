package netutil

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/retry"
	"github.com/code-payments/donation-ledger/pkg/retry/backoff"
)

// NormalizeEndpoint validates an HTTP endpoint URL, defaulting to the http
// scheme when none is provided, and returns it in canonical form
func NormalizeEndpoint(value string, requireSecureConnection bool) (string, error) {
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}

	if requireSecureConnection && parsed.Scheme != "https" {
		return "", errors.New("url scheme must be https")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("url scheme must be http or https")
	}

	host := parsed.Hostname()
	if len(host) == 0 {
		return "", errors.New("host component missing")
	}
	if net.ParseIP(host) == nil {
		if err := ValidateDomainName(host); err != nil {
			return "", errors.Wrap(err, "host is not a valid domain name")
		}
	}

	if port := parsed.Port(); port != "" {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return "", errors.Wrap(err, "invalid port")
		}
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String(), nil
}

// WaitForHealthy polls the health route of an endpoint until it responds
// with a 200
func WaitForHealthy(endpoint string, attempts uint) error {
	_, err := retry.Retry(
		func() error {
			// Retry only occurs if err != nil, in which case the body does not need to be closed.
			resp, err := http.Get(endpoint + "/health") //nolint:bodyclose
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("%d status code checking health", resp.StatusCode)
			}
			return nil
		},
		retry.Limit(attempts),
		retry.Backoff(backoff.BinaryExponential(50*time.Millisecond), time.Second),
	)
	return err
}
