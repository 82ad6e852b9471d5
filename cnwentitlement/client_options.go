package cnwentitlement

import (
	"net/http"
	"time"
)

// ClientOption configures a CloudClient.
type ClientOption func(*CloudClient)

// WithHTTPClient sets the HTTP client used to fetch licenses, e.g. one with a
// proxy or custom TLS roots for a private license cloud. Its Timeout is
// replaced by the client timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *CloudClient) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each license fetch. Default is 10 seconds, or
// CloudConfig.Timeout when built from config.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *CloudClient) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent sent to the license cloud.
func WithUserAgent(ua string) ClientOption {
	return func(c *CloudClient) {
		c.userAgent = ua
	}
}
