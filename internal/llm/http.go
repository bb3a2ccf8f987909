package llm

import (
	"net/http"
	"time"
)

const defaultRequestTimeout = 60 * time.Second

// newHTTPClient returns the shared client configuration for model-server
// calls. Context deadlines still take precedence over the client timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{Timeout: timeout}
}
