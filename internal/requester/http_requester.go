package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of an upstream response is read
const maxBodyBytes = 1 << 20

// HTTPRequester executes authenticated requests against one upstream API
type HTTPRequester struct {
	client  *http.Client
	baseURL string
	authMgr AuthManager
}

// NewHTTPRequester creates a requester rooted at baseURL
func NewHTTPRequester(baseURL string, timeout time.Duration, authMgr AuthManager) *HTTPRequester {
	if authMgr == nil {
		authMgr = NewNoAuthManager()
	}
	return &HTTPRequester{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		authMgr: authMgr,
	}
}

// Get performs a GET on baseURL + path. Path segments must already be escaped.
func (r *HTTPRequester) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target := r.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if err := r.authMgr.ApplyAuth(req); err != nil {
		return nil, fmt.Errorf("failed to apply auth: %w", err)
	}

	return r.execute(req)
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(req *http.Request) (*Response, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("Failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}
