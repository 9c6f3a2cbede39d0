// Plain HTTP client shared by the MusicBrainz lookup and the artwork downloader
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tapedeck/internal/shared"
)

const maxResponseBytes = 32 << 20

// APIClient performs rate limited GET requests against a base URL.
type APIClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAPIClient creates a client. A non-positive rps disables rate limiting.
func NewAPIClient(baseURL, userAgent string, rps float64, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &APIClient{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// APIResponse is a fully read response.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get requests path (or an absolute URL when the client has no base URL) with query appended.
func (a *APIClient) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAborted, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidArgument, err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, shared.ClassifyNetErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, shared.ClassifyNetErr(fmt.Errorf("failed to read response: %w", err))
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

// GetJSON requests path and decodes a 2xx JSON body into v.
func (a *APIClient) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := a.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return statusErr(resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func statusErr(code int) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrNotFound, code)
	case code == http.StatusServiceUnavailable || code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, code)
	}
	return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, code)
}
