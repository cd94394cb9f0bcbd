package customfit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// httpStatusError carries a non-2xx HTTP response status so retry.go can
// decide retriability from the status code alone, per §7.
type httpStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// httpResponse is the trimmed-down shape the config/event/summary fetchers
// need out of an HTTP round trip.
type httpResponse struct {
	StatusCode   int
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

// httpClient wraps net/http with the fixed auth scheme (§4.D: the client
// key always travels as the "cfenc" query parameter, never a bearer
// token), connect/read timeouts, and ETag/If-None-Match plumbing used by
// the config fetcher's conditional GETs.
type httpClient struct {
	client    *http.Client
	clientKey string
}

func newHTTPClient(clientKey string, connectTimeout, readTimeout time.Duration) *httpClient {
	return &httpClient{
		clientKey: clientKey,
		client: &http.Client{
			Timeout: connectTimeout + readTimeout,
		},
	}
}

func (c *httpClient) withAuth(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(authQueryParam, c.clientKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *httpClient) do(ctx context.Context, method, rawURL string, etag string, body []byte) (*httpResponse, error) {
	authed, err := c.withAuth(rawURL)
	if err != nil {
		return nil, NewError(CategoryValidation, "invalid request URL", err)
	}
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, authed, bodyReader)
	if err != nil {
		return nil, NewError(CategoryInternal, "building request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewError(CategoryTimeout, "request cancelled", ctxErr)
		}
		if os.IsTimeout(err) {
			return nil, NewError(CategoryTimeout, "request timed out", err)
		}
		return nil, NewError(CategoryNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &httpResponse{StatusCode: resp.StatusCode, NotModified: true}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(CategoryNetwork, "reading response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: data}
		return nil, NewError(categoryForStatus(resp.StatusCode), "non-2xx response", statusErr)
	}

	return &httpResponse{
		StatusCode:   resp.StatusCode,
		Body:         data,
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// categoryForStatus maps a non-2xx HTTP status to the ErrorCategory §7
// requires: 401/403 are AUTHENTICATION (surfaced immediately, never
// retried), 408/429/5xx are NETWORK (retriable), and any other 4xx is
// VALIDATION (a malformed or rejected request, also non-retriable).
func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuthentication
	case isRetriableStatus(status):
		return CategoryNetwork
	default:
		return CategoryValidation
	}
}

func (c *httpClient) Head(ctx context.Context, rawURL, etag string) (*httpResponse, error) {
	return c.do(ctx, http.MethodHead, rawURL, etag, nil)
}

func (c *httpClient) Get(ctx context.Context, rawURL, etag string) (*httpResponse, error) {
	return c.do(ctx, http.MethodGet, rawURL, etag, nil)
}

func (c *httpClient) Post(ctx context.Context, rawURL string, body []byte) (*httpResponse, error) {
	return c.do(ctx, http.MethodPost, rawURL, "", body)
}
