package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 4096

// HTTPStatusError is a non-2xx answer from an upstream API.
type HTTPStatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *HTTPStatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type HTTPClient struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func NewHTTPClient(timeout time.Duration, retries int, backoff time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}, retries: retries, backoff: backoff}
}

// DoJSON sends body as JSON (when non-nil) and decodes a 2xx answer into out
// (when non-nil). Transport errors, 429 and 5xx answers are retried with
// exponential backoff; other statuses fail immediately.
func (c *HTTPClient) DoJSON(ctx context.Context, method, target string, headers map[string]string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	hdr := map[string]string{"Accept": "application/json"}
	if body != nil {
		hdr["Content-Type"] = "application/json"
	}
	for k, v := range headers {
		hdr[k] = v
	}

	return c.do(ctx, method, target, hdr, payload, func(resp *http.Response) error {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// Fetch GETs target and returns at most limit bytes of a 2xx body together with
// its Content-Type and the final URL after redirects.
func (c *HTTPClient) Fetch(ctx context.Context, target string, headers map[string]string, limit int64) (body []byte, contentType, finalURL string, err error) {
	err = c.do(ctx, http.MethodGet, target, headers, nil, func(resp *http.Response) error {
		b, rerr := io.ReadAll(io.LimitReader(resp.Body, limit))
		if rerr != nil {
			return rerr
		}
		body = b
		contentType = resp.Header.Get("Content-Type")
		finalURL = resp.Request.URL.String()
		return nil
	})
	return body, contentType, finalURL, err
}

func (c *HTTPClient) do(ctx context.Context, method, target string, headers map[string]string, payload []byte, handle func(*http.Response) error) error {
	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		retry, err := c.roundTrip(req, handle)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *HTTPClient) roundTrip(req *http.Request, handle func(*http.Response) error) (retry bool, err error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return req.Context().Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &HTTPStatusError{URL: withoutQuery(req.URL), Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		return se.Retryable(), se
	}
	return false, handle(resp)
}

// withoutQuery keeps API keys passed as query parameters out of error text.
func withoutQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.Redacted()
}
