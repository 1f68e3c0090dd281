package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const userAgent = "showmarket/0.1"

// maxBodySize bounds how much of an upstream response is read.
const maxBodySize = 4 << 20

// getJSON issues GET baseURL?params and decodes a 200 response into out. Every failure is an
// *UpstreamError.
func getJSON(ctx context.Context, client HTTPClient, source, baseURL string, params url.Values, out interface{}) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return &UpstreamError{Source: source, Err: fmt.Errorf("failed to parse url: %w", err)}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &UpstreamError{Source: source, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := client.Do(req)
	if err != nil {
		return &UpstreamError{Source: source, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return &UpstreamError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &UpstreamError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("failed to decode json: %w", err)}
	}
	return nil
}
