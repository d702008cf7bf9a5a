//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ── HTTP helpers ──────────────────────────────────────────────────────────────

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	// Do NOT follow redirects; trailing-slash redirects are asserted on.
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func do(req *http.Request, token string) *http.Response {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		panic(fmt.Sprintf("e2e: %s %s failed: %v", req.Method, req.URL, err))
	}
	return resp
}

// get performs a GET request with an optional bearer token.
func get(url, token string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to create GET request: %v", err))
	}
	return do(req, token)
}

// post performs a POST request with a JSON body and optional bearer token.
func post(url string, body interface{}, token string) *http.Response {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("e2e: failed to marshal body: %v", err))
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, url, bodyReader)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to create POST request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, token)
}

// postForm performs an unauthenticated form POST, as the token endpoint expects.
func postForm(url string, form url.Values) *http.Response {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to create POST request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(req, "")
}

// del performs a DELETE request with an optional bearer token.
func del(url, token string) *http.Response {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to create DELETE request: %v", err))
	}
	return do(req, token)
}

// ── JSON helpers ──────────────────────────────────────────────────────────────

// parseJSONObject reads and parses a JSON response body into a map.
func parseJSONObject(resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	var result map[string]interface{}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(fmt.Sprintf("e2e: failed to read response body: %v", err))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		panic(fmt.Sprintf("e2e: failed to parse JSON object: %v\nbody: %s", err, string(body)))
	}
	return result
}

// pagedItems extracts the items array and total from a movie list response.
func pagedItems(resp *http.Response) ([]interface{}, int) {
	body := parseJSONObject(resp)
	items, _ := body["items"].([]interface{})
	total := int(body["total"].(float64))
	return items, total
}

// ── URL helpers ───────────────────────────────────────────────────────────────

// apiURL builds a full URL to the service.
func apiURL(pathAndQuery string) string {
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}
	return apiBase + pathAndQuery
}
