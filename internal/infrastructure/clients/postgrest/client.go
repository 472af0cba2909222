// Package postgrest is a small client for the Supabase REST endpoint
// (PostgREST) authenticated with the service role key.
package postgrest

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

	"github.com/karasuemlak/backend/pkg/config"
)

// APIError is the error body PostgREST returns on non-2xx responses
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest returned status %d: %s", e.Status, e.Message)
}

// Filter is a column filter in PostgREST syntax, e.g. {"id", "eq.42"}
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: "eq." + value}
}

// Client talks to <SUPABASE_URL>/rest/v1
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a new PostgREST client
func NewClient(supabase *config.SupabaseConfig, timeout time.Duration) (*Client, error) {
	if supabase == nil || supabase.URL == "" || supabase.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(supabase.URL, "/") + "/rest/v1",
		serviceKey: supabase.ServiceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Select reads rows of table matching filters into out (a pointer to a slice)
func (c *Client) Select(ctx context.Context, table string, columns []string, filters []Filter, out interface{}) error {
	endpoint, err := c.endpoint(table, filters)
	if err != nil {
		return err
	}
	q := endpoint.Query()
	q.Set("select", strings.Join(columns, ","))
	endpoint.RawQuery = q.Encode()

	return c.doJSON(ctx, http.MethodGet, endpoint.String(), nil, nil, out)
}

// Update patches rows matching filters and decodes the updated rows into out
func (c *Client) Update(ctx context.Context, table string, values map[string]interface{}, filters []Filter, out interface{}) error {
	endpoint, err := c.endpoint(table, filters)
	if err != nil {
		return err
	}

	body, err := json.Marshal(values)
	if err != nil {
		return err
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "return=representation",
	}
	return c.doJSON(ctx, http.MethodPatch, endpoint.String(), bytes.NewReader(body), headers, out)
}

func (c *Client) endpoint(table string, filters []Filter) (*url.URL, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(table)))
	if err != nil {
		return nil, err
	}
	query := parsed.Query()
	for _, f := range filters {
		query.Add(f.Column, f.Value)
	}
	parsed.RawQuery = query.Encode()
	return parsed, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, headers map[string]string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("apikey", c.serviceKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.serviceKey)
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(raw) > 0 && json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode postgrest response: %w", err)
	}
	return nil
}
