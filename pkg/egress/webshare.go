package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultListURL is the webshare-compatible proxy listing endpoint.
const DefaultListURL = "https://proxy.webshare.io/api/v2/proxy/list"

// defaultPageSize bounds one page of the listing API.
const defaultPageSize = 25

// ListClientConfig configures a proxy-list API client.
type ListClientConfig struct {
	// BaseURL is the listing endpoint. Defaults to DefaultListURL.
	BaseURL string

	// Token authenticates against the listing API.
	Token string

	// PageSize is the page size requested per call. Defaults to 25.
	PageSize int

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// ListClient fetches egress endpoints from a webshare-style listing API,
// following the "next" cursor page by page until it is null.
type ListClient struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
}

// listPage is the wire shape of one page of the listing API.
type listPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Endpoint `json:"results"`
}

// NewListClient creates a proxy-list API client.
func NewListClient(cfg ListClientConfig) *ListClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultListURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ListClient{
		baseURL:  baseURL,
		token:    cfg.Token,
		pageSize: pageSize,
		client:   client,
	}
}

// Fetch pulls every page of the listing and returns the accumulated
// endpoints. Any transport or decode failure aborts the whole fetch so
// a partial page never replaces a full pool.
func (c *ListClient) Fetch(ctx context.Context) ([]Endpoint, error) {
	first, err := c.firstPageURL()
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	next := &first
	for next != nil {
		page, err := c.fetchPage(ctx, *next)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, page.Results...)
		next = page.Next
	}
	return endpoints, nil
}

func (c *ListClient) firstPageURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid proxy list URL %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("mode", "direct")
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(c.pageSize))
	q.Set("valid", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *ListClient) fetchPage(ctx context.Context, pageURL string) (*listPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build proxy list request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list returned status %d", resp.StatusCode)
	}

	var page listPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode proxy list page: %w", err)
	}
	return &page, nil
}
