// Package geo looks up caller geolocation through the ip-api.com JSON
// endpoint. Results only feed access-log entries; the session data model
// never sees them.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public ip-api.com endpoint.
const DefaultBaseURL = "http://ip-api.com"

// Info is the subset of provider fields exposed to the widget.
type Info struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Client queries the geolocation provider.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base URL; empty means the
// public endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup resolves ip to its city and country. Provider-side failures
// ("status":"fail") surface as errors with the provider message.
func (c *Client) Lookup(ctx context.Context, ip string) (Info, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country,city,query",
		c.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build geolocation request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("geolocation provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Country string `json:"country"`
		City    string `json:"city"`
		Query   string `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Info{}, fmt.Errorf("decode geolocation response: %w", err)
	}

	if payload.Status != "success" {
		if payload.Message == "" {
			payload.Message = "geolocation failed"
		}
		return Info{}, fmt.Errorf("geolocation provider: %s", payload.Message)
	}

	return Info{IP: payload.Query, City: payload.City, Country: payload.Country}, nil
}
