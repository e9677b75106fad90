package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperProvider queries the Serper search API
type SerperProvider struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// SerperOptions configures the provider
type SerperOptions struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// NewSerperProvider creates a Serper-backed search provider
func NewSerperProvider(opts SerperOptions) *SerperProvider {
	if opts.Endpoint == "" {
		opts.Endpoint = serperEndpoint
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SerperProvider{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		maxResults: opts.MaxResults,
		client:     opts.HTTPClient,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search runs one keyword query and returns the ranked organic results
func (p *SerperProvider) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := json.Marshal(serperRequest{Q: query, Num: p.maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search provider returned %d: %s", resp.StatusCode, payload)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		results = append(results, SearchResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
