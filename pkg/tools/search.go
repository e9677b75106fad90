package tools

import (
	"context"
	"fmt"
	"strings"
)

// SearchResult is one ranked hit from a search provider
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet"`
}

// SearchProvider is the external search collaborator. Credentials are wired
// at construction, out of band of the research request.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchTool exposes a search provider under the uniform tool contract. The
// model knows it as "google_search" regardless of the backing provider.
type SearchTool struct {
	provider     SearchProvider
	cache        *Cache
	maxResults   int
	domainFilter string
}

// SearchToolOptions configures the search tool
type SearchToolOptions struct {
	Provider     SearchProvider
	Cache        *Cache
	MaxResults   int
	DomainFilter string
}

// NewSearchTool creates the search tool
func NewSearchTool(opts SearchToolOptions) *SearchTool {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	return &SearchTool{
		provider:     opts.Provider,
		cache:        opts.Cache,
		maxResults:   opts.MaxResults,
		domainFilter: opts.DomainFilter,
	}
}

func (t *SearchTool) Name() string { return "google_search" }

func (t *SearchTool) Description() string {
	return "Search the web for a keyword query and return a ranked list of results with URLs and snippets."
}

func (t *SearchTool) Parameters() []Param {
	return []Param{
		{Name: "query", Type: "string", Description: "Keyword search query", Required: true},
	}
}

// Invoke runs the search, consulting the cache first
func (t *SearchTool) Invoke(ctx context.Context, args map[string]interface{}) (Output, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return Output{}, &ExecutionError{Code: CodeBadArgs, Message: "query must be a non-empty string"}
	}
	query = strings.TrimSpace(query)

	if t.domainFilter != "" {
		query = fmt.Sprintf("%s site:%s", query, t.domainFilter)
	}

	if t.cache != nil {
		if out, hit := t.cache.Get(t.Name(), query); hit {
			return out, nil
		}
	}

	results, err := t.provider.Search(ctx, query)
	if err != nil {
		return Output{}, &ExecutionError{Code: CodeExecution, Message: err.Error()}
	}

	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}

	out := formatSearchResults(query, results)

	if t.cache != nil {
		// Cache writes are best effort.
		_ = t.cache.Put(t.Name(), query, out)
	}

	return out, nil
}

func formatSearchResults(query string, results []SearchResult) Output {
	if len(results) == 0 {
		return Output{Content: fmt.Sprintf("No results found for %q.", query)}
	}

	var b strings.Builder
	citations := make([]Citation, 0, len(results))

	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, res.Title, res.URL, res.Snippet)
		citations = append(citations, Citation{
			URL:     res.URL,
			Title:   res.Title,
			Snippet: res.Snippet,
		})
	}

	return Output{Content: b.String(), Citations: citations}
}
