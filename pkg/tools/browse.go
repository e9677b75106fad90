package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// PageFetcher fetches a URL and returns the page title and extracted text.
// The browse agent reads full page content rather than search snippets.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (title, text string, err error)
}

// RodFetcher loads pages in a headless browser. The browser connects lazily
// on first use and is shared across sessions.
type RodFetcher struct {
	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodFetcher creates a fetcher backed by a headless browser
func NewRodFetcher() *RodFetcher {
	return &RodFetcher{}
}

func (f *RodFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}
	f.browser = browser
	return browser, nil
}

// Fetch loads the URL and extracts the visible body text
func (f *RodFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	browser, err := f.connect()
	if err != nil {
		return "", "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := page.WaitLoad(); err != nil {
		return "", "", fmt.Errorf("page load failed: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("failed to read page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return "", "", fmt.Errorf("failed to locate page body: %w", err)
	}

	text, err := body.Text()
	if err != nil {
		return "", "", fmt.Errorf("failed to extract page text: %w", err)
	}

	return info.Title, text, nil
}

// Close shuts the shared browser down
func (f *RodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

// BrowseTool fetches and reads full web page content
type BrowseTool struct {
	fetcher  PageFetcher
	cache    *Cache
	maxChars int
}

// BrowseToolOptions configures the browse tool
type BrowseToolOptions struct {
	Fetcher  PageFetcher
	Cache    *Cache
	MaxChars int
}

// NewBrowseTool creates the browse tool
func NewBrowseTool(opts BrowseToolOptions) *BrowseTool {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 20000
	}
	return &BrowseTool{
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		maxChars: opts.MaxChars,
	}
}

// BrowseToolName is the name the browse tool registers under. Budgeting and
// markup parsing key off it.
const BrowseToolName = "browse_webpage"

func (t *BrowseTool) Name() string { return BrowseToolName }

func (t *BrowseTool) Description() string {
	return "Fetch a web page by URL and return its extracted text content."
}

func (t *BrowseTool) Parameters() []Param {
	return []Param{
		{Name: "url", Type: "string", Description: "URL of the page to read", Required: true},
	}
}

// Invoke fetches the page, consulting the cache first
func (t *BrowseTool) Invoke(ctx context.Context, args map[string]interface{}) (Output, error) {
	url, ok := args["url"].(string)
	if !ok || strings.TrimSpace(url) == "" {
		return Output{}, &ExecutionError{Code: CodeBadArgs, Message: "url must be a non-empty string"}
	}
	url = strings.TrimSpace(url)

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Output{}, &ExecutionError{Code: CodeBadArgs, Message: fmt.Sprintf("unsupported URL scheme: %s", url)}
	}

	if t.cache != nil {
		if out, hit := t.cache.Get(t.Name(), url); hit {
			return out, nil
		}
	}

	title, text, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return Output{}, &ExecutionError{Code: CodeExecution, Message: err.Error()}
	}

	if len(text) > t.maxChars {
		text = text[:t.maxChars] + "\n... [content truncated]"
	}

	out := Output{
		Content:   text,
		Citations: []Citation{{URL: url, Title: title}},
	}

	if t.cache != nil {
		_ = t.cache.Put(t.Name(), url, out)
	}

	return out, nil
}
