package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mendableai/firecrawl-go"
)

// FireCrawlClient fetches rendered pages as markdown through FireCrawl
type FireCrawlClient struct {
	scrape  func(url string) (string, error)
	timeout time.Duration
}

// NewFireCrawlClient creates a FireCrawl client for the hosted API
func NewFireCrawlClient(apiKey string) (*FireCrawlClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("firecrawl API key is required")
	}

	app, err := firecrawl.NewFirecrawlApp(apiKey, "https://api.firecrawl.dev")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FireCrawl client: %w", err)
	}

	return NewFireCrawlClientWithScraper(func(url string) (string, error) {
		doc, err := app.ScrapeURL(url, nil)
		if err != nil {
			return "", err
		}
		if doc == nil {
			return "", fmt.Errorf("empty FireCrawl document")
		}
		return doc.Markdown, nil
	}), nil
}

// NewFireCrawlClientWithScraper wraps any url → markdown function
func NewFireCrawlClientWithScraper(scrape func(url string) (string, error)) *FireCrawlClient {
	return &FireCrawlClient{scrape: scrape, timeout: 60 * time.Second}
}

// ScrapeMarkdown returns a page's markdown. The FireCrawl SDK is not
// context-aware, so the call is abandoned when ctx ends.
func (fc *FireCrawlClient) ScrapeMarkdown(ctx context.Context, url string) (string, error) {
	if err := ValidateURL(url); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	type result struct {
		markdown string
		err      error
	}
	done := make(chan result, 1)
	startTime := time.Now()

	go func() {
		md, err := fc.scrape(url)
		done <- result{md, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("FireCrawl scrape of %s abandoned: %w", url, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("FireCrawl scrape failed: %w", r.err)
		}
		log.Printf("[FIRECRAWL] Scraped %s (%d chars) in %v", url, len(r.markdown), time.Since(startTime))
		return r.markdown, nil
	}
}
