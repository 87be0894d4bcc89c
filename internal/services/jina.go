package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// ErrJinaClientError marks 4xx responses, which are not retried
var ErrJinaClientError = errors.New("jina client error")

// JinaClient fetches web pages as markdown through the Jina AI Reader
type JinaClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	userAgents  []string
	retryConfig RetryConfig
}

// RetryConfig defines retry behavior for failed requests
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NewJinaClient creates a reader client. apiKey may be empty for the
// rate-limited anonymous tier.
func NewJinaClient(apiKey string) *JinaClient {
	return &JinaClient{
		httpClient: &http.Client{Timeout: 45 * time.Second},
		baseURL:    "https://r.jina.ai",
		apiKey:     apiKey,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		retryConfig: RetryConfig{
			MaxRetries:    2,
			InitialDelay:  time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
	}
}

// WithBaseURL points the client at another reader endpoint
func (j *JinaClient) WithBaseURL(baseURL string) *JinaClient {
	j.baseURL = strings.TrimSuffix(baseURL, "/")
	return j
}

// WithRetryConfig replaces the retry policy
func (j *JinaClient) WithRetryConfig(rc RetryConfig) *JinaClient {
	j.retryConfig = rc
	return j
}

// ExtractContent fetches a page as markdown, retrying server errors with backoff
func (j *JinaClient) ExtractContent(ctx context.Context, url string) (string, error) {
	if err := ValidateURL(url); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= j.retryConfig.MaxRetries; attempt++ {
		content, err := j.attemptExtraction(ctx, url, attempt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if errors.Is(err, ErrJinaClientError) || ctx.Err() != nil {
			break
		}
		if attempt < j.retryConfig.MaxRetries {
			delay := j.calculateDelay(attempt)
			log.Printf("[JINA] Attempt %d failed for %s, retrying in %v: %v", attempt+1, url, delay, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", j.retryConfig.MaxRetries+1, lastErr)
}

func (j *JinaClient) attemptExtraction(ctx context.Context, url string, attempt int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", j.baseURL, url), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	j.setHeaders(req, attempt)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("jina request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrJinaClientError, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("jina returned status %d: %s", resp.StatusCode, string(body))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read jina response: %w", err)
	}
	if len(content) < 100 {
		return "", fmt.Errorf("content too short (%d chars), might be an error page", len(content))
	}
	return string(content), nil
}

func (j *JinaClient) setHeaders(req *http.Request, attempt int) {
	req.Header.Set("User-Agent", j.userAgents[attempt%len(j.userAgents)])
	req.Header.Set("Accept", "text/plain, text/markdown;q=0.9, */*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Return-Format", "markdown")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}
	if attempt > 0 {
		req.Header.Set("Cache-Control", "no-cache")
	}
}

func (j *JinaClient) calculateDelay(attempt int) time.Duration {
	delay := float64(j.retryConfig.InitialDelay)*(j.retryConfig.BackoffFactor*float64(attempt+1)) +
		rand.Float64()*0.1*float64(j.retryConfig.InitialDelay)
	if delay > float64(j.retryConfig.MaxDelay) {
		delay = float64(j.retryConfig.MaxDelay)
	}
	return time.Duration(delay)
}

// ValidateURL performs basic URL validation before sending to a reader
func ValidateURL(url string) error {
	if url == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if len(url) > 2048 {
		return fmt.Errorf("URL too long: %d characters", len(url))
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}
