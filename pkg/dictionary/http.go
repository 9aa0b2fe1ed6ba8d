package dictionary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 10 * 1024 * 1024

// NewRateLimiter returns a limiter admitting perSecond requests per second
// with bursts of the same size. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// httpFetcher is the request plumbing shared by the HTTP sources.
type httpFetcher struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func newHTTPFetcher(name string, client *http.Client, limiter *rate.Limiter, logger *slog.Logger) httpFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return httpFetcher{name: name, client: client, limiter: limiter, log: logger.With("adapter", name)}
}

// get fetches url and returns the body of a 200 response. Other statuses
// and network failures are mapped onto the error taxonomy.
func (f httpFetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", f.name, err)
	}
	SetBrowserHeaders(req, accept)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Source: f.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(f.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransientError{Source: f.name, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// SetBrowserHeaders mimics a desktop Chrome request so dictionary sites do
// not block the scraper.
func SetBrowserHeaders(req *http.Request, accept string) {
	if accept == "" {
		accept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")
	req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
