// Package media downloads pronunciation audio referenced by enrichment
// records into a local media directory.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/japaniel/bookdeck/pkg/dictionary"
)

const (
	DefaultMaxConcurrent = 10
	DefaultMaxRetries    = 2
	defaultTimeout       = 20 * time.Second
	maxAudioSize         = 5 * 1024 * 1024
)

// Downloader fetches audio files once and names them after the md5 of their URL.
type Downloader struct {
	Dir           string
	Client        *http.Client
	Limiter       *rate.Limiter
	MaxConcurrent int
	MaxRetries    int
	// RetryInterval is the first backoff delay.
	RetryInterval time.Duration
	Logger        *slog.Logger
}

// NewDownloader stores files under dir.
func NewDownloader(dir string) *Downloader {
	return &Downloader{
		Dir:           dir,
		Client:        &http.Client{Timeout: defaultTimeout},
		Limiter:       dictionary.NewRateLimiter(20),
		MaxConcurrent: DefaultMaxConcurrent,
		MaxRetries:    DefaultMaxRetries,
		RetryInterval: time.Second,
	}
}

// Result summarizes an Attach call.
type Result struct {
	Downloaded int      // files fetched over the network
	Reused     int      // files already present in Dir
	Failed     []string // URLs that could not be fetched
}

// FileName is the media file name for url: md5 hex plus the URL's
// extension, ".mp3" when it has none.
func FileName(url string) string {
	sum := md5.Sum([]byte(url))
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	return hex.EncodeToString(sum[:]) + ext
}

// Attach downloads the audio of every record that has one and sets the
// record's AudioRef to the file name. A failed download leaves AudioRef
// empty and does not fail the call; only cancellation or an unusable Dir does.
func (d *Downloader) Attach(ctx context.Context, records []*dictionary.Record) (Result, error) {
	var res Result
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return res, fmt.Errorf("create media dir: %w", err)
	}

	// Several records may share one URL; fetch it once.
	byURL := make(map[string][]*dictionary.Record)
	var urls []string
	for _, r := range records {
		if r == nil {
			continue
		}
		u := r.AudioURL()
		if u == "" {
			continue
		}
		if _, ok := byURL[u]; !ok {
			urls = append(urls, u)
		}
		byURL[u] = append(byURL[u], r)
	}

	limit := d.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	var downloaded, reused atomic.Int32
	failed := make([]bool, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			name, fresh, err := d.download(gctx, u)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger().Warn("audio download failed", slog.String("url", u), slog.Any("error", err))
				failed[i] = true
				return nil
			}
			if fresh {
				downloaded.Add(1)
			} else {
				reused.Add(1)
			}
			for _, r := range byURL[u] {
				r.AudioRef = name
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.Downloaded = int(downloaded.Load())
	res.Reused = int(reused.Load())
	for i, f := range failed {
		if f {
			res.Failed = append(res.Failed, urls[i])
		}
	}
	return res, nil
}

// download returns the file name for url and whether it was fetched now.
func (d *Downloader) download(ctx context.Context, url string) (string, bool, error) {
	name := FileName(url)
	dst := filepath.Join(d.Dir, name)
	if fi, err := os.Stat(dst); err == nil && fi.Size() > 0 {
		return name, false, nil
	}

	eb := backoff.NewExponentialBackOff()
	if d.RetryInterval > 0 {
		eb.InitialInterval = d.RetryInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()
	retries := d.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	err := backoff.Retry(func() error {
		err := d.fetch(ctx, url, dst)
		if err != nil && (dictionary.IsPermanent(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (d *Downloader) fetch(ctx context.Context, url, dst string) error {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	dictionary.SetBrowserHeaders(req, "audio/mpeg,audio/*;q=0.9,*/*;q=0.5")

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("audio: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: audio status %d", dictionary.ErrRejected, resp.StatusCode)
	}

	// Write to a temp file first so a partial download never looks complete.
	tmp, err := os.CreateTemp(d.Dir, ".download-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxAudioSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("audio: empty response")
	}
	if n > maxAudioSize {
		return backoff.Permanent(fmt.Errorf("audio: larger than %d bytes", maxAudioSize))
	}
	return os.Rename(tmp.Name(), dst)
}

func (d *Downloader) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}
