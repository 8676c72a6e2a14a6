package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type fetchResult struct {
	body        []byte
	etag        string
	notModified bool
}

// terminalError marks HTTP failures that retrying cannot fix.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// fetch downloads url, sending If-None-Match when etag is non-empty. Transport
// errors and 5xx responses are retried with exponential backoff; 4xx are not.
func (r *Runner) fetch(ctx context.Context, url, etag string) (fetchResult, error) {
	var lastErr error
	backoff := r.opts.Backoff
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fetchResult{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		res, err := r.fetchOnce(ctx, url, etag)
		if err == nil {
			return res, nil
		}
		var terminal *terminalError
		if ctx.Err() != nil {
			return fetchResult{}, ctx.Err()
		}
		if errors.As(err, &terminal) {
			return fetchResult{}, terminal.err
		}
		lastErr = err
	}
	return fetchResult{}, fmt.Errorf("giving up after %d attempts: %w", r.opts.MaxAttempts, lastErr)
}

func (r *Runner) fetchOnce(ctx context.Context, url, etag string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchResult{}, &terminalError{err: err}
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := r.opts.Client.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return fetchResult{notModified: true}, nil
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, fmt.Errorf("read %s: %w", url, err)
		}
		return fetchResult{body: body, etag: resp.Header.Get("ETag")}, nil
	case resp.StatusCode >= 500:
		return fetchResult{}, fmt.Errorf("%s returned %s", url, resp.Status)
	default:
		return fetchResult{}, &terminalError{err: fmt.Errorf("%s returned %s", url, resp.Status)}
	}
}
