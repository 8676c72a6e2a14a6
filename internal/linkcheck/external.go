package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// checkExternal probes each distinct URL once and maps failures back to every
// link that referenced it.
func (c *Checker) checkExternal(ctx context.Context, links []Link) ([]Issue, error) {
	byURL := make(map[string][]Link)
	for _, link := range links {
		byURL[link.Target] = append(byURL[link.Target], link)
	}

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	var (
		mu     sync.Mutex
		issues []Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for url, refs := range byURL {
		g.Go(func() error {
			reason, broken := c.probe(gctx, url)
			if !broken {
				return nil
			}
			mu.Lock()
			for _, ref := range refs {
				issues = append(issues, Issue{File: ref.File, Line: ref.Line, Target: url, Reason: reason})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return issues, nil
}

// probe tries HEAD first, falling back to GET for servers that reject HEAD.
// A single retry covers transient 5xx responses.
func (c *Checker) probe(ctx context.Context, url string) (string, bool) {
	client := c.httpClient()
	for attempt := 0; attempt < 2; attempt++ {
		status, err := doRequest(ctx, client, http.MethodHead, url)
		if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusForbidden) {
			status, err = doRequest(ctx, client, http.MethodGet, url)
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err().Error(), true
			}
			if attempt == 0 {
				continue
			}
			return err.Error(), true
		case status >= 200 && status < 400:
			return "", false
		case status >= 500 && attempt == 0:
			continue
		default:
			return fmt.Sprintf("HTTP %d", status), true
		}
	}
	return "unreachable", true
}

func doRequest(ctx context.Context, client *http.Client, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "docsite-linkcheck")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
