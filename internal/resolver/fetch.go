package resolver

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scriptparser-go/internal/errs"
)

// Two deliberately separate clients. shareClient follows the share
// link's redirect chain with browser-ish headers; pageClient fetches
// the rebuilt canonical URL with a minimal header set. The platforms
// serve a templated page without the media JSON when the second fetch
// looks like a continuation of the first session, so the two must not
// share cookies, headers or state.
var (
	shareClient = &http.Client{Timeout: 20 * time.Second}
	pageClient  = &http.Client{Timeout: 20 * time.Second}
)

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) EdgiOS/121.0.2277.107 Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Mobile Safari/537.36",
}

// fetchFinalURL follows the share link through its redirects and
// returns the landing URL, which carries the canonical content id.
// Transient network failures retry with exponential backoff, rotating
// through the user-agent pool.
func fetchFinalURL(ctx context.Context, rawURL string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second

	var (
		finalURL string
		lastErr  error
		attempt  int
	)
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgents[attempt%len(userAgents)])
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.8,en-US;q=0.5,en;q=0.3")
		attempt++

		resp, err := shareClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		// the id lives in the final URL; the body is irrelevant here
		finalURL = resp.Request.URL.String()
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return "", errs.Wrap(errs.KindResolveUpstream, "Video platform is temporarily unavailable", err)
	}
	return finalURL, nil
}

// fetchCleanPage requests the canonical page rebuilt from the content
// id, sending nothing but a user-agent.
func fetchCleanPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedShare, "Failed to parse video URL", err)
	}
	req.Header.Set("User-Agent", userAgents[0])

	resp, err := pageClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindResolveUpstream, "Video platform is temporarily unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Newf(errs.KindResolveUpstream, "Video platform returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.KindResolveUpstream, "Video platform is temporarily unavailable", err)
	}
	return string(body), nil
}
