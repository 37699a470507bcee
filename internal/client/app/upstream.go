package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mzhdanov/bandtrack/internal/client/swcache"
)

// httpUpstream resolves worker asset paths against the deployment server.
// Shell paths like "/" and "/immutable/..." live under /app/ on the server.
type httpUpstream struct {
	base   string
	client *http.Client
}

func newHTTPUpstream(base string) *httpUpstream {
	return &httpUpstream{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *httpUpstream) url(path string) string {
	if strings.HasPrefix(path, "/app/") {
		return u.base + path
	}
	return u.base + "/app" + path
}

func (u *httpUpstream) Fetch(ctx context.Context, path string, bypassCache bool) (*swcache.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url(path), nil)
	if err != nil {
		return nil, err
	}
	if bypassCache {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &swcache.Response{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
