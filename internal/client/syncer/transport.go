package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// Transport is the wire side of a sync round. Implemented over HTTP in
// production, faked in tests.
type Transport interface {
	Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error)
	Pull(ctx context.Context, lastSyncAt string) (*syncapi.PullResponse, error)
	Ping(ctx context.Context) error
}

// HTTPTransport talks to the sync server with a bearer token.
type HTTPTransport struct {
	base   string
	token  string
	client *http.Client
}

func NewHTTPTransport(base, token string) *HTTPTransport {
	return &HTTPTransport{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode push: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+"/api/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out syncapi.PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	return &out, nil
}

func (t *HTTPTransport) Pull(ctx context.Context, lastSyncAt string) (*syncapi.PullResponse, error) {
	u := t.base + "/api/sync/pull"
	if lastSyncAt != "" {
		u += "?lastSyncAt=" + url.QueryEscape(lastSyncAt)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out syncapi.PullResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pull response: %w", err)
	}
	return &out, nil
}

// Ping probes reachability via the version endpoint, which is never cached.
func (t *HTTPTransport) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/app/version.json", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return common.ErrOwnershipConflict
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sync server status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
