package viewertoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	minRefreshMargin = 2 * time.Second
	maxRefreshMargin = 30 * time.Second
	minRefreshDelay  = time.Second
	maxRetryDelay    = 30 * time.Second

	maxRefreshBody = 64 << 10
)

// RefreshDelay is how long after issue a token of lifetime ttl is renewed:
// ttl minus a quarter of it, with the margin clamped to [2s, 30s] and the
// wait never below one second.
func RefreshDelay(ttl time.Duration) time.Duration {
	secs := ttl / time.Second
	margin := min(maxRefreshMargin, max(minRefreshMargin, (secs/4)*time.Second))
	return max(minRefreshDelay, secs*time.Second-margin)
}

// RetryDelay is the wait before retrying a failed refresh.
func RetryDelay(ttl time.Duration) time.Duration {
	return min(maxRetryDelay, ttl)
}

// StartAutoRefresh schedules token renewal. It does nothing unless the
// helper has a token, a refresh URL and a positive TTL.
func (h *Helper) StartAutoRefresh() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.canRefresh() {
		return
	}
	if h.stopped {
		h.ctx, h.cancel = context.WithCancel(context.Background())
		h.stopped = false
	}
	h.scheduleLocked(RefreshDelay(h.ttl))
}

// Stop cancels the pending refresh and any request in flight. A stopped
// helper keeps rewriting URLs with its last token.
func (h *Helper) Stop() {
	h.mu.Lock()
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	cancel := h.cancel
	h.mu.Unlock()

	cancel()
}

// RefreshNow renews the token immediately. It reports false without doing
// anything when a refresh is already in flight or refreshing is not
// configured. On return the next refresh or retry has been scheduled.
func (h *Helper) RefreshNow() bool {
	h.mu.Lock()
	if !h.canRefresh() || h.refreshing {
		h.mu.Unlock()
		return false
	}
	h.refreshing = true
	ctx := h.ctx
	h.mu.Unlock()

	token, param, err := h.fetch(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshing = false

	if err != nil {
		h.logger.Debug("token refresh failed", slog.String("url", h.refreshURL), slog.Any("err", err))
		if !h.stopped {
			h.scheduleLocked(RetryDelay(h.ttl))
		}
		return true
	}

	h.setToken(token, param)
	if !h.stopped {
		h.scheduleLocked(RefreshDelay(h.ttl))
	}
	return true
}

func (h *Helper) canRefresh() bool {
	return h.refreshURL != "" && h.ttl > 0 && h.token != ""
}

// scheduleLocked replaces the pending timer with one firing after d. A
// replaced timer that fires anyway finds its generation stale and returns.
func (h *Helper) scheduleLocked(d time.Duration) {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.generation++
	gen := h.generation
	h.timer = h.clock.AfterFunc(d, func() {
		h.mu.Lock()
		current := gen == h.generation && !h.stopped
		h.mu.Unlock()
		if current {
			h.RefreshNow()
		}
	})
}

type refreshResponse struct {
	Token string `json:"token"`
	Param string `json:"param"`
}

var errNoToken = errors.New("token missing in response")

func (h *Helper) fetch(ctx context.Context) (token, param string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.refreshURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRefreshBody))
		return "", "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRefreshBody)).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if body.Token == "" {
		return "", "", errNoToken
	}
	return body.Token, body.Param, nil
}
