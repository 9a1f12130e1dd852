// Package catalog supplies the pool of selectable items. The draft engine
// only uses it for duplicate detection context and forced default picks;
// item data is opaque to everything else.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider returns the current selectable items. Implementations must not
// block on network I/O: Items is called from room actor loops.
type Provider interface {
	Items() []Item
}

// Static serves a fixed item list. Used in tests and as an offline fallback.
type Static struct {
	items []Item
}

func NewStatic(items ...Item) *Static {
	return &Static{items: items}
}

func (s *Static) Items() []Item {
	return append([]Item(nil), s.items...)
}

// HTTP fetches the item list from an upstream JSON endpoint and serves it
// from an in-memory cache, refreshing on a fixed interval in the
// background. A failed refresh keeps the previous list.
type HTTP struct {
	url    string
	client *http.Client
	clock  clockwork.Clock
	logger *zap.Logger

	mu    sync.RWMutex
	items []Item
}

func NewHTTP(ctx context.Context, url string, refresh time.Duration, clock clockwork.Clock, logger *zap.Logger) *HTTP {
	h := &HTTP{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		clock:  clock,
		logger: logger,
	}
	if err := h.fetch(ctx); err != nil {
		logger.Warn("initial catalog fetch failed", zap.String("url", url), zap.Error(err))
	}
	go h.refreshLoop(ctx, refresh)
	return h
}

func (h *HTTP) Items() []Item {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Item(nil), h.items...)
}

func (h *HTTP) refreshLoop(ctx context.Context, every time.Duration) {
	ticker := h.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := h.fetch(ctx); err != nil {
				h.logger.Warn("catalog refresh failed", zap.String("url", h.url), zap.Error(err))
			}
		}
	}
}

// upstreamItem matches the hero feed's shape; ids arrive as numbers.
type upstreamItem struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	InDevelopment bool        `json:"in_development"`
	Disabled      bool        `json:"disabled"`
}

func (h *HTTP) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}

	var raw []upstreamItem
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		if it.InDevelopment || it.Disabled {
			continue
		}
		items = append(items, Item{ID: normalizeID(it.ID), Name: it.Name})
	}

	h.mu.Lock()
	h.items = items
	h.mu.Unlock()
	h.logger.Info("catalog refreshed", zap.Int("items", len(items)))
	return nil
}

func normalizeID(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return n.String()
}
