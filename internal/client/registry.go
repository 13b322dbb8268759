package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry keeps the most recently used clients by visitor id. Evicted
// clients are closed; their visitors are restored from cookie tokens on the
// next request.
type Registry struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Client]
	deps  Deps
	log   *slog.Logger
}

func NewRegistry(size int, deps Deps) (*Registry, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{deps: deps, log: log}

	cache, err := lru.NewWithEvict(size, func(id string, c *Client) {
		c.Close()
		r.log.Debug("клиент посетителя вытеснен", slog.String("visitor_id", id))
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания реестра клиентов: %w", err)
	}
	r.cache = cache

	return r, nil
}

// Get returns the visitor's client, creating it when absent. created
// reports whether the caller should restore the session.
func (r *Registry) Get(ctx context.Context, visitorID string) (c *Client, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache.Get(visitorID); ok {
		return c, false, nil
	}

	c, err = New(ctx, visitorID, r.deps)
	if err != nil {
		return nil, false, err
	}

	r.cache.Add(visitorID, c)
	r.report()
	return c, true, nil
}

func (r *Registry) Remove(visitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Remove(visitorID)
	r.report()
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) report() {
	if r.deps.Metrics != nil {
		r.deps.Metrics.SetActiveClients(r.cache.Len())
	}
}
