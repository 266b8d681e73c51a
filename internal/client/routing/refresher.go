package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Activate drops responses cached under older cache versions.
func (rt *Router) Activate(ctx context.Context) error {
	n, err := rt.cache.Activate(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		rt.logger.Info(ctx, "dropped stale cache entries", "count", n, "cache", rt.cache.Name())
	}
	return nil
}

// Precache stores the app shell assets. Assets that fail are skipped and
// reported in the returned error; the others are still stored.
func (rt *Router) Precache(ctx context.Context) (int, error) {
	var (
		stored int
		errs   []error
	)
	for _, asset := range rt.assets {
		resp, cacheable, err := rt.fetch(ctx, asset, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", asset, err))
			continue
		}
		if resp.Status != http.StatusOK || !cacheable {
			errs = append(errs, fmt.Errorf("%s: status %d", asset, resp.Status))
			continue
		}
		if err := rt.cache.Put(ctx, asset, resp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", asset, err))
			continue
		}
		stored++
	}
	return stored, errors.Join(errs...)
}

// RunRefresher re-fetches the precached assets every interval until ctx is
// done. It runs independently of entity sync.
func (rt *Router) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := rt.Precache(ctx)
			if err != nil {
				rt.logger.Warn(ctx, "asset refresh incomplete", "stored", n, "error", err)
				continue
			}
			rt.logger.Debug(ctx, "assets refreshed", "stored", n)
		case <-ctx.Done():
			return
		}
	}
}
