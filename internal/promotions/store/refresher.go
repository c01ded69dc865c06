package store

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/promoengine/pkg/logger"
)

const defaultRefreshInterval = time.Minute

type refreshable interface {
	Refresh(ctx context.Context) error
}

// Refresher reloads the promotions cache on a fixed interval.
type Refresher struct {
	source   refreshable
	interval time.Duration
	logg     *logger.Logger
}

func NewRefresher(source refreshable, interval time.Duration, logg *logger.Logger) (*Refresher, error) {
	if source == nil {
		return nil, errors.New("refresh source required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{source: source, interval: interval, logg: logg}, nil
}

// Run refreshes once immediately and then on every tick until ctx ends.
// Refresh failures are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	ctx = r.logg.WithField(ctx, "job", "promotions_cache_refresh")
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "promotions cache refresher stopped")
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.source.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logg.Error(ctx, "promotions cache refresh failed", err)
	}
}
