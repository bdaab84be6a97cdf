package metadata

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

// Store is a durable second-level cache behind the in-memory LRU.
type Store interface {
	Get(ctx context.Context, url string) (dance.TrackInfo, bool, error)
	Put(ctx context.Context, t dance.TrackInfo) error
}

// CachedProvider memoizes successful lookups. Concurrent requests for the
// same URL share a single upstream call. Failures are never cached.
type CachedProvider struct {
	next  Provider
	store Store
	cache *lru.Cache[string, dance.TrackInfo]
	group singleflight.Group
	log   *zap.Logger
}

func NewCachedProvider(next Provider, size int, store Store, log *zap.Logger) (*CachedProvider, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, dance.TrackInfo](size)
	if err != nil {
		return nil, fmt.Errorf("metadata cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedProvider{next: next, store: store, cache: c, log: log}, nil
}

func (p *CachedProvider) Fetch(ctx context.Context, url string) (dance.TrackInfo, error) {
	if t, ok := p.cache.Get(url); ok {
		return t, nil
	}

	v, err, _ := p.group.Do(url, func() (any, error) {
		if p.store != nil {
			t, ok, err := p.store.Get(ctx, url)
			if err != nil {
				p.log.Warn("track store read failed", zap.String("url", url), zap.Error(err))
			} else if ok {
				p.cache.Add(url, t)
				return t, nil
			}
		}

		t, err := p.next.Fetch(ctx, url)
		if err != nil {
			return dance.TrackInfo{}, err
		}
		p.cache.Add(url, t)
		if p.store != nil {
			if err := p.store.Put(ctx, t); err != nil {
				p.log.Warn("track store write failed", zap.String("url", url), zap.Error(err))
			}
		}
		return t, nil
	})
	if err != nil {
		return dance.TrackInfo{}, err
	}
	return v.(dance.TrackInfo), nil
}

func (p *CachedProvider) Len() int { return p.cache.Len() }
