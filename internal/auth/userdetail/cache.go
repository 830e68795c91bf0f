package userdetail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/brizzai/llm-server/internal/requester"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher performs GET requests against the identity provider API
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values) (*requester.Response, error)
}

// Cache memoizes user lookups with LRU eviction. Entries are never
// invalidated; a changed upstream profile is only seen after eviction.
// Returned values are shared and must not be modified.
type Cache struct {
	fetcher Fetcher
	entries *lru.Cache[string, *models.UserDetail]
	group   singleflight.Group
}

// New creates a cache holding at most size users
func New(fetcher Fetcher, size int) (*Cache, error) {
	entries, err := lru.New[string, *models.UserDetail](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Cache{fetcher: fetcher, entries: entries}, nil
}

// GetUserDetail returns the user for userID, calling upstream at most once
// per key at a time. Upstream failures are returned and not cached.
func (c *Cache) GetUserDetail(ctx context.Context, userID string) (*models.UserDetail, error) {
	if userID == "" {
		return nil, models.ErrMissingSubject
	}
	if u, ok := c.entries.Get(userID); ok {
		return u, nil
	}

	v, err, shared := c.group.Do(userID, func() (interface{}, error) {
		// a previous flight may have filled it
		if u, ok := c.entries.Peek(userID); ok {
			return u, nil
		}
		// One caller hanging up must not fail the others waiting on this flight
		u, err := c.fetch(context.WithoutCancel(ctx), userID)
		if err != nil {
			return nil, err
		}
		c.entries.Add(userID, u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Coalesced user detail lookup", zap.String("user_id", userID))
	}
	return v.(*models.UserDetail), nil
}

// Len returns the number of cached users
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) fetch(ctx context.Context, userID string) (*models.UserDetail, error) {
	resp, err := c.fetcher.Get(ctx, "users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	if !resp.IsSuccess() {
		logger.Warn("Identity provider rejected user lookup",
			zap.String("user_id", userID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: user lookup returned status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var u models.UserDetail
	if err := json.Unmarshal(resp.Body, &u); err != nil {
		return nil, fmt.Errorf("%w: failed to decode user: %v", models.ErrUpstreamUnavailable, err)
	}
	if u.ID == "" {
		return nil, errors.Join(models.ErrUpstreamUnavailable, models.ErrMissingSubject)
	}
	return &u, nil
}
