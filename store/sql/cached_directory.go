package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-federation/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const followerInboxesCacheKeyPrefix = "go-federation::follower_inboxes::v1"

// CachedActorDirectory caches follower inbox resolution, the expensive fanout
// query that repeats on every retry pass for the same actor. Key material and
// mention resolution always go to the base directory: keys must never sit in
// a cache, and mention sets vary per status.
type CachedActorDirectory struct {
	base  core.ActorDirectory
	cache repositorycache.CacheService
}

func NewCachedActorDirectory(
	base core.ActorDirectory,
	cacheService repositorycache.CacheService,
) (*CachedActorDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base actor directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: actor directory cache service is required")
	}
	return &CachedActorDirectory{base: base, cache: cacheService}, nil
}

// FollowerInboxesCacheKey returns the deterministic cache key contract for
// follower inbox reads: go-federation::follower_inboxes::v1::<actor_id> with
// the actor segment URL-path escaped.
func FollowerInboxesCacheKey(actorID string) (string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", fmt.Errorf("sqlstore: actor id is required")
	}
	return followerInboxesCacheKeyPrefix + "::" + url.PathEscape(actorID), nil
}

func (d *CachedActorDirectory) GetActorKeys(ctx context.Context, actorID string) (core.ActorKeys, error) {
	if d == nil || d.base == nil {
		return core.ActorKeys{}, fmt.Errorf("sqlstore: cached actor directory is not configured")
	}
	return d.base.GetActorKeys(ctx, actorID)
}

func (d *CachedActorDirectory) ResolveFollowerInboxes(ctx context.Context, actorID string) ([]core.Inbox, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached actor directory is not configured")
	}
	cacheKey, err := FollowerInboxesCacheKey(actorID)
	if err != nil {
		return nil, err
	}

	inboxes, err := repositorycache.GetOrFetch(ctx, d.cache, cacheKey, func(ctx context.Context) ([]core.Inbox, error) {
		fetched, fetchErr := d.base.ResolveFollowerInboxes(ctx, actorID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneInboxes(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneInboxes(inboxes), nil
}

func (d *CachedActorDirectory) ResolveMentionedInboxes(ctx context.Context, mentions []string) ([]core.Inbox, error) {
	if d == nil || d.base == nil {
		return nil, fmt.Errorf("sqlstore: cached actor directory is not configured")
	}
	return d.base.ResolveMentionedInboxes(ctx, mentions)
}

// InvalidateFollowers drops the cached inbox list for an actor. Call it on
// follow and unfollow so the next fanout sees the new audience.
func (d *CachedActorDirectory) InvalidateFollowers(ctx context.Context, actorID string) error {
	if d == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached actor directory is not configured")
	}
	cacheKey, err := FollowerInboxesCacheKey(actorID)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, cacheKey)
}

func cloneInboxes(inboxes []core.Inbox) []core.Inbox {
	if inboxes == nil {
		return nil
	}
	return append([]core.Inbox(nil), inboxes...)
}
