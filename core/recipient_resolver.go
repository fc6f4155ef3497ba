package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// RecipientResolver turns a status and its visibility into the deduplicated
// set of destination inbox URLs. Shared inboxes collapse many followers on
// one remote server into a single delivery; the normalized URL string is the
// dedup key.
type RecipientResolver struct {
	directory ActorDirectory
}

func NewRecipientResolver(directory ActorDirectory) (*RecipientResolver, error) {
	if directory == nil {
		return nil, fmt.Errorf("core: actor directory is required")
	}
	return &RecipientResolver{directory: directory}, nil
}

// Resolve returns destination URLs in first-seen order. A status with no
// resolvable recipients yields an empty slice, not an error: there is
// nothing to deliver.
func (r *RecipientResolver) Resolve(ctx context.Context, status Status, activityType ActivityType) ([]string, error) {
	if r == nil || r.directory == nil {
		return nil, fmt.Errorf("core: recipient resolver is not configured")
	}
	if err := status.Visibility.Validate(); err != nil {
		return nil, err
	}
	if err := activityType.Validate(); err != nil {
		return nil, err
	}

	var inboxes []Inbox
	switch status.Visibility {
	case VisibilityPublic, VisibilityUnlisted:
		followers, err := r.directory.ResolveFollowerInboxes(ctx, status.AuthorActorID)
		if err != nil {
			return nil, fmt.Errorf("core: resolve follower inboxes: %w", err)
		}
		inboxes = append(inboxes, followers...)
		mentioned, err := r.resolveMentions(ctx, status)
		if err != nil {
			return nil, err
		}
		inboxes = append(inboxes, mentioned...)
	case VisibilityFollowers:
		followers, err := r.directory.ResolveFollowerInboxes(ctx, status.AuthorActorID)
		if err != nil {
			return nil, fmt.Errorf("core: resolve follower inboxes: %w", err)
		}
		inboxes = append(inboxes, followers...)
	case VisibilityDirect:
		mentioned, err := r.resolveMentions(ctx, status)
		if err != nil {
			return nil, err
		}
		inboxes = append(inboxes, mentioned...)
	}

	seen := map[string]struct{}{}
	urls := make([]string, 0, len(inboxes))
	for _, inbox := range inboxes {
		destination := inbox.URL
		if strings.TrimSpace(inbox.SharedURL) != "" {
			destination = inbox.SharedURL
		}
		normalized, err := NormalizeInboxURL(destination)
		if err != nil {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	return urls, nil
}

func (r *RecipientResolver) resolveMentions(ctx context.Context, status Status) ([]Inbox, error) {
	mentions := make([]string, 0, len(status.Mentions))
	for _, mention := range status.Mentions {
		if trimmed := strings.TrimSpace(mention); trimmed != "" {
			mentions = append(mentions, trimmed)
		}
	}
	if len(mentions) == 0 {
		return nil, nil
	}
	inboxes, err := r.directory.ResolveMentionedInboxes(ctx, mentions)
	if err != nil {
		return nil, fmt.Errorf("core: resolve mentioned inboxes: %w", err)
	}
	return inboxes, nil
}

// NormalizeInboxURL canonicalizes a destination URL for dedup: scheme and
// host lowercased, default ports stripped, trailing slash removed. Empty or
// unparseable values are rejected.
func NormalizeInboxURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("core: inbox url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("core: invalid inbox url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("core: invalid inbox url %q: scheme and host are required", raw)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	switch {
	case parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	case parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.Fragment = ""
	return parsed.String(), nil
}
