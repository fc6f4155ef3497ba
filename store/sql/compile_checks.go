package sqlstore

import "github.com/goliatone/go-federation/core"

var (
	_ core.EventStore     = (*EventStore)(nil)
	_ core.ItemStore      = (*ItemStore)(nil)
	_ core.ActorDirectory = (*CachedActorDirectory)(nil)
)
