// Package core contains the canonical federation delivery domain: delivery
// events and items, recipient resolution, HTTP signature signing, and the
// dispatch coordinator that drives fan-out passes. Lower-level adapters must
// depend on this package; core must not depend on transport-specific or
// storage-specific adapters.
package core
