package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidActivityType = errors.New("core: invalid activity type")
	ErrInvalidVisibility   = errors.New("core: invalid status visibility")
	ErrStatusNotFound      = errors.New("core: status not found")
	ErrEventNotFound       = errors.New("core: delivery event not found")
	ErrOpenEventExists     = errors.New("core: an open delivery event already exists for this status")
	ErrKeysUnprovisioned   = errors.New("core: actor signing keys are not provisioned")
)

// ActivityType enumerates the activity verbs the engine can deliver. The set
// is closed: each verb has a dedicated payload builder in activity.go and
// anything else is rejected at the boundary.
type ActivityType string

const (
	ActivityTypeCreate   ActivityType = "create"
	ActivityTypeUpdate   ActivityType = "update"
	ActivityTypeDelete   ActivityType = "delete"
	ActivityTypeAnnounce ActivityType = "announce"
)

func ParseActivityType(raw string) (ActivityType, error) {
	switch ActivityType(strings.TrimSpace(strings.ToLower(raw))) {
	case ActivityTypeCreate:
		return ActivityTypeCreate, nil
	case ActivityTypeUpdate:
		return ActivityTypeUpdate, nil
	case ActivityTypeDelete:
		return ActivityTypeDelete, nil
	case ActivityTypeAnnounce:
		return ActivityTypeAnnounce, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivityType, raw)
}

func (t ActivityType) Validate() error {
	_, err := ParseActivityType(string(t))
	return err
}

// DeliveryResult is the aggregate outcome of a delivery event. It is derived
// from item outcomes by the dispatch coordinator and never set by callers.
type DeliveryResult string

const (
	DeliveryResultPending        DeliveryResult = "pending"
	DeliveryResultPartialFailure DeliveryResult = "partial_failure"
	DeliveryResultSuccess        DeliveryResult = "success"
	DeliveryResultFailure        DeliveryResult = "failure"
)

func (r DeliveryResult) Terminal() bool {
	switch r {
	case DeliveryResultSuccess, DeliveryResultPartialFailure, DeliveryResultFailure:
		return true
	}
	return false
}

// DeliveryEvent is one attempt-tracked unit of propagating one activity for
// one status mutation. Events are retained for audit and never deleted by the
// engine.
type DeliveryEvent struct {
	ID           string
	StatusID     string
	UserID       string
	Type         ActivityType
	Result       DeliveryResult
	ErrorMessage string
	Attempts     int
	StartAt      *time.Time
	EndAt        *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeliveryItem is one per-destination outcome record within an event. The URL
// is the dedup key: it appears at most once among an event's items. IsSuccess
// is tri-state; nil means the URL has not been attempted or is in flight.
type DeliveryItem struct {
	ID           string
	EventID      string
	URL          string
	IsSuccess    *bool
	ErrorMessage string
	StartAt      *time.Time
	EndAt        *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (i DeliveryItem) Succeeded() bool {
	return i.IsSuccess != nil && *i.IsSuccess
}

func (i DeliveryItem) Attempted() bool {
	return i.IsSuccess != nil
}

// AggregateResult derives an event result from its item outcomes.
//
// Success requires every item to have succeeded. With retries remaining the
// event stays pending; once exhausted, all-failed freezes as failure and a
// mix freezes as partial failure. An event with zero items is a success:
// there was nothing to deliver.
func AggregateResult(items []DeliveryItem, attempts int, maxAttempts int) DeliveryResult {
	if len(items) == 0 {
		return DeliveryResultSuccess
	}
	succeeded := 0
	for _, item := range items {
		if item.Succeeded() {
			succeeded++
		}
	}
	if succeeded == len(items) {
		return DeliveryResultSuccess
	}
	if attempts < maxAttempts {
		return DeliveryResultPending
	}
	if succeeded == 0 {
		return DeliveryResultFailure
	}
	return DeliveryResultPartialFailure
}

// Visibility controls the audience a status fans out to.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityUnlisted  Visibility = "unlisted"
	VisibilityFollowers Visibility = "followers"
	VisibilityDirect    Visibility = "direct"
)

func (v Visibility) Validate() error {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityFollowers, VisibilityDirect:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidVisibility, string(v))
}

// Status is the slice of a locally-authored status the delivery engine needs:
// audience, authorship, and the object payload embedded in outgoing
// activities. The full status entity lives with the status store.
type Status struct {
	ID            string
	AuthorUserID  string
	AuthorActorID string
	ActorURI      string
	Visibility    Visibility
	Mentions      []string
	Payload       map[string]any
}

// Inbox is one remote recipient endpoint. SharedURL, when the remote actor
// declares one, collapses many recipients on the same server into a single
// delivery.
type Inbox struct {
	URL       string
	SharedURL string
}

// ActorKeys holds a local actor's provisioned signing material. Keys are
// owned by the actor directory and passed into the signer per call; they are
// never cached as ambient state.
type ActorKeys struct {
	KeyID         string
	PrivateKeyPEM []byte
}

func (k ActorKeys) Validate() error {
	if strings.TrimSpace(k.KeyID) == "" || len(k.PrivateKeyPEM) == 0 {
		return ErrKeysUnprovisioned
	}
	return nil
}

// Viewer identifies the caller of a read operation for authorization.
type Viewer struct {
	UserID string
	Roles  []string
}

func (v Viewer) IsStaff() bool {
	for _, role := range v.Roles {
		switch strings.TrimSpace(strings.ToLower(role)) {
		case "moderator", "admin":
			return true
		}
	}
	return false
}

type DeliverRequest struct {
	StatusID string
	UserID   string
	Type     ActivityType
}

type RetryDeliveryRequest struct {
	EventID string
	Viewer  Viewer
}

type ListDeliveryEventsRequest struct {
	StatusID string
	Viewer   Viewer
	Page     int
	PerPage  int
}

type ListDeliveryItemsRequest struct {
	EventID    string
	Viewer     Viewer
	OnlyErrors bool
	Page       int
	PerPage    int
}

type DeliveryEventPage struct {
	Events  []DeliveryEvent
	Total   int
	Page    int
	PerPage int
}

type DeliveryItemPage struct {
	Items   []DeliveryItem
	Total   int
	Page    int
	PerPage int
}

// DeliveryTask is one unit of work handed to the fan-out layer: one signed
// POST of Body to URL on behalf of the actor identified by Keys.
type DeliveryTask struct {
	EventID string
	ItemID  string
	URL     string
	Body    []byte
	Keys    ActorKeys
	Timeout time.Duration
}

// DeliveryOutcome is the worker's report for one task. HTTPStatus is zero for
// transport-level failures; ErrorText carries the status line or transport
// error verbatim for later diagnosis.
type DeliveryOutcome struct {
	ItemID     string
	URL        string
	Success    bool
	HTTPStatus int
	ErrorText  string
	Duration   time.Duration
}
