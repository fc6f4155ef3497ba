package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

// ActivityEnvelope is the serialized wire form of one status mutation. The
// verb set is closed: BuildActivity dispatches over ActivityType and every
// variant has its own payload builder rather than branching downstream.
type ActivityEnvelope struct {
	Context string         `json:"@context"`
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Actor   string         `json:"actor"`
	To      []string       `json:"to,omitempty"`
	Object  any            `json:"object"`
	Extra   map[string]any `json:"-"`
}

// BuildActivity produces the signed-and-posted activity body for one status
// mutation. The returned bytes are identical across retry passes; only the
// request signature is recomputed per attempt.
func BuildActivity(activityType ActivityType, status Status) ([]byte, error) {
	if err := activityType.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(status.ActorURI) == "" {
		return nil, fmt.Errorf("core: status actor uri is required to build an activity")
	}

	var envelope ActivityEnvelope
	var err error
	switch activityType {
	case ActivityTypeCreate:
		envelope, err = buildCreateActivity(status)
	case ActivityTypeUpdate:
		envelope, err = buildUpdateActivity(status)
	case ActivityTypeDelete:
		envelope, err = buildDeleteActivity(status)
	case ActivityTypeAnnounce:
		envelope, err = buildAnnounceActivity(status)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

func buildCreateActivity(status Status) (ActivityEnvelope, error) {
	object, err := activityObject(status)
	if err != nil {
		return ActivityEnvelope{}, err
	}
	return ActivityEnvelope{
		Context: activityStreamsContext,
		ID:      activityID(status, "create"),
		Type:    "Create",
		Actor:   status.ActorURI,
		To:      audienceAddressing(status),
		Object:  object,
	}, nil
}

func buildUpdateActivity(status Status) (ActivityEnvelope, error) {
	object, err := activityObject(status)
	if err != nil {
		return ActivityEnvelope{}, err
	}
	return ActivityEnvelope{
		Context: activityStreamsContext,
		ID:      activityID(status, "update"),
		Type:    "Update",
		Actor:   status.ActorURI,
		To:      audienceAddressing(status),
		Object:  object,
	}, nil
}

func buildDeleteActivity(status Status) (ActivityEnvelope, error) {
	objectURI := objectURI(status)
	if objectURI == "" {
		return ActivityEnvelope{}, fmt.Errorf("core: delete activity requires the object uri in the status payload")
	}
	return ActivityEnvelope{
		Context: activityStreamsContext,
		ID:      activityID(status, "delete"),
		Type:    "Delete",
		Actor:   status.ActorURI,
		Object: map[string]any{
			"id":   objectURI,
			"type": "Tombstone",
		},
	}, nil
}

func buildAnnounceActivity(status Status) (ActivityEnvelope, error) {
	objectURI := objectURI(status)
	if objectURI == "" {
		return ActivityEnvelope{}, fmt.Errorf("core: announce activity requires the boosted object uri in the status payload")
	}
	return ActivityEnvelope{
		Context: activityStreamsContext,
		ID:      activityID(status, "announce"),
		Type:    "Announce",
		Actor:   status.ActorURI,
		To:      audienceAddressing(status),
		Object:  objectURI,
	}, nil
}

func activityObject(status Status) (map[string]any, error) {
	if len(status.Payload) == 0 {
		return nil, fmt.Errorf("core: status payload is required to build an activity")
	}
	object := make(map[string]any, len(status.Payload))
	for key, value := range status.Payload {
		object[key] = value
	}
	return object, nil
}

func objectURI(status Status) string {
	if len(status.Payload) == 0 {
		return ""
	}
	uri, _ := status.Payload["id"].(string)
	return strings.TrimSpace(uri)
}

func activityID(status Status, verb string) string {
	base := objectURI(status)
	if base == "" {
		base = strings.TrimRight(status.ActorURI, "/") + "/statuses/" + status.ID
	}
	return base + "#" + verb
}

func audienceAddressing(status Status) []string {
	switch status.Visibility {
	case VisibilityPublic:
		return []string{activityStreamsContext + "#Public"}
	case VisibilityUnlisted, VisibilityFollowers:
		return []string{strings.TrimRight(status.ActorURI, "/") + "/followers"}
	case VisibilityDirect:
		mentions := make([]string, 0, len(status.Mentions))
		for _, mention := range status.Mentions {
			if trimmed := strings.TrimSpace(mention); trimmed != "" {
				mentions = append(mentions, trimmed)
			}
		}
		return mentions
	}
	return nil
}
