// Package activitymap flattens account activity events into a generic
// actor/verb/object record for audit logs and downstream feeds.
package activitymap

import (
	"context"
	"maps"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

// MetadataKeyPurpose stores the one-time token purpose of the event.
const MetadataKeyPurpose = "purpose"

const (
	DefaultChannel = "accounts"
	objectType     = "account"
	anonymousActor = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Mapper turns events into Normalized records. The zero value uses
// DefaultChannel and time.Now.
type Mapper struct {
	Channel string
	Now     func() time.Time
}

// Normalize maps event. The account is both actor and object: every
// lifecycle event is performed by the account holder on their own account.
// Events without an account, such as failed logins for unknown usernames,
// get an anonymous actor and no object id.
func (m Mapper) Normalize(event accounts.ActivityEvent) Normalized {
	out := Normalized{
		ActorID:    event.AccountID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   event.AccountID,
		Channel:    m.Channel,
		Metadata:   maps.Clone(event.Metadata),
		OccurredAt: event.OccurredAt,
	}

	if out.ActorID == "" {
		out.ActorID = anonymousActor
	}
	if out.Channel == "" {
		out.Channel = DefaultChannel
	}
	if out.OccurredAt.IsZero() {
		now := m.Now
		if now == nil {
			now = time.Now
		}
		out.OccurredAt = now().UTC()
	}

	if event.Purpose != "" {
		if out.Metadata == nil {
			out.Metadata = map[string]any{}
		}
		if _, ok := out.Metadata[MetadataKeyPurpose]; !ok {
			out.Metadata[MetadataKeyPurpose] = event.Purpose.String()
		}
	}

	return out
}

// NewSink returns an ActivitySink handing records mapped by m to emit.
func NewSink(m Mapper, emit func(context.Context, Normalized) error) accounts.ActivitySink {
	return accounts.ActivitySinkFunc(func(ctx context.Context, event accounts.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(ctx, m.Normalize(event))
	})
}
