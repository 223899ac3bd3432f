// Package events publishes PCMSO version lifecycle notifications. Publishing
// happens after the owning transaction commits; a failed publish is logged by
// the caller and never undoes the operation.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	DraftGenerated  Type = "pcmso.draft.generated"
	VersionReview   Type = "pcmso.version.submitted_for_review"
	VersionSigned   Type = "pcmso.version.signed"
	VersionArchived Type = "pcmso.version.archived"
	VersionOutdated Type = "pcmso.version.outdated"
)

type Event struct {
	Type          Type      `json:"type"`
	CompanyID     uuid.UUID `json:"companyId"`
	VersionID     uuid.UUID `json:"versionId"`
	VersionNumber int       `json:"versionNumber"`
	Digest        string    `json:"digest,omitempty"`
	ActorUserID   uuid.UUID `json:"actorUserId,omitempty"`
	// Count carries the number of versions flipped for VersionOutdated.
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type noop struct{}

func Noop() Publisher { return noop{} }

func (noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
