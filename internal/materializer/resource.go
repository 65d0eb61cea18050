package materializer

import (
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/snapshot"
)

// ApplyResource is ApplyTask's counterpart for resource snapshots
// (spec.md §4.1, §4.6).
func ApplyResource(snap *snapshot.Resource, e event.Event) (*snapshot.Resource, error) {
	if snap == nil {
		if e.Type != event.TypeResourceCreated {
			return nil, errs.New(errs.NoInitialSnapshot, "event %s (%s) has no preceding resource_created for %s", e.ID, e.Type, e.ResourceID)
		}
		return applyResourceCreated(e)
	}

	out := cloneResource(snap)

	switch e.Type {
	case event.TypeResourceCreated:
		// Idempotent replay of creation; ignored like task_created.
	case event.TypeResourceAcquired:
		if err := applyResourceAcquired(out, e); err != nil {
			return nil, err
		}
	case event.TypeResourceReleased:
		if err := applyResourceReleased(out, e); err != nil {
			return nil, err
		}
	case event.TypeResourceHeartbeat:
		if err := applyResourceHeartbeat(out, e); err != nil {
			return nil, err
		}
	case event.TypeResourceExpired:
		if err := applyResourceExpired(out, e); err != nil {
			return nil, err
		}
	default:
		if !event.IsCustom(e.Type) {
			logUnknownType(e.Type)
		}
	}

	out.LastEventID = e.ID
	return out, nil
}

func applyResourceCreated(e event.Event) (*snapshot.Resource, error) {
	var data struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		MaxHolders  int    `json:"max_holders"`
		TTLSeconds  int    `json:"ttl_seconds"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return nil, errs.Wrap(errs.ValidationError, err, "resource_created: invalid data")
	}
	return &snapshot.Resource{
		ID:          e.ResourceID,
		Name:        data.Name,
		Description: data.Description,
		MaxHolders:  data.MaxHolders,
		TTLSeconds:  data.TTLSeconds,
		Holders:     []snapshot.Holder{},
		CreatedAt:   e.TS,
		CreatedBy:   e.Actor,
		LastEventID: e.ID,
	}, nil
}

func applyResourceAcquired(r *snapshot.Resource, e event.Event) error {
	var data struct {
		TaskID     string `json:"task_id"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := e.UnmarshalData(&data); err != nil {
		return errs.Wrap(errs.ValidationError, err, "resource_acquired: invalid data")
	}
	ttl := data.TTLSeconds
	if ttl == 0 {
		ttl = r.TTLSeconds
	}
	expires := e.TS.Add(time.Duration(ttl) * time.Second)

	for i, h := range r.Holders {
		if h.Actor.Equal(e.Actor) {
			r.Holders[i].ExpiresAt = expires
			r.Holders[i].AcquiredAt = e.TS
			r.Holders[i].TaskID = data.TaskID
			return nil
		}
	}
	r.Holders = append(r.Holders, snapshot.Holder{
		Actor: e.Actor, TaskID: data.TaskID, AcquiredAt: e.TS, ExpiresAt: expires,
	})
	return nil
}

func applyResourceReleased(r *snapshot.Resource, e event.Event) error {
	return removeHolder(r, e.Actor)
}

func applyResourceExpired(r *snapshot.Resource, e event.Event) error {
	return removeHolder(r, e.Actor)
}

func removeHolder(r *snapshot.Resource, actor event.Actor) error {
	kept := r.Holders[:0]
	for _, h := range r.Holders {
		if h.Actor.Equal(actor) {
			continue
		}
		kept = append(kept, h)
	}
	r.Holders = kept
	return nil
}

func applyResourceHeartbeat(r *snapshot.Resource, e event.Event) error {
	for i, h := range r.Holders {
		if h.Actor.Equal(e.Actor) {
			ttl := r.TTLSeconds
			r.Holders[i].ExpiresAt = e.TS.Add(time.Duration(ttl) * time.Second)
			return nil
		}
	}
	// Heartbeat with no matching holder is a NOT_HELD condition the
	// write layer (internal/resource) must reject before ever writing
	// this event; the materializer itself stays a pure no-op here so
	// replay never diverges based on write-time validation outcomes.
	return nil
}

func cloneResource(r *snapshot.Resource) *snapshot.Resource {
	c := *r
	c.Holders = append([]snapshot.Holder(nil), r.Holders...)
	return &c
}
