package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Actor is either a legacy flat string ("human:alex") or a structured
// named session ({name, base_name, serial}) (spec.md §3 "Actor").
// It round-trips whichever shape it was constructed from.
type Actor struct {
	// Raw holds the legacy "prefix:identifier" form. Empty when Structured
	// is set.
	Raw string

	// Structured holds the named-session form. Nil when Raw is set.
	Structured *StructuredActor
}

// StructuredActor is a named agent/human session.
type StructuredActor struct {
	Name     string `json:"name"`
	BaseName string `json:"base_name"`
	Serial   int    `json:"serial"`
}

// LegacyPrefixes are the recognized prefixes for the flat-string actor
// form ("prefix:identifier").
var LegacyPrefixes = []string{"human", "agent", "team", "system", "dashboard"}

// NewRawActor constructs a flat-string actor and validates its prefix.
func NewRawActor(s string) (Actor, error) {
	prefix, _, ok := strings.Cut(s, ":")
	if !ok || prefix == "" {
		return Actor{}, fmt.Errorf("actor %q: want prefix:identifier", s)
	}
	valid := false
	for _, p := range LegacyPrefixes {
		if p == prefix {
			valid = true
			break
		}
	}
	if !valid {
		return Actor{}, fmt.Errorf("actor %q: unknown prefix %q", s, prefix)
	}
	return Actor{Raw: s}, nil
}

// NewStructuredActor constructs a structured-session actor.
func NewStructuredActor(name, baseName string, serial int) Actor {
	return Actor{Structured: &StructuredActor{Name: name, BaseName: baseName, Serial: serial}}
}

// String renders the actor for display and for resume-first equality
// against a legacy string: structured actors compare by Name.
func (a Actor) String() string {
	if a.Structured != nil {
		return a.Structured.Name
	}
	return a.Raw
}

// IsZero reports whether a is the empty Actor (neither form set).
func (a Actor) IsZero() bool {
	return a.Raw == "" && a.Structured == nil
}

// Equal implements resume-first actor equality (spec.md §4.8, §9):
// structured actors compare by Name; legacy actors compare by exact
// string; a structured and a legacy actor are equal iff the legacy
// string equals the structured Name.
func (a Actor) Equal(b Actor) bool {
	return a.String() == b.String() && !a.IsZero() && !b.IsZero()
}

// MarshalJSON renders the structured form as an object and the legacy
// form as a bare string.
func (a Actor) MarshalJSON() ([]byte, error) {
	if a.Structured != nil {
		return json.Marshal(a.Structured)
	}
	return json.Marshal(a.Raw)
}

// UnmarshalJSON accepts either a bare string or a {name, base_name,
// serial} object.
func (a *Actor) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Actor{Raw: s}
		return nil
	}
	var s StructuredActor
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = Actor{Structured: &s}
	return nil
}
