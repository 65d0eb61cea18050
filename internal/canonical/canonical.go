// Package canonical implements the one serialization rule every
// on-disk Lattice file follows (spec.md §6.1): UTF-8 JSON with sorted
// keys and a trailing newline, single-line for event-log entries,
// 2-space indented for snapshots and config.
//
// encoding/json already sorts map keys at every nesting level when
// marshaling; round-tripping a value through map[string]any before the
// final marshal gives the same guarantee for struct fields (whose
// field order would otherwise just be declaration order) without a
// hand-written key-sorting marshaler.
package canonical

import (
	"bytes"
	"encoding/json"
)

// Line renders v as a single line of sorted-key JSON with a trailing
// newline — the event-log line format.
func Line(v any) ([]byte, error) {
	sorted, err := toSortedAny(v)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(sorted)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Indented renders v as 2-space-indented, sorted-key JSON with a
// trailing newline — the snapshot/config file format.
func Indented(v any) ([]byte, error) {
	sorted, err := toSortedAny(v)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func toSortedAny(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return generic, nil
}
