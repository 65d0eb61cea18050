// Package shortid implements the .lattice/ids.json allocator, resolver
// and rebuild (spec.md §4.5).
package shortid

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/lattice-dev/lattice/internal/canonical"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/ids"
)

// SchemaVersion is ids.json's schema_version (spec.md §4.5).
const SchemaVersion = 2

// Index is the full contents of ids.json.
type Index struct {
	SchemaVersion int            `json:"schema_version"`
	NextSeqs      map[string]int `json:"next_seqs"`
	Map           map[string]string `json:"map"`
}

// Empty returns a freshly initialized Index.
func Empty() Index {
	return Index{SchemaVersion: SchemaVersion, NextSeqs: map[string]int{}, Map: map[string]string{}}
}

// Load reads ids.json from path, returning an empty Index if the file
// does not exist yet (a project with no project_code configured never
// creates one).
func Load(path string) (Index, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if os.IsNotExist(err) {
		return Empty(), nil
	}
	if err != nil {
		return Index{}, errs.Wrap(errs.ReadError, err, "shortid: read %s", path)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, errs.Wrap(errs.ReadError, err, "shortid: parse %s", path)
	}
	if idx.NextSeqs == nil {
		idx.NextSeqs = map[string]int{}
	}
	if idx.Map == nil {
		idx.Map = map[string]string{}
	}
	return idx, nil
}

// Save atomically writes idx to path.
func Save(path string, idx Index) error {
	data, err := canonical.Indented(idx)
	if err != nil {
		return err
	}
	return fsops.AtomicWrite(path, data)
}

// Allocate assigns the next short ID for prefix to taskULID, mutating
// idx in place and returning the new short ID and its sequence number.
// Callers must hold the "ids" lock (lockmgr.IDsKey) across Load,
// Allocate, and Save.
func Allocate(idx *Index, prefix, taskULID string) (shortID string, seq int) {
	n := idx.NextSeqs[prefix]
	if n == 0 {
		n = 1
	}
	shortID = ids.FormatShortID(prefix, n)
	idx.Map[shortID] = taskULID
	idx.NextSeqs[prefix] = n + 1
	return shortID, n
}

// Resolve looks up a short ID or passes through an already-resolved
// entity ID.
func Resolve(idx Index, shortIDOrULID, entityPrefix string) (string, error) {
	if ids.Valid(shortIDOrULID, entityPrefix) {
		return shortIDOrULID, nil
	}
	ulid, ok := idx.Map[shortIDOrULID]
	if !ok {
		return "", errs.New(errs.NotFound, "short ID %q is not assigned", shortIDOrULID)
	}
	return ulid, nil
}

// TaskLookup is the minimal view rebuild needs of each known task
// snapshot (active or archived).
type TaskLookup struct {
	ID      string
	ShortID string
}

// Rebuild recomputes an Index from scratch given every known snapshot's
// (short_id, id) pair (spec.md §4.5 "Rebuild").
func Rebuild(tasks []TaskLookup) Index {
	idx := Empty()
	maxSeq := map[string]int{}

	for _, task := range tasks {
		if task.ShortID == "" {
			continue
		}
		idx.Map[task.ShortID] = task.ID
		prefix, seq, ok := ids.ParseShortID(task.ShortID)
		if !ok {
			continue
		}
		if seq > maxSeq[prefix] {
			maxSeq[prefix] = seq
		}
	}

	prefixes := make([]string, 0, len(maxSeq))
	for p := range maxSeq {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		idx.NextSeqs[p] = maxSeq[p] + 1
	}
	return idx
}
