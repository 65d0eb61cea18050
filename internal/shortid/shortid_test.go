package shortid_test

import (
	"testing"

	"github.com/lattice-dev/lattice/internal/shortid"
	"github.com/stretchr/testify/require"
)

func TestAllocateIsMonotonicAndUnique(t *testing.T) {
	idx := shortid.Empty()
	seen := map[string]bool{}

	for i := 0; i < 5; i++ {
		shortID, seq := shortid.Allocate(&idx, "DEMO", "task_ulid")
		require.False(t, seen[shortID], "short IDs must be distinct")
		seen[shortID] = true
		require.Equal(t, i+1, seq)
	}
	require.Equal(t, 6, idx.NextSeqs["DEMO"])
}

func TestRebuildComputesNextSeqsFromMax(t *testing.T) {
	idx := shortid.Rebuild([]shortid.TaskLookup{
		{ID: "task_a", ShortID: "DEMO-1"},
		{ID: "task_b", ShortID: "DEMO-5"},
		{ID: "task_c", ShortID: "OTHER-2"},
	})
	require.Equal(t, 6, idx.NextSeqs["DEMO"])
	require.Equal(t, 3, idx.NextSeqs["OTHER"])
	require.Equal(t, "task_b", idx.Map["DEMO-5"])
}
