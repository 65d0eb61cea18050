package store_test

import (
	"testing"

	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	layout := fsops.NewLayout(root)
	require.NoError(t, layout.EnsureDirs())
	return store.New(root)
}

func actor(s string) event.Actor { return event.Actor{Raw: s} }
