package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_AddAndRemove(t *testing.T) {
	c := NewCollection()

	ok, err := c.Add("id1", "apple", VersionVector{"alice": 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, c.GetParticleView(), "apple")

	ok, err = c.Remove("id1", VersionVector{"alice": 2})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, c.GetParticleView(), "apple")
}

func TestCollection_AddWinsConcurrentWithUnrelatedRemove(t *testing.T) {
	a := NewCollection()
	b := NewCollection()

	_, _ = a.Add("id1", "apple", VersionVector{"alice": 1})
	_, _ = b.Add("id1", "apple", VersionVector{"alice": 1})

	// alice removes the observed add.
	_, _ = a.Remove("id1", VersionVector{"alice": 2})
	// bob concurrently re-adds under a new id, unaware of alice's remove.
	_, _ = b.Add("id2", "banana", VersionVector{"bob": 1})

	_, err := a.Merge(b)
	require.NoError(t, err)

	view := a.GetParticleView()
	assert.NotContains(t, view, "apple", "the observed add must stay removed")
	assert.Contains(t, view, "banana", "a concurrent, causally-independent add must survive")
}

func TestCollection_RemoveFailsWithoutPriorObservation(t *testing.T) {
	c := NewCollection()
	ok, err := c.Remove("ghost", VersionVector{"alice": 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollection_MergeIsIdempotent(t *testing.T) {
	a := NewCollection()
	b := NewCollection()
	_, _ = a.Add("id1", "apple", VersionVector{"alice": 1})
	_, _ = b.Add("id2", "banana", VersionVector{"bob": 1})

	_, err := a.Merge(b)
	require.NoError(t, err)
	first := a.GetParticleView()

	delta, err := a.Merge(b)
	require.NoError(t, err)
	assert.Empty(t, delta.ModelChange)
	assert.Len(t, delta.OtherChange, 1)
	assert.ElementsMatch(t, first, a.GetParticleView())
}

func TestCollection_Clone(t *testing.T) {
	a := NewCollection()
	_, _ = a.Add("id1", "apple", VersionVector{"alice": 1})

	clone := a.Clone().(*Collection)
	_, _ = a.Add("id2", "banana", VersionVector{"alice": 2})

	assert.Len(t, clone.IDs(), 1)
	assert.Len(t, a.IDs(), 2)
}
