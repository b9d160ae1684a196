package folder

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWouldCycle_DirectParent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	tree := []*Folder{
		{ID: a},
		{ID: b, ParentID: &a},
	}
	// a -> b is fine (b already under a); moving a under b would cycle.
	assert.True(t, wouldCycle(tree, a, b))
	assert.False(t, wouldCycle(tree, b, a))
}

func TestWouldCycle_DeepAncestor(t *testing.T) {
	root := uuid.New()
	mid := uuid.New()
	leaf := uuid.New()
	tree := []*Folder{
		{ID: root},
		{ID: mid, ParentID: &root},
		{ID: leaf, ParentID: &mid},
	}
	// moving root under leaf would cycle through mid
	assert.True(t, wouldCycle(tree, root, leaf))
	// moving leaf under root is fine
	assert.False(t, wouldCycle(tree, leaf, root))
}

func TestWouldCycle_UnrelatedBranches(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	tree := []*Folder{
		{ID: a},
		{ID: b},
	}
	assert.False(t, wouldCycle(tree, a, b))
	assert.False(t, wouldCycle(tree, b, a))
}
