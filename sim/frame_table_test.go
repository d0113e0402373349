package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTable_FindAndFirstEmpty(t *testing.T) {
	ft := NewFrameTable(3)
	idx, ok := ft.FirstEmpty()
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	ft.Load(0, NewPage("", 1), 1)
	ft.Load(2, NewPage("P2", 1), 2)

	idx, ok = ft.FindByPage(NewPage("P2", 1))
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	_, ok = ft.FindByPage(NewPage("P3", 1))
	assert.False(t, ok)

	idx, ok = ft.FirstEmpty()
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	ft.Load(1, NewPage("", 9), 3)
	_, ok = ft.FirstEmpty()
	assert.False(t, ok)
}

func TestFrameTable_SnapshotIsDeepCopy(t *testing.T) {
	ft := NewFrameTable(1)
	ft.Load(0, NewPage("", 1), 1)

	snap := ft.Snapshot()
	snap[0].Page.Number = 99
	pages := ft.Pages()
	pages[0].Number = 42

	assert.Equal(t, 1, ft.Slot(0).Page.Number)
}

func TestFrameTable_ValidateDetectsDuplicates(t *testing.T) {
	ft := NewFrameTable(2)
	ft.Load(0, NewPage("", 1), 1)
	require.NoError(t, ft.Validate())

	ft.Load(1, NewPage("", 1), 2)
	err := ft.Validate()
	require.Error(t, err)
	assert.Equal(t, KindStateCorruption, KindOf(err))
	assert.Contains(t, err.Error(), "P1-1")
}

func TestSelectLRU_TiesGoToLowestIndex(t *testing.T) {
	ft := NewFrameTable(3)
	ft.Load(0, NewPage("", 1), 5)
	ft.Load(1, NewPage("", 2), 2)
	ft.Load(2, NewPage("", 3), 2)
	assert.Equal(t, 1, selectLRU(ft))
}
