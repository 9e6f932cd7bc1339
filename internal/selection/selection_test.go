package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allExist(string) bool { return true }

func TestViewClickEntersEditVertices(t *testing.T) {
	m := NewMachine(allExist)

	tr := m.HandlePolygonClick("p1")
	assert.Equal(t, "p1", tr.SelectedID)
	assert.Equal(t, ModeEditVertices, tr.Mode)
	assert.False(t, tr.Delete)
	assert.Equal(t, "p1", m.SelectedID())
	assert.Equal(t, ModeEditVertices, m.Mode())

	// Empty canvas click clears and reverts to View.
	tr = m.HandleCanvasClick()
	assert.Equal(t, "", tr.SelectedID)
	assert.Equal(t, ModeView, tr.Mode)
	assert.Equal(t, "", m.SelectedID())
	assert.Equal(t, ModeView, m.Mode())
}

func TestDeleteModeDeletesWithoutSelecting(t *testing.T) {
	m := NewMachine(allExist)
	m.SetMode(ModeDeletePolygon)

	tr := m.HandlePolygonClick("p2")
	assert.True(t, tr.Delete)
	assert.Equal(t, "", tr.SelectedID)
	assert.Equal(t, ModeDeletePolygon, tr.Mode)
	assert.Equal(t, ModeDeletePolygon, m.Mode())
	assert.Equal(t, "", m.SelectedID())
}

func TestDeleteModeClearsSelectionOfDeletedPolygon(t *testing.T) {
	m := NewMachine(allExist)
	m.HandlePolygonClick("p1") // select via View->EditVertices
	m.SetMode(ModeDeletePolygon)

	tr := m.HandlePolygonClick("p1")
	assert.True(t, tr.Delete)
	assert.Equal(t, "", tr.SelectedID)
	assert.Equal(t, "", m.SelectedID())
}

func TestSliceSelectsTargetAndStays(t *testing.T) {
	m := NewMachine(allExist)
	m.SetMode(ModeSlice)

	tr := m.HandlePolygonClick("p3")
	assert.Equal(t, "p3", tr.SelectedID)
	assert.Equal(t, ModeSlice, tr.Mode)

	// Canvas clicks in slice mode place the cut line, not clear selection.
	tr = m.HandleCanvasClick()
	assert.Equal(t, "p3", tr.SelectedID)
	assert.Equal(t, ModeSlice, m.Mode())
}

func TestSelectingKeepsModeInEditTools(t *testing.T) {
	for _, mode := range []EditMode{ModeEditVertices, ModeAddPoints, ModeCreatePolygon} {
		m := NewMachine(allExist)
		m.SetMode(mode)

		tr := m.HandlePolygonClick("p4")
		assert.Equal(t, "p4", tr.SelectedID, mode.String())
		assert.Equal(t, mode, tr.Mode, mode.String())
	}
}

func TestCreatePolygonCanvasClickKeepsSelection(t *testing.T) {
	m := NewMachine(allExist)
	m.SetMode(ModeCreatePolygon)
	m.HandlePolygonClick("p1")

	tr := m.HandleCanvasClick()
	assert.Equal(t, "p1", tr.SelectedID)
	assert.Equal(t, ModeCreatePolygon, tr.Mode)
}

func TestStaleTargetClearsSelection(t *testing.T) {
	exists := map[string]bool{"p1": true}
	m := NewMachine(func(id string) bool { return exists[id] })

	m.HandlePolygonClick("p1")
	require.Equal(t, "p1", m.SelectedID())

	// p1 vanishes; a click on the stale id behaves like empty canvas.
	delete(exists, "p1")
	tr := m.HandlePolygonClick("p1")
	assert.Equal(t, "", tr.SelectedID)
	assert.Equal(t, ModeView, tr.Mode)
}

func TestTransitionsAreDeterministic(t *testing.T) {
	// Same mode + same click yields the same transition every time.
	for _, mode := range []EditMode{ModeView, ModeEditVertices, ModeAddPoints, ModeSlice} {
		a := NewMachine(allExist)
		a.SetMode(mode)
		b := NewMachine(allExist)
		b.SetMode(mode)

		assert.Equal(t, a.HandlePolygonClick("px"), b.HandlePolygonClick("px"), mode.String())
	}
}

func TestOnChangeFiresOncePerCommit(t *testing.T) {
	m := NewMachine(allExist)
	var calls int
	m.OnChange(func(string, EditMode) { calls++ })

	m.HandlePolygonClick("p1")
	assert.Equal(t, 1, calls)

	// Re-selecting the same polygon in the same mode changes nothing.
	m.HandlePolygonClick("p1")
	assert.Equal(t, 1, calls)

	m.HandleCanvasClick()
	assert.Equal(t, 2, calls)
}
