// Package selection implements the mode-aware polygon selection state
// machine. The Machine is the single authority over which polygon is
// selected and which edit mode is active; nothing else may set either.
package selection

// EditMode identifies the active editing tool.
type EditMode int

const (
	ModeView EditMode = iota
	ModeEditVertices
	ModeCreatePolygon
	ModeAddPoints
	ModeSlice
	ModeDeletePolygon
)

func (m EditMode) String() string {
	switch m {
	case ModeView:
		return "View"
	case ModeEditVertices:
		return "EditVertices"
	case ModeCreatePolygon:
		return "CreatePolygon"
	case ModeAddPoints:
		return "AddPoints"
	case ModeSlice:
		return "Slice"
	case ModeDeletePolygon:
		return "DeletePolygon"
	default:
		return "Unknown"
	}
}

// Transition describes the outcome of a click routed through the machine.
type Transition struct {
	SelectedID string
	Mode       EditMode

	// Delete is set when the clicked polygon should be removed
	// (DeletePolygon mode). The machine never deletes anything itself.
	Delete bool
}

// Resolver reports whether a polygon id currently exists. A click on an id
// that no longer resolves (stale reference after deletion) is treated as a
// selection clear.
type Resolver func(id string) bool

// Machine holds the selection state for one editor session.
type Machine struct {
	mode       EditMode
	selectedID string
	resolver   Resolver
	onChange   func(selectedID string, mode EditMode)
}

// NewMachine creates a machine in View mode with nothing selected.
func NewMachine(resolver Resolver) *Machine {
	return &Machine{mode: ModeView, resolver: resolver}
}

// OnChange registers a listener invoked after every state change.
func (m *Machine) OnChange(callback func(selectedID string, mode EditMode)) {
	m.onChange = callback
}

// SelectedID returns the currently selected polygon id, or "".
func (m *Machine) SelectedID() string {
	return m.selectedID
}

// Mode returns the active edit mode.
func (m *Machine) Mode() EditMode {
	return m.mode
}

// SetMode switches the active tool. Leaving EditVertices for View keeps the
// selection; switching tools never selects anything by itself.
func (m *Machine) SetMode(mode EditMode) {
	if mode == m.mode {
		return
	}
	m.commit(m.selectedID, mode)
}

// HandlePolygonClick routes a click on a polygon through the transition
// table and commits the result. The returned Transition tells the caller
// whether the polygon should be deleted.
func (m *Machine) HandlePolygonClick(polygonID string) Transition {
	if polygonID == "" || (m.resolver != nil && !m.resolver(polygonID)) {
		// Stale or invalid target: behave like an empty-canvas click.
		return m.HandleCanvasClick()
	}

	var t Transition
	switch m.mode {
	case ModeDeletePolygon:
		// Delete without selecting; stay in delete mode.
		t = Transition{SelectedID: m.selectedID, Mode: ModeDeletePolygon, Delete: true}
		if m.selectedID == polygonID {
			t.SelectedID = ""
		}
	case ModeSlice:
		t = Transition{SelectedID: polygonID, Mode: ModeSlice}
	case ModeView:
		// Clicking a polygon in view mode enters vertex editing.
		t = Transition{SelectedID: polygonID, Mode: ModeEditVertices}
	default:
		// EditVertices, AddPoints, CreatePolygon: select, keep mode.
		t = Transition{SelectedID: polygonID, Mode: m.mode}
	}

	m.commit(t.SelectedID, t.Mode)
	return t
}

// HandleCanvasClick routes a click on empty canvas. Selection is cleared in
// every mode except CreatePolygon and Slice, where canvas clicks place
// geometry instead. An emptied EditVertices selection reverts to View.
func (m *Machine) HandleCanvasClick() Transition {
	if m.mode == ModeCreatePolygon || m.mode == ModeSlice {
		return Transition{SelectedID: m.selectedID, Mode: m.mode}
	}

	mode := m.mode
	if mode == ModeEditVertices {
		mode = ModeView
	}
	t := Transition{SelectedID: "", Mode: mode}
	m.commit(t.SelectedID, t.Mode)
	return t
}

// Clear drops the selection, reverting EditVertices to View.
func (m *Machine) Clear() {
	mode := m.mode
	if mode == ModeEditVertices {
		mode = ModeView
	}
	m.commit("", mode)
}

// commit stores the new state and notifies if anything changed.
func (m *Machine) commit(selectedID string, mode EditMode) {
	if selectedID == m.selectedID && mode == m.mode {
		return
	}
	m.selectedID = selectedID
	m.mode = mode
	if m.onChange != nil {
		m.onChange(selectedID, mode)
	}
}
