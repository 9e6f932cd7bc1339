// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"image"
	"log"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"spheroid-editor/internal/app"
	"spheroid-editor/internal/segmentation"
	"spheroid-editor/internal/selection"
	"spheroid-editor/internal/status"
	"spheroid-editor/internal/thumbnail"
	"spheroid-editor/ui/canvas"
	"spheroid-editor/ui/prefs"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app        fyne.App
	state      *app.State
	canvas     *canvas.SpheroidCanvas
	reconciler *status.Reconciler
	client     *segmentation.Client
	thumbs     *thumbnail.Cache
	prefs      *prefs.Prefs

	imageList *widget.List
	statusBar *widget.Label

	modeButtons map[selection.EditMode]*widget.Button
}

// New creates the main window and wires the editor subsystems together.
func New(fyneApp fyne.App, state *app.State, reconciler *status.Reconciler,
	client *segmentation.Client, thumbs *thumbnail.Cache, p *prefs.Prefs) *MainWindow {

	win := fyneApp.NewWindow("Spheroid Editor")

	mw := &MainWindow{
		Window:      win,
		app:         fyneApp,
		state:       state,
		reconciler:  reconciler,
		client:      client,
		thumbs:      thumbs,
		prefs:       p,
		modeButtons: make(map[selection.EditMode]*widget.Button),
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	win.Resize(fyne.NewSize(1280, 800))
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewSpheroidCanvas(mw.state)
	mw.statusBar = widget.NewLabel("Ready")

	mw.imageList = widget.NewList(
		func() int { return len(mw.state.Images()) },
		func() fyne.CanvasObject {
			icon := fynecanvas.NewImageFromResource(nil)
			icon.FillMode = fynecanvas.ImageFillContain
			icon.SetMinSize(fyne.NewSize(48, 48))
			return container.NewHBox(icon, widget.NewLabel(""))
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			images := mw.state.Images()
			if i >= len(images) {
				return
			}
			rec := images[i]
			st := mw.reconciler.Status(rec.ID)

			box := obj.(*fyne.Container)
			icon := box.Objects[0].(*fynecanvas.Image)
			label := box.Objects[1].(*widget.Label)

			suffix := st.Status.String()
			if mw.reconciler.Stuck(rec.ID) {
				suffix += ", stalled"
			}
			label.SetText(fmt.Sprintf("%s [%s]", rec.Name, suffix))

			payload, err := mw.thumbs.Thumbnail(context.Background(), rec.ID, thumbnail.LODLow,
				func() (image.Image, error) { return rec.Img, nil })
			if err != nil {
				log.Printf("Window: thumbnail for %s: %v", rec.ID, err)
				return
			}
			icon.Resource = fyne.NewStaticResource(rec.ID+".png", payload)
			icon.Refresh()
		},
	)
	mw.imageList.OnSelected = func(i widget.ListItemID) {
		images := mw.state.Images()
		if i < len(images) {
			mw.canvas.ShowImage(images[i].ID)
			mw.setStatus(fmt.Sprintf("Viewing %s", images[i].Name))
		}
	}

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil, nil, nil,
		mw.canvas,
	)

	split := container.NewHSplit(mw.imageList, canvasArea)
	split.SetOffset(0.2)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil, nil,
		split,
	)
	mw.SetContent(content)
}

// createToolbar builds the edit mode buttons and zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	modes := []struct {
		label string
		mode  selection.EditMode
	}{
		{"View", selection.ModeView},
		{"Edit", selection.ModeEditVertices},
		{"Draw", selection.ModeCreatePolygon},
		{"Add Pt", selection.ModeAddPoints},
		{"Slice", selection.ModeSlice},
		{"Delete", selection.ModeDeletePolygon},
	}

	items := []fyne.CanvasObject{widget.NewLabel("Mode:")}
	for _, m := range modes {
		mode := m.mode
		btn := widget.NewButton(m.label, func() {
			mw.canvas.Machine().SetMode(mode)
			mw.highlightMode(mode)
		})
		mw.modeButtons[mode] = btn
		items = append(items, btn)
	}
	mw.highlightMode(selection.ModeView)

	items = append(items,
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", func() { mw.canvas.Viewport().ZoomOut() }),
		widget.NewButton("+", func() { mw.canvas.Viewport().ZoomIn() }),
		widget.NewButton("Fit", mw.onFit),
		widget.NewSeparator(),
		widget.NewButton("Segment", mw.onRequestSegmentation),
		widget.NewButton("Refresh Status", func() { mw.reconciler.ReconcileNow() }),
	)
	return container.NewHBox(items...)
}

func (mw *MainWindow) highlightMode(active selection.EditMode) {
	for mode, btn := range mw.modeButtons {
		if mode == active {
			btn.Importance = widget.HighImportance
		} else {
			btn.Importance = widget.MediumImportance
		}
		btn.Refresh()
	}
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Workspace...", mw.onOpenWorkspace),
		fyne.NewMenuItem("Save Workspace", mw.onSaveWorkspace),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Add Images...", mw.onAddImages),
		fyne.NewMenuItem("Remove Image", mw.onRemoveImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.canvas.Viewport().ZoomIn() }),
		fyne.NewMenuItem("Zoom Out", func() { mw.canvas.Viewport().ZoomOut() }),
		fyne.NewMenuItem("Fit to Window", mw.onFit),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Request Segmentation", mw.onRequestSegmentation),
		fyne.NewMenuItem("Refresh Statuses", func() { mw.reconciler.ReconcileNow() }),
		fyne.NewMenuItem("Clear Thumbnail Cache", func() {
			mw.thumbs.Clear(context.Background())
			mw.setStatus("Thumbnail cache cleared")
		}),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, toolsMenu))
}

// setupEventHandlers subscribes to state and reconciler changes.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageAdded, func(interface{}) {
		mw.imageList.Refresh()
	})
	mw.state.On(app.EventImageRemoved, func(data interface{}) {
		if id, ok := data.(string); ok {
			mw.reconciler.Forget(id)
		}
		mw.imageList.Refresh()
	})
	mw.state.On(app.EventWorkspaceLoaded, func(interface{}) {
		mw.imageList.Refresh()
		if images := mw.state.Images(); len(images) > 0 {
			mw.imageList.Select(0)
		}
	})

	mw.reconciler.OnChange(func(st status.ImageStatus) {
		if st.Status == status.Completed {
			go mw.fetchResult(st.ImageID)
		}
		mw.imageList.Refresh()
	})
}

// fetchResult pulls fresh polygons for a completed image.
func (mw *MainWindow) fetchResult(imageID string) {
	result, err := mw.client.FetchResult(context.Background(), imageID)
	if err != nil {
		log.Printf("Window: fetching segmentation for %s: %v", imageID, err)
		return
	}
	mw.state.SetSegmentation(result)
	mw.setStatus(fmt.Sprintf("Segmentation updated (%d spheroids)", len(result.Polygons)))
}

func (mw *MainWindow) onFit() {
	if rec := mw.state.Image(mw.canvas.ImageID()); rec != nil {
		size := rec.Size()
		mw.canvas.Viewport().CenterOn(size.Width, size.Height)
	}
}

func (mw *MainWindow) onRequestSegmentation() {
	imageID := mw.canvas.ImageID()
	if imageID == "" {
		mw.setStatus("No image selected")
		return
	}

	go func() {
		if err := mw.client.RequestSegmentation(context.Background(), imageID); err != nil {
			log.Printf("Window: segmentation request failed: %v", err)
			mw.setStatus("Segmentation request failed")
			return
		}
		mw.reconciler.SetOptimistic(imageID, status.Queued)
		mw.setStatus("Segmentation queued")
		mw.imageList.Refresh()
	}()
}

func (mw *MainWindow) onAddImages() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		if _, err := mw.state.AddImage(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.setStatus(fmt.Sprintf("Added %s", path))
	}, mw.Window)
}

func (mw *MainWindow) onRemoveImage() {
	imageID := mw.canvas.ImageID()
	rec := mw.state.Image(imageID)
	if rec == nil {
		mw.setStatus("No image selected")
		return
	}

	dialog.ShowConfirm("Remove Image",
		fmt.Sprintf("Remove %s from the workspace?", rec.Name),
		func(confirmed bool) {
			if !confirmed {
				return
			}
			mw.state.RemoveImage(imageID)
			mw.setStatus(fmt.Sprintf("Removed %s", rec.Name))
		}, mw.Window)
}

func (mw *MainWindow) onOpenWorkspace() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		if err := mw.state.LoadWorkspace(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.prefs.SetString(prefs.KeyLastWorkspace, path)
		mw.prefs.Save()
		mw.setStatus(fmt.Sprintf("Opened %s", path))
	}, mw.Window)
}

func (mw *MainWindow) onSaveWorkspace() {
	path := mw.state.WorkspacePath
	if path == "" {
		dialog.ShowFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			path := writer.URI().Path()
			writer.Close()
			mw.saveWorkspaceTo(path)
		}, mw.Window)
		return
	}
	mw.saveWorkspaceTo(path)
}

func (mw *MainWindow) saveWorkspaceTo(path string) {
	if err := mw.state.SaveWorkspace(path); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.prefs.SetString(prefs.KeyLastWorkspace, path)
	mw.prefs.Save()
	mw.setStatus(fmt.Sprintf("Saved %s", path))
}

func (mw *MainWindow) setStatus(text string) {
	mw.statusBar.SetText(text)
}
