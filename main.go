// Spheroid Editor is a desktop tool for reviewing and correcting
// ML-generated spheroid segmentations of microscopy images.
package main

import (
	"context"
	"log"

	fyneapp "fyne.io/fyne/v2/app"

	"spheroid-editor/internal/app"
	"spheroid-editor/internal/segmentation"
	"spheroid-editor/internal/status"
	"spheroid-editor/internal/thumbnail"
	"spheroid-editor/ui/mainwindow"
	"spheroid-editor/ui/prefs"
)

func main() {
	p := prefs.Load()
	state := app.NewState()

	var store thumbnail.Store
	if s, err := thumbnail.NewSQLiteStore(""); err != nil {
		log.Printf("Main: thumbnail store unavailable, running memory-only: %v", err)
	} else {
		store = s
		defer s.Close()
	}
	cache := thumbnail.NewCache(store, p.Int(prefs.KeyCacheCapacity, thumbnail.DefaultCapacity), p.CacheTTL())
	state.SetThumbnailInvalidator(cache)

	client := segmentation.NewClient(p.String(prefs.KeyBackendURL, "http://localhost:8000"))
	reconciler := status.NewReconciler(client, p.CompletedGuard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconciler.Start(ctx)
	cache.StartSweeper(ctx)

	fApp := fyneapp.NewWithID("com.spheroid.editor")
	win := mainwindow.New(fApp, state, reconciler, client, cache, p)

	if last := p.String(prefs.KeyLastWorkspace, ""); last != "" {
		if err := state.LoadWorkspace(last); err != nil {
			log.Printf("Main: reopening workspace %s: %v", last, err)
		}
	}

	win.ShowAndRun()

	reconciler.Stop()
	cache.Stop()
}
