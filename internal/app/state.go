// Package app provides application state, workspace persistence, and events.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"spheroid-editor/internal/image"
	"spheroid-editor/internal/segmentation"
	"spheroid-editor/pkg/geometry"
)

// EventType identifies different application events.
type EventType int

const (
	EventWorkspaceLoaded EventType = iota
	EventWorkspaceSaved
	EventImageAdded
	EventImageRemoved
	EventSegmentationChanged
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// ThumbnailInvalidator drops cached thumbnails for an image. Satisfied by
// the thumbnail cache.
type ThumbnailInvalidator interface {
	Invalidate(ctx context.Context, imageID string)
}

// State holds the editor state: loaded images, their segmentation results,
// and workspace bookkeeping.
type State struct {
	mu sync.RWMutex

	WorkspacePath string
	Modified      bool

	images  []*image.Record
	results map[string]*segmentation.Result

	thumbnails ThumbnailInvalidator
	listeners  map[EventType][]EventListener
}

// NewState creates an empty editor state.
func NewState() *State {
	return &State{
		results:   make(map[string]*segmentation.Result),
		listeners: make(map[EventType][]EventListener),
	}
}

// SetThumbnailInvalidator wires the thumbnail cache so segmentation and
// image changes drop stale thumbnails.
func (s *State) SetThumbnailInvalidator(inv ThumbnailInvalidator) {
	s.mu.Lock()
	s.thumbnails = inv
	s.mu.Unlock()
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the workspace as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// AddImage loads an image from disk and adds it to the workspace.
func (s *State) AddImage(path string) (*image.Record, error) {
	rec, err := image.Load(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.images = append(s.images, rec)
	s.mu.Unlock()

	s.SetModified(true)
	s.Emit(EventImageAdded, rec)
	return rec, nil
}

// RemoveImage drops an image and its segmentation from the workspace.
func (s *State) RemoveImage(imageID string) {
	s.mu.Lock()
	for i, rec := range s.images {
		if rec.ID == imageID {
			s.images = append(s.images[:i], s.images[i+1:]...)
			break
		}
	}
	delete(s.results, imageID)
	inv := s.thumbnails
	s.mu.Unlock()

	if inv != nil {
		inv.Invalidate(context.Background(), imageID)
	}
	s.SetModified(true)
	s.Emit(EventImageRemoved, imageID)
}

// Images returns a snapshot of the workspace image list.
func (s *State) Images() []*image.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*image.Record, len(s.images))
	copy(out, s.images)
	return out
}

// Image returns the record with the given id, or nil.
func (s *State) Image(imageID string) *image.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.images {
		if rec.ID == imageID {
			return rec
		}
	}
	return nil
}

// Segmentation returns the result for an image, or nil when none is known.
func (s *State) Segmentation(imageID string) *segmentation.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[imageID]
}

// HasPolygon reports whether the image currently holds the polygon.
// Used by the selection machine to detect stale click targets.
func (s *State) HasPolygon(imageID, polygonID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.results[imageID]
	return r != nil && r.Polygon(polygonID) != nil
}

// SetSegmentation replaces an image's segmentation result wholesale, as
// when fresh backend results arrive. Stale thumbnails are invalidated.
func (s *State) SetSegmentation(result *segmentation.Result) {
	result.Sanitize()

	s.mu.Lock()
	s.results[result.ImageID] = result
	inv := s.thumbnails
	s.mu.Unlock()

	if inv != nil {
		inv.Invalidate(context.Background(), result.ImageID)
	}
	s.Emit(EventSegmentationChanged, result.ImageID)
}

// MoveVertex moves one vertex of a polygon to a new image-space position.
func (s *State) MoveVertex(imageID, polygonID string, index int, pt geometry.Point2D) error {
	err := s.editPolygon(imageID, polygonID, func(p *segmentation.Polygon) error {
		if index < 0 || index >= len(p.Points) {
			return fmt.Errorf("vertex %d out of range", index)
		}
		p.Points[index] = pt
		return nil
	})
	if err != nil {
		return err
	}
	s.segmentationEdited(imageID)
	return nil
}

// InsertVertex inserts a new vertex before the given index.
func (s *State) InsertVertex(imageID, polygonID string, index int, pt geometry.Point2D) error {
	err := s.editPolygon(imageID, polygonID, func(p *segmentation.Polygon) error {
		if index < 0 || index > len(p.Points) {
			return fmt.Errorf("vertex %d out of range", index)
		}
		p.Points = append(p.Points, geometry.Point2D{})
		copy(p.Points[index+1:], p.Points[index:])
		p.Points[index] = pt
		return nil
	})
	if err != nil {
		return err
	}
	s.segmentationEdited(imageID)
	return nil
}

// RemoveVertex deletes a vertex. Polygons never shrink below three
// vertices; delete the polygon instead.
func (s *State) RemoveVertex(imageID, polygonID string, index int) error {
	err := s.editPolygon(imageID, polygonID, func(p *segmentation.Polygon) error {
		if index < 0 || index >= len(p.Points) {
			return fmt.Errorf("vertex %d out of range", index)
		}
		if len(p.Points) <= 3 {
			return fmt.Errorf("polygon %s cannot drop below 3 vertices", polygonID)
		}
		p.Points = append(p.Points[:index], p.Points[index+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.segmentationEdited(imageID)
	return nil
}

// CreatePolygon adds a hand-drawn polygon to an image and returns its id.
func (s *State) CreatePolygon(imageID string, points []geometry.Point2D) (string, error) {
	if len(points) < 3 {
		return "", fmt.Errorf("polygon needs at least 3 vertices, got %d", len(points))
	}
	for _, pt := range points {
		if !pt.IsFinite() {
			return "", fmt.Errorf("polygon vertex is not finite")
		}
	}

	id := uuid.NewString()
	s.mu.Lock()
	r := s.results[imageID]
	if r == nil {
		r = &segmentation.Result{ImageID: imageID}
		s.results[imageID] = r
	}
	r.Polygons = append(r.Polygons, segmentation.Polygon{
		ID:     id,
		Points: points,
		Kind:   segmentation.KindExternal,
	})
	s.mu.Unlock()

	s.segmentationEdited(imageID)
	return id, nil
}

// DeletePolygon removes a polygon from an image.
func (s *State) DeletePolygon(imageID, polygonID string) error {
	s.mu.Lock()
	r := s.results[imageID]
	if r == nil || !r.Remove(polygonID) {
		s.mu.Unlock()
		return fmt.Errorf("polygon %s not found in image %s", polygonID, imageID)
	}
	s.mu.Unlock()

	s.segmentationEdited(imageID)
	return nil
}

// SlicePolygon splits a polygon along the line through a and b. The
// original polygon is replaced by the two halves; their ids are returned.
func (s *State) SlicePolygon(imageID, polygonID string, a, b geometry.Point2D) (string, string, error) {
	s.mu.Lock()
	r := s.results[imageID]
	if r == nil {
		s.mu.Unlock()
		return "", "", fmt.Errorf("image %s has no segmentation", imageID)
	}
	p := r.Polygon(polygonID)
	if p == nil {
		s.mu.Unlock()
		return "", "", fmt.Errorf("polygon %s not found in image %s", polygonID, imageID)
	}

	left, right, ok := geometry.SlicePolygon(p.Points, a, b)
	if !ok {
		s.mu.Unlock()
		return "", "", fmt.Errorf("cut line does not cross polygon %s in exactly two places", polygonID)
	}

	kind := p.Kind
	label := p.ClassLabel
	r.Remove(polygonID)
	leftID, rightID := uuid.NewString(), uuid.NewString()
	r.Polygons = append(r.Polygons,
		segmentation.Polygon{ID: leftID, Points: left, Kind: kind, ClassLabel: label},
		segmentation.Polygon{ID: rightID, Points: right, Kind: kind, ClassLabel: label},
	)
	s.mu.Unlock()

	s.segmentationEdited(imageID)
	return leftID, rightID, nil
}

// editPolygon applies fn to one polygon under the write lock.
func (s *State) editPolygon(imageID, polygonID string, fn func(*segmentation.Polygon) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[imageID]
	if r == nil {
		return fmt.Errorf("image %s has no segmentation", imageID)
	}
	p := r.Polygon(polygonID)
	if p == nil {
		return fmt.Errorf("polygon %s not found in image %s", polygonID, imageID)
	}
	return fn(p)
}

// segmentationEdited handles the bookkeeping shared by every edit:
// thumbnails go stale, the workspace is dirty, listeners are told.
func (s *State) segmentationEdited(imageID string) {
	s.mu.RLock()
	inv := s.thumbnails
	s.mu.RUnlock()
	if inv != nil {
		inv.Invalidate(context.Background(), imageID)
	}
	s.SetModified(true)
	s.Emit(EventSegmentationChanged, imageID)
}

// WorkspaceFile is the JSON structure of a saved workspace.
type WorkspaceFile struct {
	Version int              `json:"version"`
	Images  []WorkspaceImage `json:"images"`
}

// WorkspaceImage records one image and its segmentation.
type WorkspaceImage struct {
	ID           string               `json:"id"`
	Path         string               `json:"path"`
	Segmentation *segmentation.Result `json:"segmentation,omitempty"`
}

// SaveWorkspace writes the workspace to the specified path. Image paths
// are stored relative to the workspace file.
func (s *State) SaveWorkspace(path string) error {
	workspaceDir := filepath.Dir(path)

	s.mu.RLock()
	ws := WorkspaceFile{Version: 1}
	for _, rec := range s.images {
		rel, err := filepath.Rel(workspaceDir, rec.Path)
		if err != nil {
			rel = rec.Path
		}
		ws.Images = append(ws.Images, WorkspaceImage{
			ID:           rec.ID,
			Path:         rel,
			Segmentation: s.results[rec.ID],
		})
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workspace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing workspace: %w", err)
	}

	s.mu.Lock()
	s.WorkspacePath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventWorkspaceSaved, path)
	return nil
}

// LoadWorkspace reads a workspace file and loads its images.
func (s *State) LoadWorkspace(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading workspace: %w", err)
	}

	var ws WorkspaceFile
	if err := json.Unmarshal(data, &ws); err != nil {
		return fmt.Errorf("decoding workspace: %w", err)
	}

	workspaceDir := filepath.Dir(path)

	s.mu.Lock()
	s.images = nil
	s.results = make(map[string]*segmentation.Result)
	s.WorkspacePath = path
	s.Modified = false
	s.mu.Unlock()

	for _, wi := range ws.Images {
		imgPath := wi.Path
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(workspaceDir, imgPath)
		}
		rec, err := image.Load(imgPath)
		if err != nil {
			return err
		}
		if wi.ID != "" {
			rec.ID = wi.ID
		}

		s.mu.Lock()
		s.images = append(s.images, rec)
		if wi.Segmentation != nil {
			wi.Segmentation.ImageID = rec.ID
			wi.Segmentation.Sanitize()
			s.results[rec.ID] = wi.Segmentation
		}
		s.mu.Unlock()
	}

	s.Emit(EventWorkspaceLoaded, path)
	return nil
}
