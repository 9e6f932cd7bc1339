// Package status tracks per-image segmentation processing status and
// reconciles locally-held optimistic values against the authoritative
// backend.
package status

import (
	"strings"
	"time"
)

// Status is the closed set of processing states an image can be in.
type Status int

const (
	Pending Status = iota
	Queued
	Processing
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Normalize maps the backend's loosely-typed status vocabulary onto the
// closed enum. The backend historically reports finished images as
// "segmented"; anything unrecognized is treated as pending.
func Normalize(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "no_segmentation", "":
		return Pending
	case "queued":
		return Queued
	case "processing", "segmenting":
		return Processing
	case "completed", "segmented", "done":
		return Completed
	case "failed", "error":
		return Failed
	default:
		return Pending
	}
}

// IsActive reports whether the status represents in-progress work.
func (s Status) IsActive() bool {
	return s == Queued || s == Processing
}

// ImageStatus is the processing status of one image, with the time the
// value was last set.
type ImageStatus struct {
	ImageID   string
	Status    Status
	UpdatedAt time.Time
}
