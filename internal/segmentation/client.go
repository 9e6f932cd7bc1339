package segmentation

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"spheroid-editor/internal/status"
)

// Client talks to the segmentation backend over HTTP. It implements
// status.Fetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ status.Fetcher = (*Client)(nil)

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// imageStatusWire is the backend's status record. The status field is
// loosely typed and normalized at this boundary.
type imageStatusWire struct {
	ImageID   string    `json:"image_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FetchStatuses retrieves the authoritative status of every image.
func (c *Client) FetchStatuses(ctx context.Context) ([]status.ImageStatus, error) {
	var wire []imageStatusWire
	if err := c.getJSON(ctx, "/api/images/status", &wire); err != nil {
		return nil, fmt.Errorf("fetching statuses: %w", err)
	}

	out := make([]status.ImageStatus, 0, len(wire))
	for _, w := range wire {
		out = append(out, status.ImageStatus{
			ImageID:   w.ImageID,
			Status:    status.Normalize(w.Status),
			UpdatedAt: w.UpdatedAt,
		})
	}
	return out, nil
}

// FetchResult retrieves the segmentation for one image. Backends either
// return polygons as JSON or a binary mask image; masks are vectorized
// into polygons here. The result is sanitized before being returned.
func (c *Client) FetchResult(ctx context.Context, imageID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/images/"+imageID+"/segmentation", nil)
	if err != nil {
		return nil, fmt.Errorf("building segmentation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching segmentation for %s: %w", imageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching segmentation for %s: backend returned %s", imageID, resp.Status)
	}

	var result Result
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		mask, _, err := image.Decode(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding segmentation mask for %s: %w", imageID, err)
		}
		polygons, err := PolygonsFromMask(mask)
		if err != nil {
			return nil, fmt.Errorf("vectorizing segmentation mask for %s: %w", imageID, err)
		}
		result.Polygons = polygons
	} else if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding segmentation for %s: %w", imageID, err)
	}

	if result.ImageID == "" {
		result.ImageID = imageID
	}
	result.Sanitize()
	return &result, nil
}

// RequestSegmentation asks the backend to queue an image for processing.
func (c *Client) RequestSegmentation(ctx context.Context, imageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/images/"+imageID+"/segment", nil)
	if err != nil {
		return fmt.Errorf("building segment request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting segmentation for %s: %w", imageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("requesting segmentation for %s: backend returned %s", imageID, resp.Status)
	}
	return nil
}

// DecodePush parses a push notification payload into a normalized status.
func DecodePush(payload []byte) (status.ImageStatus, error) {
	var wire imageStatusWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return status.ImageStatus{}, fmt.Errorf("decoding push notification: %w", err)
	}
	if wire.ImageID == "" {
		return status.ImageStatus{}, fmt.Errorf("decoding push notification: missing image id")
	}
	return status.ImageStatus{
		ImageID:   wire.ImageID,
		Status:    status.Normalize(wire.Status),
		UpdatedAt: wire.UpdatedAt,
	}, nil
}

// getJSON issues a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("backend returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
