package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/loadcycle.report/internal/httputil"
)

// HTTPDetector calls an external inference service. The service accepts a
// multipart POST with the JPEG frame and returns detections as JSON:
//
//	POST {base}/detect
//	  form file  "frame"        frame.jpg
//	  form field "frame_index"  decimal frame index
//
//	200 {"detections": [{"x1":..,"y1":..,"x2":..,"y2":..,
//	                     "class_id":..,"class_name":"..","confidence":..}]}
//
// Detections below MinConfidence are dropped client-side so every caller sees
// the same thresholded stream regardless of how the service is configured.
type HTTPDetector struct {
	BaseURL       string
	Client        httputil.HTTPClient
	Manifest      ClassManifest
	MinConfidence float64
}

// NewHTTPDetector creates a detector client against baseURL. A nil client
// falls back to the standard HTTP client.
func NewHTTPDetector(baseURL string, client httputil.HTTPClient, manifest ClassManifest, minConfidence float64) *HTTPDetector {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &HTTPDetector{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Client:        client,
		Manifest:      manifest,
		MinConfidence: minConfidence,
	}
}

// wireDetection is the service's JSON shape for one detection.
type wireDetection struct {
	X1         float32 `json:"x1"`
	Y1         float32 `json:"y1"`
	X2         float32 `json:"x2"`
	Y2         float32 `json:"y2"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Detect sends one frame to the inference service and returns the detections
// at or above MinConfidence.
func (d *HTTPDetector) Detect(ctx context.Context, frameIndex int, jpeg []byte) ([]Detection, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame bytes: %w", err)
	}
	if err := mw.WriteField("frame_index", strconv.Itoa(frameIndex)); err != nil {
		return nil, fmt.Errorf("write frame_index field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request for frame %d: %w", frameIndex, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect request for frame %d: status %d: %s",
			frameIndex, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode detect response for frame %d: %w", frameIndex, err)
	}

	dets := make([]Detection, 0, len(wire.Detections))
	for _, w := range wire.Detections {
		if float64(w.Confidence) < d.MinConfidence {
			continue
		}
		name := w.ClassName
		if name == "" && d.Manifest != nil {
			name = d.Manifest.Name(w.ClassID)
		}
		dets = append(dets, Detection{
			Box:        Box{X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2},
			ClassID:    w.ClassID,
			ClassName:  name,
			Confidence: w.Confidence,
		})
	}
	return dets, nil
}

// CheckHealth probes the service's health endpoint.
func (d *HTTPDetector) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("detector health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health check: status %d", resp.StatusCode)
	}
	return nil
}
