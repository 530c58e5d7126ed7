package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ImageAnalysisFunc recognizes or describes an image: OCR text recognition
// or vision-model captioning, depending on what's wired in at registry setup.
// A nil ImageAnalysisFunc means image analysis is unavailable for this
// deployment: the image handler then returns empty text rather than failing.
type ImageAnalysisFunc func(ctx context.Context, data []byte, mimeType string) (string, error)

// NewHTTPImageAnalysis builds an ImageAnalysisFunc that posts the raw image
// bytes to an external endpoint and reads back {"text": "..."} JSON, the
// same response shape NewHTTPOCR expects.
func NewHTTPImageAnalysis(endpoint string, client *http.Client) ImageAnalysisFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, data []byte, mimeType string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("image analysis: build request: %w", err)
		}
		req.Header.Set("Content-Type", mimeType)

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("image analysis: request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("image analysis: endpoint returned status %d", resp.StatusCode)
		}

		var out struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("image analysis: decode response: %w", err)
		}
		return out.Text, nil
	}
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// extractImage reads the image file and hands it to analyze. A failed or
// unconfigured analyze yields empty text (extraction_status "empty"), the
// same degrade-gracefully behavior the PDF handler falls back to when OCR
// is unavailable, rather than failing the whole file.
func extractImage(analyze ImageAnalysisFunc) HandlerFunc {
	return func(ctx context.Context, path string) (string, error) {
		if analyze == nil {
			return "", nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		text, err := analyze(ctx, data, imageMIMEType(path))
		if err != nil {
			return "", nil
		}
		return text, nil
	}
}
