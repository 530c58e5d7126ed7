package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// minPDFTextFloor is the fixed length floor below which the PDF
// handler's text-layer scrape is considered empty and the rasterize+OCR
// fallback is attempted.
const minPDFTextFloor = 32

// OCRFunc recognizes text in a rasterized page image. A nil OCRFunc
// means OCR is unavailable for this deployment: the PDF handler then
// rasterizes nothing and returns whatever the text-layer scrape found,
// which for a scanned/compressed PDF is an empty chunk count.
type OCRFunc func(ctx context.Context, png []byte) (string, error)

// NewHTTPOCR builds an OCRFunc that posts the rasterized page to an
// external OCR endpoint and reads back {"text": "..."} JSON, the same
// plain-HTTP-call shape internal/rag/embedder.NewClient and
// internal/llm's provider clients use against their own endpoints.
func NewHTTPOCR(endpoint string, client *http.Client) OCRFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, png []byte) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(png))
		if err != nil {
			return "", fmt.Errorf("ocr: build request: %w", err)
		}
		req.Header.Set("Content-Type", "image/png")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("ocr: request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("ocr: endpoint returned status %d", resp.StatusCode)
		}

		var out struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("ocr: decode response: %w", err)
		}
		return out.Text, nil
	}
}

// rasterizePDFFirstPage renders the first page of a local PDF to a PNG by
// pointing a headless Chrome instance at it via a file:// URL and letting
// Chrome's built-in PDF viewer render the page, using the
// chromedp.NewExecAllocator/NewContext/CaptureScreenshot sequence.
func rasterizePDFFirstPage(ctx context.Context, path string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, 20*time.Second)
	defer cancelRun()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("file://" + path),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.CaptureScreenshot(&png),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", path, err)
	}
	return png, nil
}

// extractPDFWithOCR wraps extractPDFBestEffort's text-layer scrape with a
// rasterize+OCR fallback: when the scraped text is shorter than
// minPDFTextFloor and ocr is configured, the first page is rasterized via
// chromedp and handed to ocr. A nil ocr (the default) skips rasterization
// entirely.
func extractPDFWithOCR(ocr OCRFunc) HandlerFunc {
	return func(ctx context.Context, path string) (string, error) {
		text, err := extractPDFBestEffort(ctx, path)
		if err != nil {
			return "", err
		}
		if len(strings.TrimSpace(text)) >= minPDFTextFloor || ocr == nil {
			return text, nil
		}

		png, err := rasterizePDFFirstPage(ctx, path)
		if err != nil {
			return text, nil
		}
		ocrText, err := ocr(ctx, png)
		if err != nil || strings.TrimSpace(ocrText) == "" {
			return text, nil
		}
		return ocrText, nil
	}
}
