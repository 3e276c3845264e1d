package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/types"
)

// DetectResponse is the OCR service response shape.
type DetectResponse struct {
	Success       bool           `json:"success"`
	Elements      []OCRDetection `json:"elements"`
	TotalElements int            `json:"total_elements"`
}

// Detector is an HTTP client for the OCR detection service. Detection is
// best-effort: callers treat a nil result as "no perceptual channel" and
// proceed with structural elements only.
type Detector struct {
	baseURL    string
	confidence float64
	client     *http.Client
	logger     *zap.Logger
}

// NewDetector builds a Detector against the given base URL.
func NewDetector(baseURL string, confidence float64, timeout time.Duration, logger *zap.Logger) *Detector {
	if confidence <= 0 {
		confidence = DefaultMinConfidence
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		baseURL:    baseURL,
		confidence: confidence,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Detect uploads a PNG screenshot and returns the detected elements.
func (d *Detector) Detect(ctx context.Context, png []byte) ([]OCRDetection, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "screenshot.png")
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build OCR request").WithCause(err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build OCR request").WithCause(err)
	}
	if err := writer.WriteField("confidence", strconv.FormatFloat(d.confidence, 'f', -1, 64)); err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build OCR request").WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build OCR request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/ocr/detect", &body)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build OCR request").WithCause(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrRuntime, "OCR request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewErrorf(types.ErrRuntime, "OCR request failed: %d - %s", resp.StatusCode, msg)
	}

	var detected DetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&detected); err != nil {
		return nil, types.NewError(types.ErrMalformedResponse, "failed to decode OCR response").WithCause(err)
	}
	if !detected.Success {
		return nil, types.NewError(types.ErrRuntime, "OCR service reported failure")
	}

	d.logger.Debug("ocr detection complete",
		zap.Int("total_elements", detected.TotalElements))
	return detected.Elements, nil
}

// BaseURL exposes the configured endpoint, mainly for logging.
func (d *Detector) BaseURL() string { return d.baseURL }

func (d *Detector) String() string {
	return fmt.Sprintf("ocr-detector(%s)", d.baseURL)
}
