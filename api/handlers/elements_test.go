package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockbench/perception"
	"github.com/BaSui01/blockbench/types"
)

type stubDetector struct {
	detections []perception.OCRDetection
	err        error
	calls      int
}

func (d *stubDetector) Detect(_ context.Context, _ []byte) ([]perception.OCRDetection, error) {
	d.calls++
	return d.detections, d.err
}

func TestHandleElementsMissingSelector(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewElementsHandler(m, nil, nil, zaptest.NewLogger(t))
	s := createSession(t, m)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+s.ID+"/elements", nil)
	req.SetPathValue("id", s.ID)
	rec := httptest.NewRecorder()
	h.HandleElements(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleElementsSingleSelector(t *testing.T) {
	m, eng := newTestManager(t)
	h := NewElementsHandler(m, nil, nil, zaptest.NewLogger(t))
	s := createSession(t, m)
	eng.Pages()[0].EvaluateFunc = func(string) (any, error) {
		return []map[string]any{
			{"index": 0, "position": map[string]int{"x": 1, "y": 2, "width": 10, "height": 10}, "text": "Run"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+s.ID+"/elements?selector=button", nil)
	req.SetPathValue("id", s.ID)
	rec := httptest.NewRecorder()
	h.HandleElements(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleElementsBatchWithOCRFusion(t *testing.T) {
	m, eng := newTestManager(t)
	detector := &stubDetector{detections: []perception.OCRDetection{
		{Text: "inside", Confidence: 0.9, X: 12, Y: 12, Width: 5, Height: 5},
		{Text: "outside", Confidence: 0.9, X: 500, Y: 500, Width: 40, Height: 12},
		{Text: "faint", Confidence: 0.2, X: 600, Y: 600, Width: 40, Height: 12},
	}}
	fuser := perception.NewFuser(perception.FuserOptions{
		EnableOCR:              true,
		MinConfidence:          0.5,
		HideCoveredOCROnCanvas: true,
	}, zaptest.NewLogger(t))
	h := NewElementsHandler(m, detector, fuser, zaptest.NewLogger(t))
	s := createSession(t, m)
	eng.Pages()[0].EvaluateFunc = func(string) (any, error) {
		return []map[string]any{
			{"index": 0, "position": map[string]int{"x": 10, "y": 10, "width": 30, "height": 30}, "text": "block", "type": "blocks"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet,
		"/sessions/"+s.ID+"/elements_batch?selectors=blocks::g.blocklyDraggable", nil)
	req.SetPathValue("id", s.ID)
	rec := httptest.NewRecorder()
	h.HandleElementsBatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, detector.calls)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Elements []types.Element `json:"elements"`
			Count    int             `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	// The covered and low-confidence detections are dropped; one DOM
	// element and one OCR survivor remain.
	require.Equal(t, 2, resp.Data.Count)
	assert.Equal(t, types.SourceDOM, resp.Data.Elements[0].Source)
	assert.Equal(t, "outside", resp.Data.Elements[1].Text)
	assert.Equal(t, types.SourceOCR, resp.Data.Elements[1].Source)
	assert.Equal(t, 1, resp.Data.Elements[1].Index)

	// The fused list is the new action snapshot.
	snapshot := s.Interact.Snapshot()
	require.Len(t, snapshot, 2)
}

func TestHandleElementsBatchOCRFailureFallsBack(t *testing.T) {
	m, eng := newTestManager(t)
	detector := &stubDetector{err: types.NewError(types.ErrRuntime, "ocr sidecar down")}
	fuser := perception.NewFuser(perception.FuserOptions{EnableOCR: true}, zaptest.NewLogger(t))
	h := NewElementsHandler(m, detector, fuser, zaptest.NewLogger(t))
	s := createSession(t, m)
	eng.Pages()[0].EvaluateFunc = func(string) (any, error) {
		return []map[string]any{
			{"index": 0, "position": map[string]int{"x": 10, "y": 10, "width": 30, "height": 30}, "type": "blocks"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet,
		"/sessions/"+s.ID+"/elements_batch?selectors=blocks::g", nil)
	req.SetPathValue("id", s.ID)
	rec := httptest.NewRecorder()
	h.HandleElementsBatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleScreenshot(t *testing.T) {
	m, eng := newTestManager(t)
	h := NewElementsHandler(m, nil, nil, zaptest.NewLogger(t))
	s := createSession(t, m)
	eng.Pages()[0].ScreenshotData = []byte("png-bytes")

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+s.ID+"/screenshot", nil)
	req.SetPathValue("id", s.ID)
	rec := httptest.NewRecorder()
	h.HandleScreenshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("png-bytes"), rec.Body.Bytes())
}
