package session

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Recording quality presets map to capture viewports.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// RecordingInfo tracks one session's screen recording.
type RecordingInfo struct {
	RecordingID string  `json:"recording_id"`
	TaskName    string  `json:"task_name"`
	Quality     string  `json:"quality"`
	Dir         string  `json:"dir"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time,omitempty"`
	Status      string  `json:"status"`
	VideoPath   string  `json:"video_path,omitempty"`
	VideoBase64 string  `json:"video_base64,omitempty"`
}

// viewportForQuality returns the capture viewport for a preset. Unknown
// presets fall back to medium.
func viewportForQuality(quality string) (int, int) {
	switch quality {
	case QualityLow:
		return 854, 480
	case QualityHigh:
		return 1920, 1080
	default:
		return 1280, 720
	}
}

var unsafeDirChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// recordingDir builds the per-session capture directory name under base.
func recordingDir(base, taskName string, startedAt time.Time) string {
	task := unsafeDirChars.ReplaceAllString(strings.TrimSpace(taskName), "_")
	if task == "" {
		task = "task"
	}
	name := "session_rec_" + startedAt.Format("20060102_150405") + "_" + task
	return filepath.Join(base, name)
}

// finalize closes out a recording: the first captured webm file is renamed
// after the recording id and read back as base64 for the delete response.
// Every step is best-effort; engines without capture support leave the
// directory empty and the recording completes without a video.
func (r *RecordingInfo) finalize(logger *zap.Logger) {
	r.EndTime = float64(time.Now().UnixMilli()) / 1000.0
	r.Status = "completed"

	matches, err := filepath.Glob(filepath.Join(r.Dir, "*.webm"))
	if err != nil || len(matches) == 0 {
		logger.Info("recording finalized without video file",
			zap.String("recording_id", r.RecordingID), zap.String("dir", r.Dir))
		return
	}

	target := filepath.Join(r.Dir, r.RecordingID+".webm")
	if matches[0] != target {
		if err := os.Rename(matches[0], target); err != nil {
			logger.Warn("failed to rename recording file",
				zap.String("from", matches[0]), zap.Error(err))
			target = matches[0]
		}
	}
	r.VideoPath = target

	data, err := os.ReadFile(target)
	if err != nil {
		logger.Warn("failed to read recording file", zap.String("path", target), zap.Error(err))
		return
	}
	r.VideoBase64 = base64.StdEncoding.EncodeToString(data)
	logger.Info("recording finalized",
		zap.String("recording_id", r.RecordingID),
		zap.String("path", target),
		zap.Int("bytes", len(data)))
}
