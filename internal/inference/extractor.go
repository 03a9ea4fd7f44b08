package inference

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ClipExtractor pulls evenly spaced JPEG frames out of a finished
// recording with ffmpeg, feeding the scheduler's bulk reprocessing mode.
type ClipExtractor struct {
	ffmpegPath string
	tempDir    string
	log        *logrus.Entry
}

func NewClipExtractor() (*ClipExtractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "palmpipe-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &ClipExtractor{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		log:        logrus.WithField("component", "extractor"),
	}, nil
}

// ExtractFrames returns up to count JPEG frames spaced evenly across the
// clip. Individual frame failures are skipped; only a clip that yields no
// frames at all is an error.
func (ce *ClipExtractor) ExtractFrames(clipPath string, count int) ([][]byte, error) {
	if _, err := os.Stat(clipPath); err != nil {
		return nil, fmt.Errorf("clip not accessible: %w", err)
	}

	duration, err := ce.clipDuration(clipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get clip duration: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration: %f", duration)
	}

	frames := make([][]byte, 0, count)
	interval := duration / float64(count+1)

	for i := 1; i <= count; i++ {
		ts := interval * float64(i)
		frame, err := ce.extractOne(clipPath, ts)
		if err != nil {
			ce.log.WithError(err).WithField("timestamp", ts).Warn("frame extraction failed")
			continue
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("failed to extract any frames (attempted %d)", count)
	}
	return frames, nil
}

func (ce *ClipExtractor) clipDuration(clipPath string) (float64, error) {
	if ffprobePath, err := exec.LookPath("ffprobe"); err == nil {
		cmd := exec.Command(ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			clipPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err == nil {
			s := strings.TrimSpace(stdout.String())
			if d, err := strconv.ParseFloat(s, 64); err == nil && d > 0 {
				return d, nil
			}
		}
	}

	// ffprobe missing or clip lacks a duration header (common for
	// streamed WebM); parse ffmpeg's own summary instead.
	cmd := exec.Command(ce.ffmpegPath, "-i", clipPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	out := stderr.String()
	idx := strings.Index(out, "Duration: ")
	if idx == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}
	idx += len("Duration: ")
	end := strings.Index(out[idx:], ",")
	if end == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	parts := strings.Split(out[idx:idx+end], ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", out[idx:idx+end])
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return hours*3600 + minutes*60 + seconds, nil
}

func (ce *ClipExtractor) extractOne(clipPath string, timestamp float64) ([]byte, error) {
	tempFile := filepath.Join(ce.tempDir, fmt.Sprintf("frame_%f.jpg", timestamp))
	defer os.Remove(tempFile)

	cmd := exec.Command(ce.ffmpegPath,
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", clipPath,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		tempFile,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to extract frame at %.2f: %w (%s)", timestamp, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	return data, nil
}

func (ce *ClipExtractor) Cleanup() error {
	return os.RemoveAll(ce.tempDir)
}
