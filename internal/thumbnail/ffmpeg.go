package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Extractor writes a single JPEG frame of the video at input to output
type Extractor interface {
	Extract(ctx context.Context, input, output string) error
}

// FFmpegExtractor grabs one frame with the ffmpeg binary at Path, scaled to
// Width pixels wide with proportional height.
type FFmpegExtractor struct {
	Path   string
	Width  int
	Offset time.Duration
}

var _ Extractor = (*FFmpegExtractor)(nil)

// NewFFmpegExtractor creates an extractor for the given binary
func NewFFmpegExtractor(path string, width int, offset time.Duration) *FFmpegExtractor {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegExtractor{Path: path, Width: width, Offset: offset}
}

// Extract captures the frame at Offset, or the first frame when the video is
// shorter than Offset.
func (fe *FFmpegExtractor) Extract(ctx context.Context, input, output string) error {
	if err := fe.run(ctx, input, output, fe.Offset); err != nil {
		return err
	}
	if fe.Offset > 0 && isEmpty(output) {
		log.Printf("No frame at %s for %s, retrying at start", fe.Offset, input)
		if err := fe.run(ctx, input, output, 0); err != nil {
			return err
		}
	}
	if isEmpty(output) {
		return fmt.Errorf("ffmpeg produced no frame for %s", input)
	}
	return nil
}

func (fe *FFmpegExtractor) args(input, output string, offset time.Duration) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", fe.Width),
		"-q:v", "2",
		"-f", "image2",
		output,
	}
}

func (fe *FFmpegExtractor) run(ctx context.Context, input, output string, offset time.Duration) error {
	cmd := exec.CommandContext(ctx, fe.Path, fe.args(input, output, offset)...)
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg timed out: %w", ctxErr)
		}
		log.Printf("FFmpeg stderr: %s", stderr.String())
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func isEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err != nil || fi.Size() == 0
}
