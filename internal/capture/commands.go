package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Recorder writes a raw h264 clip of length d to path.
type Recorder interface {
	Record(ctx context.Context, path string, d time.Duration) error
}

// Transcoder converts the raw clip at src into an mp4 at dst.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// CommandRecorder shells out to the camera stack, libcamera-vid by default.
type CommandRecorder struct {
	Command string
	// ExtraArgs go before the -t/-o pair, e.g. resolution flags.
	ExtraArgs []string
}

// Record runs `<cmd> [extra] --nopreview -t <ms> -o <path>`.
func (r *CommandRecorder) Record(ctx context.Context, path string, d time.Duration) error {
	cmd := r.Command
	if cmd == "" {
		cmd = "libcamera-vid"
	}
	args := append([]string{}, r.ExtraArgs...)
	args = append(args, "--nopreview", "-t", strconv.FormatInt(d.Milliseconds(), 10), "-o", path)
	return run(ctx, cmd, args...)
}

// MP4BoxTranscoder wraps the raw stream in an mp4 container with MP4Box.
type MP4BoxTranscoder struct {
	Command string
}

// Transcode runs `MP4Box -add <src> <dst>`.
func (t *MP4BoxTranscoder) Transcode(ctx context.Context, src, dst string) error {
	cmd := t.Command
	if cmd == "" {
		cmd = "MP4Box"
	}
	return run(ctx, cmd, "-add", src, dst)
}

func run(ctx context.Context, name string, args ...string) error {
	var out bytes.Buffer
	c := exec.CommandContext(ctx, name, args...)
	c.Stdout = &out
	c.Stderr = &out
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		msg := strings.TrimSpace(out.String())
		if len(msg) > 256 {
			msg = msg[len(msg)-256:]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
