package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
)

var commandContext = exec.CommandContext

// FFmpeg runs the ffmpeg binary. Every invocation is bound to the caller's context,
// so cancelling the context kills the process.
type FFmpeg struct {
	binary string
	logger *log.Logger
}

// NewFFmpeg creates an encoder for binary (default "ffmpeg").
func NewFFmpeg(binary string, logger *log.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FFmpeg{binary: binary, logger: shared.WithLogger(logger, "component", "ffmpeg")}
}

// TranscodeArgs builds the argument list for converting input to output with preset.
func TranscodeArgs(input, output string, preset Preset) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", input, "-vn", "-c:a", preset.Codec}
	if preset.Bitrate != "" {
		args = append(args, "-b:a", preset.Bitrate)
	}
	return append(args, "-y", output)
}

// Transcode converts input into outDir/name.<ext> and returns the output path.
func (f *FFmpeg) Transcode(ctx context.Context, input, outDir, name string, preset Preset) (string, error) {
	if input == "" || outDir == "" || name == "" {
		return "", fmt.Errorf("%w: input, output folder and name are required", shared.ErrInvalidArgument)
	}
	if _, err := os.Stat(input); err != nil {
		return "", fmt.Errorf("%w: input not found: %v", shared.ErrEncoderFailed, err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}

	output := filepath.Join(outDir, name+preset.Container.Ext())
	if err := f.run(ctx, TranscodeArgs(input, output, preset)); err != nil {
		os.Remove(output)
		return "", err
	}
	return output, nil
}

// RemuxOpts describes a stream copy that rewrites container metadata or attaches a cover.
type RemuxOpts struct {
	Metadata  map[string]string
	CoverPath string
}

// RemuxArgs builds the argument list for copying input to output with opts applied.
func RemuxArgs(input, output string, opts RemuxOpts) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", input}
	if opts.CoverPath != "" {
		args = append(args, "-i", opts.CoverPath, "-map", "0:a", "-map", "1:0", "-c:v", "copy", "-disposition:v:0", "attached_pic")
	} else {
		args = append(args, "-map", "0")
	}
	args = append(args, "-c:a", "copy")

	keys := make([]string, 0, len(opts.Metadata))
	for k := range opts.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+opts.Metadata[k])
	}
	return append(args, "-y", output)
}

// Remux rewrites path in place through a sibling temporary file.
func (f *FFmpeg) Remux(ctx context.Context, path string, opts RemuxOpts) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".remux" + ext

	if err := f.run(ctx, RemuxArgs(path, tmp, opts)); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	f.logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	out, err := commandContext(ctx, f.binary, args...).CombinedOutput()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: ffmpeg interrupted: %w", shared.ErrAborted, ctxErr)
	}

	detail := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: exit code %d: %s", shared.ErrEncoderFailed, exitErr.ExitCode(), detail)
	}
	return fmt.Errorf("%w: %v", shared.ErrEncoderFailed, err)
}
