package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBGMVolume is the background-music volume used when mixing onto a
// video that already carries an audio track.
const DefaultBGMVolume = 0.25

// FFmpegCombiner implements Combiner using the ffmpeg CLI.
type FFmpegCombiner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// bgmVolume is the volume applied to the background track when mixing.
	bgmVolume float64
}

// NewFFmpegCombiner creates a new FFmpegCombiner.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// If bgmVolume is not in (0, 1], it defaults to DefaultBGMVolume.
func NewFFmpegCombiner(ffmpegPath string, bgmVolume float64) *FFmpegCombiner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bgmVolume <= 0 || bgmVolume > 1 {
		bgmVolume = DefaultBGMVolume
	}
	return &FFmpegCombiner{ffmpegPath: ffmpegPath, bgmVolume: bgmVolume}
}

// MixAudio muxes audioPath into videoPath as background music.
// The existing audio track is kept at full volume, the new track is mixed
// in at the configured BGM volume, and the video stream is copied.
func (c *FFmpegCombiner) MixAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return c.runFFmpeg(ctx, c.mixAudioArgs(videoPath, audioPath, outputPath))
}

// mixAudioArgs builds the argument list for MixAudio.
// Both tracks are normalized to 44.1kHz stereo before amix so mismatched
// sample formats do not abort the filter graph.
func (c *FFmpegCombiner) mixAudioArgs(videoPath, audioPath, outputPath string) []string {
	filter := fmt.Sprintf(
		"[0:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo,volume=1.0[voice];"+
			"[1:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo,volume=%.2f[bgm];"+
			"[voice][bgm]amix=inputs=2:duration=first:dropout_transition=2[aout]",
		c.bgmVolume,
	)

	return []string{
		"-y",             // Overwrite output file
		"-i", videoPath,  // Input video
		"-i", audioPath,  // Input background audio
		"-filter_complex", filter,
		"-map", "0:v", // Keep the video stream
		"-map", "[aout]", // Use the mixed audio
		"-c:v", "copy", // Copy video without re-encoding
		"-c:a", "aac", // Audio codec
		"-b:a", "192k", // Audio bitrate
		"-shortest", // Trim to the shorter input
		outputPath,
	}
}

// AddAudio muxes audioPath into a video that has no audio track.
func (c *FFmpegCombiner) AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return c.runFFmpeg(ctx, c.addAudioArgs(videoPath, audioPath, outputPath))
}

// addAudioArgs builds the argument list for AddAudio.
func (c *FFmpegCombiner) addAudioArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",            // Overwrite output file
		"-i", videoPath, // Input video
		"-i", audioPath, // Input audio
		"-map", "0:v", // Video stream from the first input
		"-map", "1:a", // Audio stream from the second input
		"-c:v", "copy", // Copy video without re-encoding
		"-c:a", "aac", // Audio codec
		"-shortest", // Trim to the shorter input
		outputPath,
	}
}

// AnimateImage renders a video from a still image and an audio track.
func (c *FFmpegCombiner) AnimateImage(ctx context.Context, imagePath, audioPath, outputPath string) error {
	return c.runFFmpeg(ctx, c.animateImageArgs(imagePath, audioPath, outputPath))
}

// animateImageArgs builds the argument list for AnimateImage.
func (c *FFmpegCombiner) animateImageArgs(imagePath, audioPath, outputPath string) []string {
	return []string{
		"-y",        // Overwrite output file
		"-loop", "1", // Loop the input image
		"-i", imagePath, // Input image
		"-i", audioPath, // Input audio
		"-c:v", "libx264", // Video codec
		"-tune", "stillimage", // Optimize for static content
		"-c:a", "aac", // Audio codec
		"-b:a", "192k", // Audio bitrate
		"-pix_fmt", "yuv420p", // Pixel format for player compatibility
		"-shortest", // End when the audio ends
		outputPath,
	}
}

// Version returns the first line of `ffmpeg -version` output.
func (c *FFmpegCombiner) Version(ctx context.Context) (string, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, "-version")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg version: %w", err)
	}

	line, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(line), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegCombiner) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
