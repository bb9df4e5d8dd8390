package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createTestImage creates a simple solid color image using ffmpeg.
func createTestImage(t *testing.T, path string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "color=c=red:s=64x64:d=1",
		"-frames:v", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test image: %v\noutput: %s", err, output)
	}
}

// createTestAudio creates a short sine-wave audio file using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.1f", duration),
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

// createTestVideo creates a simple test video, optionally with an audio track.
func createTestVideo(t *testing.T, path string, duration float64, withAudio bool) {
	t.Helper()

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=64x64:d=%.1f", duration),
	}
	if withAudio {
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=r=44100:cl=stereo:d=%.1f", duration),
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
	)
	if withAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, path)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegCombiner(t *testing.T) {
	t.Run("default path and volume", func(t *testing.T) {
		c := NewFFmpegCombiner("", 0)
		if c.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", c.ffmpegPath)
		}
		if c.bgmVolume != DefaultBGMVolume {
			t.Errorf("expected default volume %g, got %g", DefaultBGMVolume, c.bgmVolume)
		}
	})

	t.Run("custom path and volume", func(t *testing.T) {
		c := NewFFmpegCombiner("/usr/local/bin/ffmpeg", 0.5)
		if c.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", c.ffmpegPath)
		}
		if c.bgmVolume != 0.5 {
			t.Errorf("expected volume 0.5, got %g", c.bgmVolume)
		}
	})

	t.Run("out of range volume falls back to default", func(t *testing.T) {
		c := NewFFmpegCombiner("", 1.5)
		if c.bgmVolume != DefaultBGMVolume {
			t.Errorf("expected default volume, got %g", c.bgmVolume)
		}
	})
}

func TestMixAudioArgs(t *testing.T) {
	c := NewFFmpegCombiner("", 0.25)
	args := c.mixAudioArgs("in.mp4", "bgm.mp3", "out.mp4")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "volume=0.25[bgm]") {
		t.Errorf("expected BGM volume 0.25 in filter, got: %s", joined)
	}
	if !strings.Contains(joined, "amix=inputs=2:duration=first:dropout_transition=2[aout]") {
		t.Errorf("expected amix filter, got: %s", joined)
	}
	if !strings.Contains(joined, "-map 0:v -map [aout] -c:v copy -c:a aac -b:a 192k -shortest out.mp4") {
		t.Errorf("expected stream mapping and codecs, got: %s", joined)
	}
}

func TestAddAudioArgs(t *testing.T) {
	c := NewFFmpegCombiner("", 0.25)
	args := c.addAudioArgs("in.mp4", "bgm.mp3", "out.mp4")

	joined := strings.Join(args, " ")
	if strings.Contains(joined, "filter_complex") {
		t.Errorf("expected no filter graph for silent video, got: %s", joined)
	}
	if !strings.Contains(joined, "-map 0:v -map 1:a -c:v copy -c:a aac -shortest out.mp4") {
		t.Errorf("expected direct stream mapping, got: %s", joined)
	}
}

func TestAnimateImageArgs(t *testing.T) {
	c := NewFFmpegCombiner("", 0.25)
	args := c.animateImageArgs("in.png", "voice.mp3", "out.mp4")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-loop 1 -i in.png -i voice.mp3") {
		t.Errorf("expected looped image input, got: %s", joined)
	}
	if !strings.Contains(joined, "-c:v libx264 -tune stillimage -c:a aac -b:a 192k -pix_fmt yuv420p -shortest out.mp4") {
		t.Errorf("expected still-image encode settings, got: %s", joined)
	}
}

func TestAnimateImage(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	image := filepath.Join(tmpDir, "frame.png")
	audio := filepath.Join(tmpDir, "voice.wav")
	output := filepath.Join(tmpDir, "out.mp4")

	createTestImage(t, image)
	createTestAudio(t, audio, 1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c := NewFFmpegCombiner("", 0.25)
	if err := c.AnimateImage(ctx, image, audio, output); err != nil {
		t.Fatalf("AnimateImage failed: %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output not created: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("output file is empty")
	}

	p := NewFFprobeProber("")
	hasAudio, err := p.HasAudioStream(ctx, output)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if !hasAudio {
		t.Error("expected output video to carry an audio track")
	}
}

func TestMixAudio_WithAudioTrack(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "voiced.mp4")
	bgm := filepath.Join(tmpDir, "bgm.wav")
	output := filepath.Join(tmpDir, "out.mp4")

	createTestVideo(t, video, 1.0, true)
	createTestAudio(t, bgm, 1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c := NewFFmpegCombiner("", 0.25)
	if err := c.MixAudio(ctx, video, bgm, output); err != nil {
		t.Fatalf("MixAudio failed: %v", err)
	}

	p := NewFFprobeProber("")
	hasAudio, err := p.HasAudioStream(ctx, output)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if !hasAudio {
		t.Error("expected mixed output to carry an audio track")
	}
}

func TestAddAudio_SilentVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "silent.mp4")
	bgm := filepath.Join(tmpDir, "bgm.wav")
	output := filepath.Join(tmpDir, "out.mp4")

	createTestVideo(t, video, 1.0, false)
	createTestAudio(t, bgm, 1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := NewFFprobeProber("")
	hasAudio, err := p.HasAudioStream(ctx, video)
	if err != nil {
		t.Fatalf("probe input: %v", err)
	}
	if hasAudio {
		t.Fatal("fixture video unexpectedly has an audio track")
	}

	c := NewFFmpegCombiner("", 0.25)
	if err := c.AddAudio(ctx, video, bgm, output); err != nil {
		t.Fatalf("AddAudio failed: %v", err)
	}

	hasAudio, err = p.HasAudioStream(ctx, output)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if !hasAudio {
		t.Error("expected output to carry the added audio track")
	}
}

func TestVersion(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	c := NewFFmpegCombiner("", 0.25)

	version, err := c.Version(ctx)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if !strings.HasPrefix(version, "ffmpeg version") {
		t.Errorf("unexpected version line: %q", version)
	}
	if strings.Contains(version, "\n") {
		t.Errorf("expected a single line, got: %q", version)
	}
}

func TestRunFFmpeg_Failure(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := context.Background()
	c := NewFFmpegCombiner("", 0.25)

	err := c.MixAudio(ctx, "/nonexistent/video.mp4", "/nonexistent/audio.mp3", "/tmp/never.mp4")
	if err == nil {
		t.Fatal("expected error for missing inputs")
	}

	var ffErr *FFmpegError
	if !errors.As(err, &ffErr) {
		t.Fatalf("expected FFmpegError, got %T: %v", err, err)
	}
	if ffErr.Stderr == "" {
		t.Error("expected stderr to be captured")
	}
}

func TestFFmpegError(t *testing.T) {
	baseErr := errors.New("exit status 1")
	ffErr := &FFmpegError{
		Args:   []string{"-i", "input.mp4"},
		Stderr: "No such file or directory",
		Err:    baseErr,
	}

	if !strings.Contains(ffErr.Error(), "No such file or directory") {
		t.Errorf("expected stderr in message, got: %s", ffErr.Error())
	}
	if !errors.Is(ffErr, baseErr) {
		t.Error("expected Unwrap to expose the underlying error")
	}
}
