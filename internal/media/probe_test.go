package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFFprobeProber(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		p := NewFFprobeProber("")
		if p.ffprobePath != "ffprobe" {
			t.Errorf("expected default path 'ffprobe', got %q", p.ffprobePath)
		}
	})

	t.Run("custom path", func(t *testing.T) {
		p := NewFFprobeProber("/opt/ffprobe")
		if p.ffprobePath != "/opt/ffprobe" {
			t.Errorf("expected custom path, got %q", p.ffprobePath)
		}
	})
}

func TestHasAudioStream(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := NewFFprobeProber("")

	t.Run("video with audio", func(t *testing.T) {
		video := filepath.Join(tmpDir, "voiced.mp4")
		createTestVideo(t, video, 1.0, true)

		hasAudio, err := p.HasAudioStream(ctx, video)
		if err != nil {
			t.Fatalf("HasAudioStream failed: %v", err)
		}
		if !hasAudio {
			t.Error("expected audio track to be detected")
		}
	})

	t.Run("video without audio", func(t *testing.T) {
		video := filepath.Join(tmpDir, "silent.mp4")
		createTestVideo(t, video, 1.0, false)

		hasAudio, err := p.HasAudioStream(ctx, video)
		if err != nil {
			t.Fatalf("HasAudioStream failed: %v", err)
		}
		if hasAudio {
			t.Error("expected no audio track")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.HasAudioStream(ctx, filepath.Join(tmpDir, "missing.mp4"))
		if !errors.Is(err, ErrFFprobeExecution) {
			t.Errorf("expected ErrFFprobeExecution, got: %v", err)
		}
	})
}

func TestDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	audio := filepath.Join(tmpDir, "tone.wav")
	createTestAudio(t, audio, 2.0)

	p := NewFFprobeProber("")
	duration, err := p.Duration(ctx, audio)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}

	if duration < 1.5 || duration > 2.5 {
		t.Errorf("expected roughly 2s duration, got %.2f", duration)
	}
}
