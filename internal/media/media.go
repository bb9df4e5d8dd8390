// Package media provides ffmpeg-backed probing and combining of video,
// audio, and image inputs.
package media

import "context"

// Prober defines the interface for inspecting media files.
type Prober interface {
	// HasAudioStream reports whether the file at path contains at least
	// one audio stream.
	HasAudioStream(ctx context.Context, path string) (bool, error)

	// Duration returns the duration in seconds of a media file.
	Duration(ctx context.Context, path string) (float64, error)
}

// Combiner defines the interface for producing output videos from
// downloaded inputs. Implementations should use ffmpeg or similar tools.
type Combiner interface {
	// MixAudio muxes audioPath into videoPath as background music, mixing
	// it with the video's existing audio track. The video stream is copied
	// without re-encoding and the output is trimmed to the shorter input.
	MixAudio(ctx context.Context, videoPath, audioPath, outputPath string) error

	// AddAudio muxes audioPath into a video that has no audio track of its
	// own. The video stream is copied without re-encoding.
	AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) error

	// AnimateImage renders a video from a still image and an audio track.
	// The image is looped for the duration of the audio.
	AnimateImage(ctx context.Context, imagePath, audioPath, outputPath string) error

	// Version returns the first line of `ffmpeg -version` output.
	Version(ctx context.Context) (string, error)
}
