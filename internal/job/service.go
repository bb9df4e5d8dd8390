package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mediaforge/combiner-api/internal/fetch"
	"github.com/mediaforge/combiner-api/internal/media"
	"github.com/mediaforge/combiner-api/internal/metrics"
	"github.com/mediaforge/combiner-api/internal/storage"
)

// Static errors for the combine workflow. Handlers map these onto HTTP
// status codes.
var (
	// ErrDownloadFailed is returned when a source file cannot be fetched.
	ErrDownloadFailed = errors.New("failed to download source file")
	// ErrProcessingFailed is returned when ffmpeg fails to produce output.
	ErrProcessingFailed = errors.New("ffmpeg processing failed")
)

// CombineInput contains the input parameters for a combine job.
type CombineInput struct {
	// VideoURL is the source video location.
	VideoURL string
	// AudioURL is the background audio location.
	AudioURL string
	// OutputFormat is the output container extension. Defaults to "mp4".
	OutputFormat string
}

// AnimateInput contains the input parameters for an image-to-video job.
type AnimateInput struct {
	// ImageURL is the source still image location.
	ImageURL string
	// AudioURL is the audio track location.
	AudioURL string
	// OutputFormat is the output container extension. Defaults to "mp4".
	OutputFormat string
}

// Service orchestrates the combine workflow: download the sources, probe
// the video, run ffmpeg, optionally push the result to S3, and record the
// job state along the way.
type Service struct {
	repo     Repository
	fetcher  fetch.Fetcher
	prober   media.Prober
	combiner media.Combiner
	store    storage.Storage
	logger   *slog.Logger

	ffmpegTimeout time.Duration
	// sem bounds the number of ffmpeg pipelines running at once.
	sem chan struct{}
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithFFmpegTimeout bounds each ffmpeg invocation.
func WithFFmpegTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ffmpegTimeout = d
		}
	}
}

// WithMaxConcurrent limits how many jobs may process simultaneously.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// NewService creates a new Service.
func NewService(
	repo Repository,
	fetcher fetch.Fetcher,
	prober media.Prober,
	combiner media.Combiner,
	store storage.Storage,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:          repo,
		fetcher:       fetcher,
		prober:        prober,
		combiner:      combiner,
		store:         store,
		logger:        logger,
		ffmpegTimeout: 300 * time.Second,
		sem:           make(chan struct{}, 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Combine downloads a video and an audio file and muxes them.
// If the video carries an audio track the new audio is mixed in as
// background music; otherwise it becomes the only audio track.
// The returned job reflects the final state even when err is non-nil.
func (s *Service) Combine(ctx context.Context, input CombineInput) (*Job, error) {
	j := New(KindCombine)
	j.VideoURL = input.VideoURL
	j.AudioURL = input.AudioURL
	if input.OutputFormat != "" {
		j.OutputFormat = input.OutputFormat
	}

	s.logger.Info("combine job accepted",
		slog.String("job_id", j.ID),
		slog.String("video_url", input.VideoURL),
		slog.String("audio_url", input.AudioURL),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	err := s.process(ctx, j, func(ctx context.Context, outputPath string) error {
		videoPath, err := s.downloadToTemp(ctx, j.ID+"_video", input.VideoURL)
		if err != nil {
			return fmt.Errorf("%w: video: %w", ErrDownloadFailed, err)
		}
		defer s.cleanup(ctx, videoPath)

		audioPath, err := s.downloadToTemp(ctx, j.ID+"_audio", input.AudioURL)
		if err != nil {
			return fmt.Errorf("%w: audio: %w", ErrDownloadFailed, err)
		}
		defer s.cleanup(ctx, audioPath)

		hasAudio, err := s.prober.HasAudioStream(ctx, videoPath)
		if err != nil {
			return fmt.Errorf("%w: probe video: %w", ErrProcessingFailed, err)
		}

		s.logger.Debug("video probed",
			slog.String("job_id", j.ID),
			slog.Bool("has_audio", hasAudio),
		)

		run := s.combiner.AddAudio
		if hasAudio {
			run = s.combiner.MixAudio
		}
		return s.runFFmpeg(ctx, j, func(ctx context.Context) error {
			return run(ctx, videoPath, audioPath, outputPath)
		})
	})
	return j, err
}

// AnimateImage downloads a still image and an audio file and renders a
// video from them. The returned job reflects the final state even when
// err is non-nil.
func (s *Service) AnimateImage(ctx context.Context, input AnimateInput) (*Job, error) {
	j := New(KindImageToVideo)
	j.ImageURL = input.ImageURL
	j.AudioURL = input.AudioURL
	if input.OutputFormat != "" {
		j.OutputFormat = input.OutputFormat
	}

	s.logger.Info("image-to-video job accepted",
		slog.String("job_id", j.ID),
		slog.String("image_url", input.ImageURL),
		slog.String("audio_url", input.AudioURL),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	err := s.process(ctx, j, func(ctx context.Context, outputPath string) error {
		imagePath, err := s.downloadToTemp(ctx, j.ID+"_image", input.ImageURL)
		if err != nil {
			return fmt.Errorf("%w: image: %w", ErrDownloadFailed, err)
		}
		defer s.cleanup(ctx, imagePath)

		audioPath, err := s.downloadToTemp(ctx, j.ID+"_audio", input.AudioURL)
		if err != nil {
			return fmt.Errorf("%w: audio: %w", ErrDownloadFailed, err)
		}
		defer s.cleanup(ctx, audioPath)

		return s.runFFmpeg(ctx, j, func(ctx context.Context) error {
			return s.combiner.AnimateImage(ctx, imagePath, audioPath, outputPath)
		})
	})
	return j, err
}

// FFmpegVersion reports the ffmpeg build serving this instance.
// Mirrors the health endpoint contract: a missing binary is reported as
// a value, not an error.
func (s *Service) FFmpegVersion(ctx context.Context) string {
	v, err := s.combiner.Version(ctx)
	if err != nil {
		return "ffmpeg not found"
	}
	return v
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all job records, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a job record and its output file, if any.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if j.OutputName != "" {
		if err := s.store.RemoveOutput(ctx, j.OutputName); err != nil {
			s.logger.Warn("failed to remove output file",
				slog.String("job_id", id),
				slog.String("output_name", j.OutputName),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.repo.Delete(ctx, id)
}

// process runs a job body under the concurrency semaphore and records the
// resulting state transitions. The body receives the resolved output path.
func (s *Service) process(ctx context.Context, j *Job, body func(ctx context.Context, outputPath string) error) error {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.failJob(ctx, j, ctx.Err().Error())
		return fmt.Errorf("wait for processing slot: %w", ctx.Err())
	}

	if err := j.Start(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	outputName := fmt.Sprintf("%s_output.%s", j.ID, j.OutputFormat)
	outputPath, err := s.store.OutputPath(outputName)
	if err != nil {
		s.failJob(ctx, j, err.Error())
		return err
	}

	if err := body(ctx, outputPath); err != nil {
		s.failJob(ctx, j, err.Error())
		return err
	}

	outputURL := s.deliver(ctx, j, outputName, outputPath)
	j.SetOutput(outputName, outputPath, outputURL)
	if err := j.Complete(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.String("output_url", outputURL),
	)
	return nil
}

// runFFmpeg executes one ffmpeg invocation under the configured timeout
// and records its metrics.
func (s *Service) runFFmpeg(ctx context.Context, j *Job, run func(ctx context.Context) error) error {
	runCtx, cancel := context.WithTimeout(ctx, s.ffmpegTimeout)
	defer cancel()

	start := time.Now()
	err := run(runCtx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ObserveFFmpegRun(string(j.Kind), outcome, elapsed)

	if err != nil {
		s.logger.Error("ffmpeg run failed",
			slog.String("job_id", j.ID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	s.logger.Debug("ffmpeg run finished",
		slog.String("job_id", j.ID),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// deliver decides where the produced video is served from. When the storage
// backend supports S3 the file is uploaded and its object URL returned;
// otherwise the local download route is used.
func (s *Service) deliver(ctx context.Context, j *Job, outputName, outputPath string) string {
	localURL := "/download/" + outputName

	f, err := os.Open(outputPath) // #nosec G304 - path resolved by storage
	if err != nil {
		s.logger.Warn("open output for upload failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return localURL
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.UploadToS3(ctx, outputName, f)
	if err != nil {
		if !errors.Is(err, storage.ErrS3NotConfigured) {
			s.logger.Warn("S3 upload failed, serving locally",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		}
		return localURL
	}

	s.logger.Info("output uploaded to S3",
		slog.String("job_id", j.ID),
		slog.String("url", url),
	)
	return url
}

// downloadToTemp streams a remote file into temporary storage and returns
// the local path.
func (s *Service) downloadToTemp(ctx context.Context, name, url string) (string, error) {
	pr, pw := io.Pipe()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.fetcher.Download(ctx, url, pw)
		_ = pw.CloseWithError(err)
		errCh <- err
	}()

	path, saveErr := s.store.SaveTemp(ctx, name, pr)
	_ = pr.Close()
	dlErr := <-errCh

	if dlErr != nil || saveErr != nil {
		metrics.ObserveDownload("failure")
		if path != "" {
			s.cleanup(ctx, path)
		}
		if dlErr != nil {
			return "", dlErr
		}
		return "", saveErr
	}

	metrics.ObserveDownload("success")
	return path, nil
}

// cleanup removes a temp file, logging rather than failing on error.
func (s *Service) cleanup(ctx context.Context, path string) {
	if err := s.store.CleanupTemp(ctx, []string{path}); err != nil {
		s.logger.Warn("temp cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// failJob marks a job failed and persists the state, logging on error.
func (s *Service) failJob(ctx context.Context, j *Job, msg string) {
	if err := j.Fail(msg); err != nil {
		s.logger.Error("failed to mark job failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to persist failed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}
