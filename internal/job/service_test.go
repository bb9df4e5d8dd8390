package job

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediaforge/combiner-api/internal/storage"
)

// mockFetcher implements fetch.Fetcher for testing.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	args := m.Called(ctx, url, dst)
	return args.Get(0).(int64), args.Error(1)
}

// mockProber implements media.Prober for testing.
type mockProber struct {
	mock.Mock
}

func (m *mockProber) HasAudioStream(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *mockProber) Duration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

// mockCombiner implements media.Combiner for testing.
type mockCombiner struct {
	mock.Mock
}

func (m *mockCombiner) MixAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := m.Called(ctx, videoPath, audioPath, outputPath)
	return args.Error(0)
}

func (m *mockCombiner) AddAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := m.Called(ctx, videoPath, audioPath, outputPath)
	return args.Error(0)
}

func (m *mockCombiner) AnimateImage(ctx context.Context, imagePath, audioPath, outputPath string) error {
	args := m.Called(ctx, imagePath, audioPath, outputPath)
	return args.Error(0)
}

func (m *mockCombiner) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// writePayload makes a fetcher expectation stream data into the destination.
func writePayload(data string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		dst := args.Get(2).(io.Writer)
		_, _ = io.Copy(dst, strings.NewReader(data))
	}
}

func newTestService(t *testing.T) (*Service, *mockFetcher, *mockProber, *mockCombiner, *storage.LocalStorage, Repository) {
	t.Helper()

	repo := NewMemoryRepository()
	fetcher := &mockFetcher{}
	prober := &mockProber{}
	combiner := &mockCombiner{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := NewService(repo, fetcher, prober, combiner, store, logger,
		WithFFmpegTimeout(10*time.Second),
		WithMaxConcurrent(1),
	)
	return svc, fetcher, prober, combiner, store, repo
}

func TestCombine_MixesWhenVideoHasAudio(t *testing.T) {
	svc, fetcher, prober, combiner, _, repo := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, "https://example.com/video.mp4", mock.Anything).
		Run(writePayload("video-bytes")).Return(int64(11), nil)
	fetcher.On("Download", mock.Anything, "https://example.com/bgm.mp3", mock.Anything).
		Run(writePayload("audio-bytes")).Return(int64(11), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(true, nil)
	combiner.On("MixAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/video.mp4",
		AudioURL: "https://example.com/bgm.mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, j.GetStatus())
	assert.Equal(t, j.ID+"_output.mp4", j.OutputName)
	assert.Equal(t, "/download/"+j.ID+"_output.mp4", j.OutputURL)

	saved, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, saved.Status)

	combiner.AssertCalled(t, "MixAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	combiner.AssertNotCalled(t, "AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCombine_AddsAudioToSilentVideo(t *testing.T) {
	svc, fetcher, prober, combiner, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Run(writePayload("bytes")).Return(int64(5), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(false, nil)
	combiner.On("AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/silent.mp4",
		AudioURL: "https://example.com/bgm.mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, j.GetStatus())
	combiner.AssertCalled(t, "AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	combiner.AssertNotCalled(t, "MixAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCombine_CustomOutputFormat(t *testing.T) {
	svc, fetcher, prober, combiner, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Run(writePayload("bytes")).Return(int64(5), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(false, nil)
	combiner.On("AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL:     "https://example.com/v.mp4",
		AudioURL:     "https://example.com/a.mp3",
		OutputFormat: "mov",
	})
	require.NoError(t, err)
	assert.Equal(t, j.ID+"_output.mov", j.OutputName)
}

func TestCombine_DownloadFailure(t *testing.T) {
	svc, fetcher, _, _, _, repo := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), io.ErrUnexpectedEOF)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/gone.mp4",
		AudioURL: "https://example.com/bgm.mp3",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, StatusFailed, j.GetStatus())

	saved, findErr := repo.FindByID(ctx, j.ID)
	require.NoError(t, findErr)
	assert.Equal(t, StatusFailed, saved.Status)
	assert.NotEmpty(t, saved.Error)
}

func TestCombine_FFmpegFailure(t *testing.T) {
	svc, fetcher, prober, combiner, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Run(writePayload("bytes")).Return(int64(5), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(true, nil)
	combiner.On("MixAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(io.ErrClosedPipe)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/v.mp4",
		AudioURL: "https://example.com/a.mp3",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, StatusFailed, j.GetStatus())
}

func TestCombine_CleansUpTempFiles(t *testing.T) {
	svc, fetcher, prober, combiner, store, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Run(writePayload("bytes")).Return(int64(5), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(false, nil)
	combiner.On("AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/v.mp4",
		AudioURL: "https://example.com/a.mp3",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(store.TempDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir(), "leftover temp file: %s", e.Name())
	}
}

func TestAnimateImage_Success(t *testing.T) {
	svc, fetcher, _, combiner, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, "https://example.com/face.png", mock.Anything).
		Run(writePayload("png-bytes")).Return(int64(9), nil)
	fetcher.On("Download", mock.Anything, "https://example.com/voice.mp3", mock.Anything).
		Run(writePayload("mp3-bytes")).Return(int64(9), nil)
	combiner.On("AnimateImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	j, err := svc.AnimateImage(ctx, AnimateInput{
		ImageURL: "https://example.com/face.png",
		AudioURL: "https://example.com/voice.mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, j.GetStatus())
	assert.Equal(t, KindImageToVideo, j.Kind)
	assert.Equal(t, "/download/"+j.ID+"_output.mp4", j.OutputURL)
}

func TestAnimateImage_AudioDownloadFailure(t *testing.T) {
	svc, fetcher, _, combiner, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, "https://example.com/face.png", mock.Anything).
		Run(writePayload("png-bytes")).Return(int64(9), nil)
	fetcher.On("Download", mock.Anything, "https://example.com/voice.mp3", mock.Anything).
		Return(int64(0), io.ErrUnexpectedEOF)

	j, err := svc.AnimateImage(ctx, AnimateInput{
		ImageURL: "https://example.com/face.png",
		AudioURL: "https://example.com/voice.mp3",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, StatusFailed, j.GetStatus())
	combiner.AssertNotCalled(t, "AnimateImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteJob_RemovesRecordAndOutput(t *testing.T) {
	svc, fetcher, prober, combiner, store, repo := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Run(writePayload("bytes")).Return(int64(5), nil)
	prober.On("HasAudioStream", mock.Anything, mock.Anything).Return(false, nil)
	// Have the combiner actually create the output file so deletion is observable.
	combiner.On("AddAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(3), []byte("video"), 0600))
		}).Return(nil)

	j, err := svc.Combine(ctx, CombineInput{
		VideoURL: "https://example.com/v.mp4",
		AudioURL: "https://example.com/a.mp3",
	})
	require.NoError(t, err)

	outputPath, err := store.OutputPath(j.OutputName)
	require.NoError(t, err)
	require.FileExists(t, outputPath)

	require.NoError(t, svc.DeleteJob(ctx, j.ID))
	assert.NoFileExists(t, outputPath)

	_, err = repo.FindByID(ctx, j.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJob_Missing(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	assert.ErrorIs(t, svc.DeleteJob(context.Background(), "missing"), ErrJobNotFound)
}

func TestListJobs(t *testing.T) {
	svc, fetcher, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	fetcher.On("Download", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), io.ErrUnexpectedEOF)

	_, _ = svc.Combine(ctx, CombineInput{VideoURL: "https://example.com/1.mp4", AudioURL: "https://example.com/1.mp3"})
	_, _ = svc.Combine(ctx, CombineInput{VideoURL: "https://example.com/2.mp4", AudioURL: "https://example.com/2.mp3"})

	jobs, err := svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
