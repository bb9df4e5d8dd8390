// Package bootstrap provides dependency initialization for the combiner API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/mediaforge/combiner-api/internal/config"
	"github.com/mediaforge/combiner-api/internal/fetch"
	"github.com/mediaforge/combiner-api/internal/job"
	"github.com/mediaforge/combiner-api/internal/media"
	"github.com/mediaforge/combiner-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService *job.Service
	Store      storage.Storage

	closers []func() error
}

// Close releases resources held by the dependencies, such as the job store.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, closer, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(
		fetch.WithTimeout(time.Duration(cfg.DownloadTimeoutSec)*time.Second),
		fetch.WithMaxBytes(int64(cfg.MaxDownloadMB)<<20),
	)

	combiner := media.NewFFmpegCombiner(cfg.FFmpegPath, cfg.BGMVolume)
	prober := media.NewFFprobeProber(cfg.FFprobePath)

	preflight(cfg, combiner, logger)

	svc := job.NewService(
		repo,
		fetcher,
		prober,
		combiner,
		store,
		logger,
		job.WithFFmpegTimeout(time.Duration(cfg.FFmpegTimeoutSec)*time.Second),
		job.WithMaxConcurrent(cfg.MaxConcurrentJobs),
	)

	deps := &Dependencies{
		JobService: svc,
		Store:      store,
	}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}
	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initRepository selects the job store: SQLite when DB_PATH is set,
// otherwise in-memory.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, func() error, error) {
	if cfg.DBPath == "" {
		logger.Info("in-memory job store configured")
		return job.NewMemoryRepository(), nil, nil
	}

	repo, err := job.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}
	logger.Info("SQLite job store configured",
		slog.String("db_path", cfg.DBPath),
	)
	return repo, repo.Close, nil
}

// preflight checks that the ffmpeg and ffprobe binaries are reachable.
// A missing binary is logged rather than fatal so the health endpoint can
// still report the state.
func preflight(cfg *config.Config, combiner media.Combiner, logger *slog.Logger) {
	for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Warn("binary not found in PATH",
				slog.String("binary", bin),
			)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, err := combiner.Version(ctx)
	if err != nil {
		logger.Warn("could not determine ffmpeg version",
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("ffmpeg available",
		slog.String("version", version),
	)

	logFontSupport(ctx, logger)
}

// logFontSupport reports whether CJK fonts are installed. Only the fonts
// image variant ships them; drawtext overlays on other images fall back to
// whatever fontconfig resolves.
func logFontSupport(ctx context.Context, logger *slog.Logger) {
	if _, err := exec.LookPath("fc-list"); err != nil {
		return
	}

	out, err := exec.CommandContext(ctx, "fc-list", ":lang=zh", "family").Output()
	if err != nil {
		logger.Debug("font probe failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(out) == 0 {
		logger.Info("no CJK fonts installed")
		return
	}
	logger.Info("CJK fonts available")
}
