// Package job provides the Job aggregate for tracking combine requests,
// the repository ports for persistence, and the service that orchestrates
// download, probing, and ffmpeg processing.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/mediaforge/combiner-api/internal/job/id"
)

// Kind identifies the type of combine operation a job performs.
type Kind string

const (
	// KindCombine muxes a downloaded audio track into a downloaded video.
	KindCombine Kind = "combine"
	// KindImageToVideo renders a video from a still image and an audio track.
	KindImageToVideo Kind = "image_to_video"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindCombine || k == KindImageToVideo
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job has been accepted but not started.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the job is downloading or processing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents a single combine request and its outcome.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is the type of combine operation.
	Kind Kind
	// Status is the current job state.
	Status Status
	// VideoURL is the source video URL (combine jobs).
	VideoURL string
	// ImageURL is the source image URL (image-to-video jobs).
	ImageURL string
	// AudioURL is the source audio URL.
	AudioURL string
	// OutputFormat is the container extension of the output file.
	OutputFormat string
	// OutputName is the file name of the produced video in the output area.
	OutputName string
	// OutputPath is the local path to the produced video.
	OutputPath string
	// OutputURL is where the produced video can be fetched from
	// (a /download path, or an S3 URL when uploads are configured).
	OutputURL string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New(kind Kind) *Job {
	return NewWithID(id.Generate(), kind)
}

// NewWithID creates a new Job with the specified ID and initial PENDING status.
// Useful for testing or when the ID needs to be externally generated.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:           jobID,
		Kind:         kind,
		Status:       StatusPending,
		OutputFormat: "mp4",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutput records where the produced video lives.
func (j *Job) SetOutput(name, path, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputName = name
	j.OutputPath = path
	j.OutputURL = url
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output location.
// This is used when the job's video file is deleted.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputName = ""
	j.OutputPath = ""
	j.OutputURL = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Kind:         j.Kind,
		Status:       j.Status,
		VideoURL:     j.VideoURL,
		ImageURL:     j.ImageURL,
		AudioURL:     j.AudioURL,
		OutputFormat: j.OutputFormat,
		OutputName:   j.OutputName,
		OutputPath:   j.OutputPath,
		OutputURL:    j.OutputURL,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
