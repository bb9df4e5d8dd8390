// Package server provides the HTTP server for the combiner API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CombineRequest is the HTTP request body for combining a video with audio.
type CombineRequest struct {
	// VideoURL is the location of the source video.
	VideoURL string `json:"video_url" validate:"required,url"`
	// AudioURL is the location of the background audio.
	AudioURL string `json:"audio_url" validate:"required,url"`
	// OutputFormat is the output container. Defaults to "mp4".
	OutputFormat string `json:"output_format" validate:"omitempty,oneof=mp4 mov mkv webm"`
}

// ImageToVideoRequest is the HTTP request body for rendering a video from
// a still image and an audio track.
type ImageToVideoRequest struct {
	// ImageURL is the location of the source image.
	ImageURL string `json:"image_url" validate:"required,url"`
	// AudioURL is the location of the audio track.
	AudioURL string `json:"audio_url" validate:"required,url"`
	// OutputFormat is the output container. Defaults to "mp4".
	OutputFormat string `json:"output_format" validate:"omitempty,oneof=mp4 mov mkv webm"`
}

// CombineResponse is the HTTP response for both combine endpoints.
type CombineResponse struct {
	// Success indicates whether the output video was produced.
	Success bool `json:"success"`
	// JobID is the unique identifier for the job.
	JobID string `json:"job_id"`
	// Message is a human-readable summary.
	Message string `json:"message"`
	// OutputURL is where the produced video can be fetched from.
	OutputURL string `json:"output_url,omitempty"`
}

// JobResponse is the HTTP response for job record endpoints.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Kind is the type of combine operation.
	Kind string `json:"kind"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// OutputURL is where the produced video can be fetched from.
	OutputURL string `json:"output_url,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when processing finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobListResponse is the HTTP response for listing job records.
type JobListResponse struct {
	// Jobs holds the job records, newest first.
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// FFmpegVersion is the first line of `ffmpeg -version` output.
	FFmpegVersion string `json:"ffmpeg_version"`
}
