package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/mediaforge/combiner-api/internal/job"
	"github.com/mediaforge/combiner-api/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.Service
	store     storage.Storage
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, store storage.Storage, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET / and GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		FFmpegVersion: h.service.FFmpegVersion(r.Context()),
	})
}

// Combine handles POST /combine requests. The sources are downloaded and
// processed before the response is written, matching the synchronous
// contract of the API.
func (h *Handlers) Combine(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Combine(r.Context(), job.CombineInput{
		VideoURL:     req.VideoURL,
		AudioURL:     req.AudioURL,
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		h.writeProcessingError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, CombineResponse{
		Success:   true,
		JobID:     result.ID,
		Message:   "video combined",
		OutputURL: result.OutputURL,
	})
}

// ImageToVideo handles POST /image-to-video requests.
func (h *Handlers) ImageToVideo(w http.ResponseWriter, r *http.Request) {
	var req ImageToVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.AnimateImage(r.Context(), job.AnimateInput{
		ImageURL:     req.ImageURL,
		AudioURL:     req.AudioURL,
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		h.writeProcessingError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, CombineResponse{
		Success:   true,
		JobID:     result.ID,
		Message:   "video created",
		OutputURL: result.OutputURL,
	})
}

// Download handles GET /download/{filename} requests.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	path, err := h.store.OutputPath(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name", "INVALID_FILENAME")
		return
	}

	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeAndValidate decodes the request body into dst and validates it.
// On failure it writes the error response and returns false.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}

	return true
}

// writeProcessingError maps workflow errors onto HTTP status codes.
func (h *Handlers) writeProcessingError(w http.ResponseWriter, result *job.Job, err error) {
	jobID := ""
	if result != nil {
		jobID = result.ID
	}

	switch {
	case errors.Is(err, job.ErrDownloadFailed):
		h.logger.Warn("source download failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "failed to download source file", "DOWNLOAD_FAILED")
	case errors.Is(err, job.ErrProcessingFailed):
		h.logger.Error("ffmpeg processing failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "ffmpeg processing failed", "FFMPEG_FAILED")
	default:
		h.logger.Error("combine request failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// toJobResponse converts a domain job to its DTO.
func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Error:     j.Error,
		OutputURL: j.OutputURL,
		CreatedAt: j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
