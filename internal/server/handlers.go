package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wan-video/wan-gateway/internal/cache"
	"github.com/wan-video/wan-gateway/internal/generate"
	"github.com/wan-video/wan-gateway/internal/requestid"
	"github.com/wan-video/wan-gateway/internal/storage"
)

// maxUploadBytes bounds multipart form memory for image uploads.
const maxUploadBytes = 32 << 20

// Generator is the orchestration surface the handlers depend on.
type Generator interface {
	GenerateText(ctx context.Context, req generate.TextRequest) *generate.Result
	GenerateImage(ctx context.Context, req generate.ImageRequest) *generate.Result
	GenerateKeyframe(ctx context.Context, req generate.KeyframeRequest) *generate.Result
	ServiceStatus() generate.ServiceStatus
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator Generator
	results   *cache.ResultCache
	store     storage.Storage
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance. The result cache is optional;
// when nil, every request goes to the provider.
func NewHandlers(generator Generator, results *cache.ResultCache, store storage.Storage, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		generator: generator,
		results:   results,
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Status handles GET /status requests, reporting the service configuration.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponseFrom(h.generator.ServiceStatus()))
}

// GenerateText handles POST /generate/text requests.
func (h *Handlers) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req TextGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	prompt := requestid.SanitizePrompt(req.Prompt)
	reqID := requestid.FromRequest(prompt, req.Style, req.AspectRatio)

	if h.results != nil {
		if cached, ok := h.results.Get(reqID); ok {
			h.logger.Info("serving cached generation result",
				slog.String("request_id", reqID),
			)
			writeJSON(w, http.StatusOK, generationResponseFrom(cached, reqID, true))
			return
		}
	}

	result := h.generator.GenerateText(r.Context(), generate.TextRequest{
		Prompt:         prompt,
		Style:          req.Style,
		AspectRatio:    req.AspectRatio,
		Model:          req.Model,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
	})

	if result.Success && h.results != nil {
		h.results.Put(reqID, result)
	}

	h.logger.Info("text generation finished",
		slog.String("request_id", reqID),
		slog.Bool("success", result.Success),
		slog.String("task_id", result.TaskID),
	)

	writeJSON(w, http.StatusOK, generationResponseFrom(result, reqID, false))
}

// GenerateImage handles POST /generate/image requests. The image arrives as
// a multipart file under the "image" field.
func (h *Handlers) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	imagePath, cleanup, err := h.saveUpload(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_IMAGE")
		return
	}
	defer cleanup()

	result := h.generator.GenerateImage(r.Context(), generate.ImageRequest{
		ImagePath: imagePath,
		Prompt:    requestid.SanitizePrompt(r.FormValue("prompt")),
		Style:     r.FormValue("style"),
		Model:     r.FormValue("model"),
	})

	h.logger.Info("image generation finished",
		slog.Bool("success", result.Success),
		slog.String("task_id", result.TaskID),
	)

	writeJSON(w, http.StatusOK, generationResponseFrom(result, "", false))
}

// GenerateKeyframe handles POST /generate/keyframe requests. The frames
// arrive as multipart files under "start_frame" and "end_frame".
func (h *Handlers) GenerateKeyframe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	startPath, startCleanup, err := h.saveUpload(r, "start_frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_START_FRAME")
		return
	}
	defer startCleanup()

	endPath, endCleanup, err := h.saveUpload(r, "end_frame")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_END_FRAME")
		return
	}
	defer endCleanup()

	result := h.generator.GenerateKeyframe(r.Context(), generate.KeyframeRequest{
		StartImagePath: startPath,
		EndImagePath:   endPath,
		Prompt:         requestid.SanitizePrompt(r.FormValue("prompt")),
		Style:          r.FormValue("style"),
		Model:          r.FormValue("model"),
	})

	h.logger.Info("keyframe generation finished",
		slog.Bool("success", result.Success),
		slog.String("task_id", result.TaskID),
	)

	writeJSON(w, http.StatusOK, generationResponseFrom(result, "", false))
}

// saveUpload stores one multipart file into temp storage and returns its
// path with a cleanup function.
func (h *Handlers) saveUpload(r *http.Request, field string) (string, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s file is required", field)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	path, err := h.store.SaveTemp(r.Context(), field, file)
	if err != nil {
		h.logger.Error("failed to save uploaded file",
			slog.String("field", field),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		return "", nil, fmt.Errorf("failed to store %s file", field)
	}

	cleanup := func() {
		if err := h.store.CleanupTemp(context.WithoutCancel(r.Context()), []string{path}); err != nil {
			h.logger.Warn("failed to clean up uploaded file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
	return path, cleanup, nil
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
