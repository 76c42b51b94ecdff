// Package server provides the HTTP surface for the video-generation gateway.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/wan-video/wan-gateway/internal/generate"
)

// TextGenerationRequest is the HTTP request body for text-to-video generation.
type TextGenerationRequest struct {
	// Prompt describes the video to generate.
	Prompt string `json:"prompt" validate:"required,max=1000"`
	// Style selects a visual style; "<auto>" lets the provider pick.
	Style string `json:"style" validate:"omitempty,oneof=<auto> Cinematic Anime Realistic Abstract Documentary Commercial"`
	// AspectRatio selects the output frame shape.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 1:1 9:16"`
	// Model is the generation model ID; empty selects the default.
	Model string `json:"model" validate:"omitempty"`
	// NegativePrompt describes what must not appear in the video.
	NegativePrompt string `json:"negative_prompt" validate:"omitempty,max=1000"`
	// Seed makes generation reproducible.
	Seed *int64 `json:"seed"`
}

// GenerationResponse is the HTTP response for all generation endpoints.
type GenerationResponse struct {
	// Success reports whether generation produced an artifact.
	Success bool `json:"success"`
	// VideoURL is the remote artifact URL (time-limited).
	VideoURL string `json:"video_url,omitempty"`
	// LocalVideoPath is the server-local copy of the artifact.
	LocalVideoPath string `json:"local_video_path,omitempty"`
	// ErrorMessage is populated when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`
	// TaskID is the provider task identifier.
	TaskID string `json:"task_id,omitempty"`
	// GenerationTimeSeconds is the elapsed wall-clock time.
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	// Mode is the generation mode used.
	Mode string `json:"mode"`
	// Model is the model used.
	Model string `json:"model"`
	// RequestID is the deterministic request identifier.
	RequestID string `json:"request_id,omitempty"`
	// Cached reports whether the result was served from the result cache.
	Cached bool `json:"cached,omitempty"`
	// InputMetadata echoes the request inputs for auditing.
	InputMetadata map[string]any `json:"input_metadata,omitempty"`
}

// ModeStatusResponse describes one mode's configuration.
type ModeStatusResponse struct {
	Endpoint            string   `json:"endpoint"`
	PollIntervalSeconds float64  `json:"poll_interval_seconds"`
	PollDeadlineSeconds float64  `json:"poll_deadline_seconds"`
	Models              []string `json:"models"`
	DefaultModel        string   `json:"default_model"`
}

// StatusResponse is the HTTP response for the service status endpoint.
type StatusResponse struct {
	APIConfigured bool                          `json:"api_configured"`
	Modes         map[string]ModeStatusResponse `json:"modes"`
	Styles        []string                      `json:"styles"`
	AspectRatios  []string                      `json:"aspect_ratios"`
}

func statusResponseFrom(status generate.ServiceStatus) StatusResponse {
	resp := StatusResponse{
		APIConfigured: status.APIConfigured,
		Modes:         make(map[string]ModeStatusResponse, len(status.Modes)),
		Styles:        status.Styles,
		AspectRatios:  status.AspectRatios,
	}
	for mode, ms := range status.Modes {
		resp.Modes[string(mode)] = ModeStatusResponse{
			Endpoint:            ms.Endpoint,
			PollIntervalSeconds: ms.PollInterval.Seconds(),
			PollDeadlineSeconds: ms.PollDeadline.Seconds(),
			Models:              ms.Models,
			DefaultModel:        ms.DefaultModel,
		}
	}
	return resp
}

func generationResponseFrom(result *generate.Result, requestID string, cached bool) GenerationResponse {
	return GenerationResponse{
		Success:               result.Success,
		VideoURL:              result.VideoURL,
		LocalVideoPath:        result.LocalVideoPath,
		ErrorMessage:          result.ErrorMessage,
		TaskID:                result.TaskID,
		GenerationTimeSeconds: result.GenerationTime.Seconds(),
		Mode:                  string(result.Mode),
		Model:                 result.Model,
		RequestID:             requestID,
		Cached:                cached,
		InputMetadata:         result.InputMetadata,
	}
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
}
