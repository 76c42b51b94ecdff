// Package generate orchestrates the asynchronous video-generation lifecycle:
// validate the request, submit the job, poll until a terminal state, and
// retrieve the artifact. Every failure path converges into a Result value;
// nothing escapes the orchestrator as an error.
package generate

import (
	"time"

	"github.com/wan-video/wan-gateway/internal/registry"
)

// Result is the uniform outcome of one generation call.
// When Success is true at least one of VideoURL or LocalVideoPath is set;
// when false, ErrorMessage is always populated.
type Result struct {
	Success        bool
	VideoURL       string
	LocalVideoPath string
	ErrorMessage   string
	TaskID         string
	GenerationTime time.Duration
	Mode           registry.Mode
	Model          string
	InputMetadata  map[string]any
}
