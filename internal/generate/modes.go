package generate

import (
	"time"

	"github.com/wan-video/wan-gateway/internal/registry"
)

// ModeConfig holds the per-mode submission path and polling budget.
// Text generation finishes in tens of seconds; image and keyframe jobs run
// materially longer on the backend, so they poll slower with a wider
// deadline.
type ModeConfig struct {
	ServicePath  string
	PollInterval time.Duration
	PollDeadline time.Duration
}

var modeConfigs = map[registry.Mode]ModeConfig{
	registry.ModeTextToVideo: {
		ServicePath:  "services/aigc/video-generation/video-synthesis",
		PollInterval: 2 * time.Second,
		PollDeadline: 5 * time.Minute,
	},
	registry.ModeImageToVideo: {
		ServicePath:  "services/aigc/video-generation/video-synthesis",
		PollInterval: 5 * time.Second,
		PollDeadline: 10 * time.Minute,
	},
	registry.ModeKeyframeToVideo: {
		ServicePath:  "services/aigc/image2video/video-synthesis",
		PollInterval: 5 * time.Second,
		PollDeadline: 10 * time.Minute,
	},
}

// ConfigFor returns the configuration for mode. Unknown modes fall back to
// the text configuration, which has the tightest budget.
func ConfigFor(mode registry.Mode) ModeConfig {
	if cfg, ok := modeConfigs[mode]; ok {
		return cfg
	}
	return modeConfigs[registry.ModeTextToVideo]
}

// ModeStatus describes one mode's configuration for introspection.
type ModeStatus struct {
	Endpoint     string        `json:"endpoint"`
	PollInterval time.Duration `json:"poll_interval"`
	PollDeadline time.Duration `json:"poll_deadline"`
	Models       []string      `json:"models"`
	DefaultModel string        `json:"default_model"`
}

// ServiceStatus reports the orchestrator's configuration for health checks.
type ServiceStatus struct {
	APIConfigured bool                         `json:"api_configured"`
	Modes         map[registry.Mode]ModeStatus `json:"modes"`
	Styles        []string                     `json:"styles"`
	AspectRatios  []string                     `json:"aspect_ratios"`
}
