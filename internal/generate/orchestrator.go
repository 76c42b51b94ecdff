package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wan-video/wan-gateway/internal/imageref"
	"github.com/wan-video/wan-gateway/internal/registry"
	"github.com/wan-video/wan-gateway/internal/wanx"
)

// TaskPoller waits for a submitted task to reach a terminal state.
type TaskPoller interface {
	Poll(ctx context.Context, taskID string, interval, deadline time.Duration) (string, error)
}

// ArtifactDownloader retrieves a generated video to local storage.
type ArtifactDownloader interface {
	Download(ctx context.Context, artifactURL, taskID string) (string, error)
}

// ImageResolver turns a local image file into a public URL.
type ImageResolver interface {
	Resolve(ctx context.Context, path string) (imageref.Info, error)
}

// Orchestrator composes submission, polling and retrieval into one call per
// generation mode. It never returns an error; every failure becomes a Result
// with a populated message.
type Orchestrator struct {
	client        wanx.Client
	poller        TaskPoller
	downloader    ArtifactDownloader
	images        ImageResolver
	logger        *slog.Logger
	now           func() time.Time
	apiConfigured bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAPIConfigured records whether an API key is present, for status
// reporting only.
func WithAPIConfigured(ok bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.apiConfigured = ok
	}
}

// NewOrchestrator wires the orchestrator's collaborators together.
func NewOrchestrator(client wanx.Client, poller TaskPoller, downloader ArtifactDownloader, images ImageResolver, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		client:        client,
		poller:        poller,
		downloader:    downloader,
		images:        images,
		logger:        slog.Default(),
		now:           time.Now,
		apiConfigured: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateText runs a text-to-video generation end to end.
func (o *Orchestrator) GenerateText(ctx context.Context, req TextRequest) (result *Result) {
	if req.Style == "" {
		req.Style = DefaultStyle
	}
	if req.AspectRatio == "" {
		req.AspectRatio = DefaultAspectRatio
	}
	if req.Model == "" {
		req.Model = registry.DefaultModel(registry.ModeTextToVideo)
	}

	start := o.now()
	defer o.recoverInto(&result, registry.ModeTextToVideo, req.Model, start)

	if err := req.Validate(); err != nil {
		return o.failure(registry.ModeTextToVideo, req.Model, start, "", err.Error())
	}

	model, err := registry.Lookup(req.Model)
	if err != nil {
		return o.failure(registry.ModeTextToVideo, req.Model, start, "", err.Error())
	}

	prompt := strings.TrimSpace(req.Prompt)
	submit := wanx.SubmitRequest{
		Model: req.Model,
		Input: wanx.Input{Prompt: prompt},
		Parameters: wanx.Parameters{
			Size: registry.SizeFor(req.AspectRatio, model),
		},
	}
	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		submit.Parameters.NegativePrompt = negative
	}
	if req.Seed != nil {
		submit.Parameters.Seed = req.Seed
	}

	metadata := map[string]any{
		"prompt":       prompt,
		"style":        req.Style,
		"aspect_ratio": req.AspectRatio,
	}

	return o.run(ctx, registry.ModeTextToVideo, req.Model, start, submit, metadata)
}

// GenerateImage runs an image-to-video generation end to end. The image file
// is validated and resolved to a public URL before any job is submitted.
func (o *Orchestrator) GenerateImage(ctx context.Context, req ImageRequest) (result *Result) {
	if req.Style == "" {
		req.Style = DefaultStyle
	}
	if req.Model == "" {
		req.Model = registry.DefaultModel(registry.ModeImageToVideo)
	}

	start := o.now()
	defer o.recoverInto(&result, registry.ModeImageToVideo, req.Model, start)

	if err := req.Validate(); err != nil {
		return o.failure(registry.ModeImageToVideo, req.Model, start, "", err.Error())
	}

	model, err := registry.Lookup(req.Model)
	if err != nil {
		return o.failure(registry.ModeImageToVideo, req.Model, start, "", err.Error())
	}

	info, err := o.images.Resolve(ctx, req.ImagePath)
	if err != nil {
		return o.failure(registry.ModeImageToVideo, req.Model, start, "",
			fmt.Sprintf("image processing failed: %v", err))
	}

	promptExtend := true
	submit := wanx.SubmitRequest{
		Model: req.Model,
		Input: wanx.Input{ImgURL: info.URL},
		Parameters: wanx.Parameters{
			Resolution:   string(model.BestResolution()),
			PromptExtend: &promptExtend,
		},
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		submit.Input.Prompt = prompt
	}

	metadata := map[string]any{
		"prompt": strings.TrimSpace(req.Prompt),
		"style":  req.Style,
		"image": map[string]any{
			"url":         info.URL,
			"format":      info.Format,
			"dimensions":  fmt.Sprintf("%dx%d", info.Width, info.Height),
			"size_bytes":  info.SizeBytes,
			"placeholder": info.Placeholder,
		},
	}

	return o.run(ctx, registry.ModeImageToVideo, req.Model, start, submit, metadata)
}

// GenerateKeyframe runs a keyframe-to-video generation end to end, producing
// a video transitioning from the start frame to the end frame.
func (o *Orchestrator) GenerateKeyframe(ctx context.Context, req KeyframeRequest) (result *Result) {
	if req.Style == "" {
		req.Style = DefaultStyle
	}
	if req.Model == "" {
		req.Model = registry.DefaultModel(registry.ModeKeyframeToVideo)
	}

	start := o.now()
	defer o.recoverInto(&result, registry.ModeKeyframeToVideo, req.Model, start)

	if err := req.Validate(); err != nil {
		return o.failure(registry.ModeKeyframeToVideo, req.Model, start, "", err.Error())
	}

	startInfo, err := o.images.Resolve(ctx, req.StartImagePath)
	if err != nil {
		return o.failure(registry.ModeKeyframeToVideo, req.Model, start, "",
			fmt.Sprintf("start frame processing failed: %v", err))
	}

	endInfo, err := o.images.Resolve(ctx, req.EndImagePath)
	if err != nil {
		return o.failure(registry.ModeKeyframeToVideo, req.Model, start, "",
			fmt.Sprintf("end frame processing failed: %v", err))
	}

	promptExtend := true
	submit := wanx.SubmitRequest{
		Model: req.Model,
		Input: wanx.Input{
			FirstFrameURL: startInfo.URL,
			LastFrameURL:  endInfo.URL,
		},
		Parameters: wanx.Parameters{
			// Keyframe models only run at 720P.
			Resolution:   string(registry.Res720P),
			PromptExtend: &promptExtend,
		},
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		submit.Input.Prompt = prompt
	}

	metadata := map[string]any{
		"prompt":          strings.TrimSpace(req.Prompt),
		"style":           req.Style,
		"first_frame_url": startInfo.URL,
		"last_frame_url":  endInfo.URL,
	}

	return o.run(ctx, registry.ModeKeyframeToVideo, req.Model, start, submit, metadata)
}

// ServiceStatus reports the orchestrator's configuration for health checks.
func (o *Orchestrator) ServiceStatus() ServiceStatus {
	status := ServiceStatus{
		APIConfigured: o.apiConfigured,
		Modes:         make(map[registry.Mode]ModeStatus, len(modeConfigs)),
		Styles:        Styles,
		AspectRatios:  AspectRatios,
	}
	for mode, cfg := range modeConfigs {
		status.Modes[mode] = ModeStatus{
			Endpoint:     cfg.ServicePath,
			PollInterval: cfg.PollInterval,
			PollDeadline: cfg.PollDeadline,
			Models:       registry.ModelsForMode(mode),
			DefaultModel: registry.DefaultModel(mode),
		}
	}
	return status
}

// run submits the request, waits for completion and retrieves the artifact.
// Download failure after a successful generation is not fatal; the remote
// URL is still returned.
func (o *Orchestrator) run(ctx context.Context, mode registry.Mode, modelID string, start time.Time, submit wanx.SubmitRequest, metadata map[string]any) *Result {
	cfg := ConfigFor(mode)

	o.logger.Info("submitting generation task",
		slog.String("mode", string(mode)),
		slog.String("model", modelID),
	)

	taskID, err := o.client.SubmitTask(ctx, cfg.ServicePath, submit)
	if err != nil {
		o.logger.Error("task submission failed",
			slog.String("mode", string(mode)),
			slog.String("error", err.Error()),
		)
		return o.failure(mode, modelID, start, "", FriendlyMessage(err))
	}

	url, err := o.poller.Poll(ctx, taskID, cfg.PollInterval, cfg.PollDeadline)
	if err != nil {
		return o.failure(mode, modelID, start, taskID, "Video generation failed or timed out")
	}

	localPath, err := o.downloader.Download(ctx, url, taskID)
	if err != nil {
		o.logger.Warn("local download failed, returning remote URL only",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		localPath = ""
	}

	elapsed := o.now().Sub(start)
	o.logger.Info("generation completed",
		slog.String("mode", string(mode)),
		slog.String("task_id", taskID),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		Success:        true,
		VideoURL:       url,
		LocalVideoPath: localPath,
		TaskID:         taskID,
		GenerationTime: elapsed,
		Mode:           mode,
		Model:          modelID,
		InputMetadata:  metadata,
	}
}

func (o *Orchestrator) failure(mode registry.Mode, modelID string, start time.Time, taskID, message string) *Result {
	return &Result{
		Success:        false,
		ErrorMessage:   message,
		TaskID:         taskID,
		GenerationTime: o.now().Sub(start),
		Mode:           mode,
		Model:          modelID,
	}
}

// recoverInto converts a panic anywhere in the generation flow into a failed
// Result so the orchestrator boundary never raises.
func (o *Orchestrator) recoverInto(result **Result, mode registry.Mode, modelID string, start time.Time) {
	if r := recover(); r != nil {
		o.logger.Error("panic during generation",
			slog.String("mode", string(mode)),
			slog.Any("panic", r),
		)
		*result = o.failure(mode, modelID, start, "",
			fmt.Sprintf("Generation failed unexpectedly: %v", r))
	}
}
