package generate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wan-video/wan-gateway/internal/registry"
)

// Static errors for request validation failures. These never reach the
// network; the orchestrator converts them into failed Results.
var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrPromptTooLong      = errors.New("prompt too long, maximum 1000 characters allowed")
	ErrInvalidStyle       = errors.New("invalid style")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrImageFileRequired  = errors.New("image file is required")
	ErrStartFrameRequired = errors.New("start frame image is required")
	ErrEndFrameRequired   = errors.New("end frame image is required")
)

// MaxPromptLength bounds user prompts across all modes, counted in runes.
const MaxPromptLength = 1000

// Defaults applied when the caller leaves a field empty.
const (
	DefaultStyle       = "<auto>"
	DefaultAspectRatio = "16:9"
)

// Styles lists the accepted style values. "<auto>" lets the provider pick.
var Styles = []string{
	"<auto>",
	"Cinematic",
	"Anime",
	"Realistic",
	"Abstract",
	"Documentary",
	"Commercial",
}

// AspectRatios lists the accepted aspect-ratio values.
var AspectRatios = []string{"16:9", "1:1", "9:16"}

// TextRequest describes a text-to-video generation call.
type TextRequest struct {
	Prompt         string
	Style          string
	AspectRatio    string
	Model          string
	NegativePrompt string
	Seed           *int64
}

// Validate checks the request against the accepted enumerations and limits.
func (r TextRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Prompt)) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !validStyle(r.Style) {
		return fmt.Errorf("%w: must be one of %s", ErrInvalidStyle, strings.Join(Styles, ", "))
	}
	if !validAspectRatio(r.AspectRatio) {
		return fmt.Errorf("%w: must be one of %s", ErrInvalidAspectRatio, strings.Join(AspectRatios, ", "))
	}
	return registry.ValidateModeAndModel(registry.ModeTextToVideo, r.Model)
}

// ImageRequest describes an image-to-video generation call. ImagePath points
// at a local file; the orchestrator resolves it to a public URL.
type ImageRequest struct {
	ImagePath string
	Prompt    string
	Style     string
	Model     string
}

// Validate checks the request shape. Image content validation happens later
// when the file is resolved to a public URL.
func (r ImageRequest) Validate() error {
	if r.ImagePath == "" {
		return ErrImageFileRequired
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Prompt)) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !validStyle(r.Style) {
		return fmt.Errorf("%w: must be one of %s", ErrInvalidStyle, strings.Join(Styles, ", "))
	}
	return registry.ValidateModeAndModel(registry.ModeImageToVideo, r.Model)
}

// KeyframeRequest describes a keyframe-to-video generation call producing a
// video that transitions between a start and an end frame.
type KeyframeRequest struct {
	StartImagePath string
	EndImagePath   string
	Prompt         string
	Style          string
	Model          string
}

// Validate checks the request shape.
func (r KeyframeRequest) Validate() error {
	if r.StartImagePath == "" {
		return ErrStartFrameRequired
	}
	if r.EndImagePath == "" {
		return ErrEndFrameRequired
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Prompt)) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !validStyle(r.Style) {
		return fmt.Errorf("%w: must be one of %s", ErrInvalidStyle, strings.Join(Styles, ", "))
	}
	return registry.ValidateModeAndModel(registry.ModeKeyframeToVideo, r.Model)
}

func validStyle(s string) bool {
	if s == "" {
		return true
	}
	for _, style := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

func validAspectRatio(r string) bool {
	if r == "" {
		return true
	}
	for _, ratio := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
