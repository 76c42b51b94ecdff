// Package registry holds the static catalog of generation models and the
// resolution mapping used to build provider payloads. The catalog is built
// once at startup and never mutated.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Mode identifies a generation mode.
type Mode string

// Supported generation modes.
const (
	ModeTextToVideo     Mode = "text_to_video"
	ModeImageToVideo    Mode = "image_to_video"
	ModeKeyframeToVideo Mode = "keyframe_to_video"
)

// IsValid returns true if the mode is one of the supported modes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeTextToVideo, ModeImageToVideo, ModeKeyframeToVideo:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the mode.
func (m Mode) Description() string {
	switch m {
	case ModeTextToVideo:
		return "Generate videos from text descriptions"
	case ModeImageToVideo:
		return "Generate videos from a single starting image"
	case ModeKeyframeToVideo:
		return "Generate videos from start and end frame images"
	default:
		return "Unknown mode"
	}
}

// Resolution is a quality tier supported by a model.
type Resolution string

// Resolution tiers, best first.
const (
	Res1080P Resolution = "1080P"
	Res720P  Resolution = "720P"
	Res480P  Resolution = "480P"
)

// Model describes one entry in the model catalog.
type Model struct {
	// ID is the provider model identifier.
	ID string
	// Name is the display name.
	Name string
	// Capability is the single generation mode this model serves.
	Capability Mode
	// Resolutions lists supported tiers ordered best to worst.
	Resolutions []Resolution
}

// BestResolution returns the highest supported tier.
// Falls back to 480P for a model with no declared tiers.
func (m Model) BestResolution() Resolution {
	for _, tier := range []Resolution{Res1080P, Res720P, Res480P} {
		for _, r := range m.Resolutions {
			if r == tier {
				return tier
			}
		}
	}
	return Res480P
}

// ErrUnknownModel is returned when a model ID is not in the catalog.
var ErrUnknownModel = errors.New("registry: unknown model")

// models is the immutable catalog, aligned with the provider's published
// model list.
var models = map[string]Model{
	"wan2.2-t2v-plus": {
		ID:          "wan2.2-t2v-plus",
		Name:        "Wanxiang 2.2 Pro",
		Capability:  ModeTextToVideo,
		Resolutions: []Resolution{Res1080P, Res480P},
	},
	"wanx2.1-t2v-turbo": {
		ID:          "wanx2.1-t2v-turbo",
		Name:        "Wanxiang 2.1 Turbo",
		Capability:  ModeTextToVideo,
		Resolutions: []Resolution{Res720P, Res480P},
	},
	"wanx2.1-t2v-plus": {
		ID:          "wanx2.1-t2v-plus",
		Name:        "Wanxiang 2.1 Pro",
		Capability:  ModeTextToVideo,
		Resolutions: []Resolution{Res720P},
	},
	"wan2.2-i2v-plus": {
		ID:          "wan2.2-i2v-plus",
		Name:        "Wanxiang 2.2 Image-to-Video Pro",
		Capability:  ModeImageToVideo,
		Resolutions: []Resolution{Res1080P, Res480P},
	},
	"wan2.2-i2v-flash": {
		ID:          "wan2.2-i2v-flash",
		Name:        "Wanxiang 2.2 Image-to-Video Flash",
		Capability:  ModeImageToVideo,
		Resolutions: []Resolution{Res480P},
	},
	"wanx2.1-kf2v-plus": {
		ID:          "wanx2.1-kf2v-plus",
		Name:        "Wanxiang 2.1 Keyframe-to-Video Pro",
		Capability:  ModeKeyframeToVideo,
		Resolutions: []Resolution{Res720P},
	},
}

// Lookup returns the model for the given ID.
func Lookup(id string) (Model, error) {
	m, ok := models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// ModelsForMode returns the IDs of all models whose capability matches the
// mode, in a stable order.
func ModelsForMode(mode Mode) []string {
	order := []string{
		"wan2.2-t2v-plus", "wanx2.1-t2v-turbo", "wanx2.1-t2v-plus",
		"wan2.2-i2v-plus", "wan2.2-i2v-flash",
		"wanx2.1-kf2v-plus",
	}
	var ids []string
	for _, id := range order {
		if models[id].Capability == mode {
			ids = append(ids, id)
		}
	}
	return ids
}

// DefaultModel returns the preferred model for a mode.
func DefaultModel(mode Mode) string {
	switch mode {
	case ModeTextToVideo:
		return "wan2.2-t2v-plus"
	case ModeImageToVideo:
		return "wan2.2-i2v-plus"
	case ModeKeyframeToVideo:
		return "wanx2.1-kf2v-plus"
	default:
		return ""
	}
}

// ValidateModeAndModel checks that the model exists and its capability matches
// the mode. Returns a descriptive error on mismatch.
func ValidateModeAndModel(mode Mode, modelID string) error {
	if !mode.IsValid() {
		return fmt.Errorf("registry: unsupported generation mode: %s", mode)
	}
	m, err := Lookup(modelID)
	if err != nil {
		return err
	}
	if m.Capability != mode {
		return fmt.Errorf("registry: model %s is not available for %s mode, available models: %s",
			modelID, mode, strings.Join(ModelsForMode(mode), ", "))
	}
	return nil
}

// sizeByTier maps an aspect ratio to the provider "width*height" string for
// each resolution tier.
var sizeByTier = map[Resolution]map[string]string{
	Res1080P: {
		"16:9": "1920*1080",
		"1:1":  "1440*1440",
		"9:16": "1080*1920",
	},
	Res720P: {
		"16:9": "1280*720",
		"1:1":  "960*960",
		"9:16": "720*1280",
	},
	Res480P: {
		"16:9": "832*480",
		"1:1":  "624*624",
		"9:16": "480*832",
	},
}

// SizeFor maps an aspect ratio and the model's best tier to the provider size
// string. Unknown ratios fall back to the 16:9 entry so the result is always
// a valid size.
func SizeFor(aspectRatio string, m Model) string {
	tier := sizeByTier[m.BestResolution()]
	if size, ok := tier[aspectRatio]; ok {
		return size
	}
	return tier["16:9"]
}
