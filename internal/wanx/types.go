// Package wanx provides an HTTP client for the DashScope asynchronous
// video-generation API (Wanxiang model family).
package wanx

// Status represents the status of a generation task as reported by the
// provider's tasks endpoint.
type Status string

// Task statuses aligned with the DashScope task API.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
	StatusUnknown   Status = "UNKNOWN"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// SubmitRequest is the request body for a video-synthesis submission.
// Exactly one input shape is populated depending on the generation mode.
type SubmitRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Input carries the mode-specific generation inputs. Text mode sets Prompt
// only; image mode sets ImgURL; keyframe mode sets both frame URLs. Image
// inputs are always public URLs, never inline binary.
type Input struct {
	Prompt        string `json:"prompt,omitempty"`
	ImgURL        string `json:"img_url,omitempty"`
	FirstFrameURL string `json:"first_frame_url,omitempty"`
	LastFrameURL  string `json:"last_frame_url,omitempty"`
}

// Parameters carries the generation tuning knobs. Size ("1920*1080") is used
// by text models; Resolution ("720P") by image and keyframe models.
type Parameters struct {
	Size           string `json:"size,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	PromptExtend   *bool  `json:"prompt_extend,omitempty"`
}

// submitResponse is the provider response to a task submission.
type submitResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// taskResponse is the provider response from the tasks/{id} endpoint.
// Successful tasks carry the artifact URL either directly in video_url or as
// the first element of results. Both shapes occur in the wild and must be
// handled.
type taskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		VideoURL   string `json:"video_url,omitempty"`
		Results    []struct {
			URL string `json:"url,omitempty"`
		} `json:"results,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// apiError is the provider error body, fields probed in priority order when
// extracting a human-readable message.
type apiError struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Task contains the normalized result of querying a task's status.
type Task struct {
	// Status is the mapped task status.
	Status Status
	// RawStatus preserves the provider's literal status string for statuses
	// outside the known set.
	RawStatus string
	// VideoURL is the artifact URL (only set when Status is StatusSucceeded).
	VideoURL string
	// Detail is the provider failure detail (only set when Status is StatusFailed).
	Detail string
}
