package wanx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for wanx client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// DASHSCOPE_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("wanx: API key is required")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("wanx: task ID is required")
	// ErrNoTaskIDReturned is returned when the submit response contains no task ID.
	ErrNoTaskIDReturned = errors.New("wanx: submit failed: no task ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("wanx: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("wanx: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("wanx: request failed")
)

// Client defines the interface for interacting with the DashScope video API.
type Client interface {
	// SubmitTask posts an asynchronous generation task to the given service
	// path and returns the provider-assigned task ID.
	SubmitTask(ctx context.Context, servicePath string, req SubmitRequest) (taskID string, err error)

	// GetTask queries the status of a task and returns the normalized result.
	GetTask(ctx context.Context, taskID string) (Task, error)
}

// HTTPClient is the HTTP implementation of the wanx Client interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the DashScope API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new DashScope HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable DASHSCOPE_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://dashscope.aliyuncs.com/api/v1",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// SubmitTask posts an asynchronous generation task and returns its ID.
// The request carries the X-DashScope-Async header so the provider accepts
// the job and returns immediately instead of blocking on generation.
func (c *HTTPClient) SubmitTask(ctx context.Context, servicePath string, req SubmitRequest) (string, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("wanx: marshal request: %w", err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(servicePath, "/")

	var resp submitResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Output.TaskID == "" {
		if resp.Message != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Code, resp.Message)
		}
		return "", ErrNoTaskIDReturned
	}

	return resp.Output.TaskID, nil
}

// GetTask queries the status of a task and returns the normalized result.
func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (Task, error) {
	if taskID == "" {
		return Task{}, ErrTaskIDRequired
	}

	url := fmt.Sprintf("%s/tasks/%s", c.baseURL, taskID)

	var resp taskResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return Task{}, err
	}

	var mapped Status
	switch resp.Output.TaskStatus {
	case "PENDING":
		mapped = StatusPending
	case "RUNNING":
		mapped = StatusRunning
	case "SUCCEEDED":
		mapped = StatusSucceeded
	case "FAILED":
		mapped = StatusFailed
	case "CANCELED", "CANCELLED":
		mapped = StatusCanceled
	default:
		mapped = StatusUnknown
	}

	task := Task{
		Status:    mapped,
		RawStatus: resp.Output.TaskStatus,
	}

	switch task.Status {
	case StatusSucceeded:
		task.VideoURL = extractVideoURL(resp)
	case StatusFailed:
		if resp.Output.Message != "" {
			task.Detail = resp.Output.Message
		} else {
			task.Detail = resp.Output.Code
		}
	}

	return task, nil
}

// extractVideoURL probes the two success response shapes in order: the direct
// video_url field first, then the first element of the results list. Both
// shapes are produced by current provider deployments.
func extractVideoURL(resp taskResponse) string {
	if resp.Output.VideoURL != "" {
		return resp.Output.VideoURL
	}
	if len(resp.Output.Results) > 0 {
		return resp.Output.Results[0].URL
	}
	return ""
}

// extractErrorMessage pulls a human-readable message out of an error body.
// Fields are probed in priority order: message, error, code+message pair,
// then the raw body.
func extractErrorMessage(statusCode int, body []byte) string {
	var detail apiError
	if err := json.Unmarshal(body, &detail); err == nil {
		switch {
		case detail.Message != "" && detail.Code != "":
			return fmt.Sprintf("%s: %s", detail.Code, detail.Message)
		case detail.Message != "":
			return detail.Message
		case detail.Error != "":
			return detail.Error
		}
	}
	return fmt.Sprintf("API request failed with status %d: %s", statusCode, strings.TrimSpace(string(body)))
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("wanx: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("wanx: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("wanx: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("X-DashScope-Async", "enable")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("wanx: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("wanx: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, extractErrorMessage(resp.StatusCode, respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, extractErrorMessage(resp.StatusCode, respBody))}
		}
		// Other errors are not retryable
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, extractErrorMessage(resp.StatusCode, respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("wanx: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
