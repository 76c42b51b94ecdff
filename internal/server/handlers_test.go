package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wan-video/wan-gateway/internal/cache"
	"github.com/wan-video/wan-gateway/internal/generate"
	"github.com/wan-video/wan-gateway/internal/registry"
	"github.com/wan-video/wan-gateway/internal/storage"
)

// fakeGenerator returns scripted results and records what it was asked.
type fakeGenerator struct {
	result *generate.Result

	textCalls     int
	imageCalls    int
	keyframeCalls int

	lastText     generate.TextRequest
	lastImage    generate.ImageRequest
	lastKeyframe generate.KeyframeRequest
}

func (f *fakeGenerator) GenerateText(_ context.Context, req generate.TextRequest) *generate.Result {
	f.textCalls++
	f.lastText = req
	return f.result
}

func (f *fakeGenerator) GenerateImage(_ context.Context, req generate.ImageRequest) *generate.Result {
	f.imageCalls++
	f.lastImage = req
	return f.result
}

func (f *fakeGenerator) GenerateKeyframe(_ context.Context, req generate.KeyframeRequest) *generate.Result {
	f.keyframeCalls++
	f.lastKeyframe = req
	return f.result
}

func (f *fakeGenerator) ServiceStatus() generate.ServiceStatus {
	return generate.ServiceStatus{
		APIConfigured: true,
		Modes: map[registry.Mode]generate.ModeStatus{
			registry.ModeTextToVideo: {
				Endpoint:     "services/aigc/video-generation/video-synthesis",
				PollInterval: 2 * time.Second,
				PollDeadline: 5 * time.Minute,
				Models:       []string{"wan2.2-t2v-plus"},
				DefaultModel: "wan2.2-t2v-plus",
			},
		},
		Styles:       generate.Styles,
		AspectRatios: generate.AspectRatios,
	}
}

func successResult() *generate.Result {
	return &generate.Result{
		Success:        true,
		VideoURL:       "https://cdn.example.com/out.mp4",
		LocalVideoPath: "/tmp/video_task-1_1700000000.mp4",
		TaskID:         "task-1",
		GenerationTime: 42 * time.Second,
		Mode:           registry.ModeTextToVideo,
		Model:          "wan2.2-t2v-plus",
	}
}

type handlersFixture struct {
	gen      *fakeGenerator
	handlers *Handlers
	router   http.Handler
}

func newHandlersFixture(t *testing.T, gen *fakeGenerator) *handlersFixture {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	results, err := cache.New(4)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(gen, results, store, logger)
	return &handlersFixture{
		gen:      gen,
		handlers: h,
		router:   NewRouter(h, logger, DefaultConfig()),
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeGeneration(t *testing.T, rec *httptest.ResponseRecorder) GenerationResponse {
	t.Helper()
	var resp GenerationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatus(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.APIConfigured)
	assert.Equal(t, generate.Styles, resp.Styles)

	text, ok := resp.Modes["text_to_video"]
	require.True(t, ok)
	assert.Equal(t, 2.0, text.PollIntervalSeconds)
	assert.Equal(t, 300.0, text.PollDeadlineSeconds)
	assert.Equal(t, "wan2.2-t2v-plus", text.DefaultModel)
}

func TestGenerateText_Success(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	rec := postJSON(t, f.router, "/generate/text", TextGenerationRequest{
		Prompt:      "A   cat\tplaying piano",
		Style:       "Cinematic",
		AspectRatio: "1:1",
		Model:       "wan2.2-t2v-plus",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeGeneration(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://cdn.example.com/out.mp4", resp.VideoURL)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, 42.0, resp.GenerationTimeSeconds)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.Cached)

	// Prompt is sanitized before reaching the orchestrator.
	assert.Equal(t, 1, f.gen.textCalls)
	assert.Equal(t, "A cat playing piano", f.gen.lastText.Prompt)
	assert.Equal(t, "Cinematic", f.gen.lastText.Style)
	assert.Equal(t, "1:1", f.gen.lastText.AspectRatio)
}

func TestGenerateText_NonASCIIPromptSurvivesSanitization(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	rec := postJSON(t, f.router, "/generate/text", TextGenerationRequest{
		Prompt: "一只猫在弹钢琴",
		Model:  "wan2.2-t2v-plus",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.gen.textCalls)
	assert.Equal(t, "一只猫在弹钢琴", f.gen.lastText.Prompt)
}

func TestGenerateText_InvalidJSON(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	req := httptest.NewRequest(http.MethodPost, "/generate/text", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_JSON")
	assert.Zero(t, f.gen.textCalls)
}

func TestGenerateText_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  TextGenerationRequest
	}{
		{"missing prompt", TextGenerationRequest{Style: "Cinematic"}},
		{"prompt too long", TextGenerationRequest{Prompt: strings.Repeat("a", 1001)}},
		{"unknown style", TextGenerationRequest{Prompt: "a cat", Style: "Vaporwave"}},
		{"unknown aspect ratio", TextGenerationRequest{Prompt: "a cat", AspectRatio: "4:3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

			rec := postJSON(t, f.router, "/generate/text", tt.req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
			assert.Zero(t, f.gen.textCalls)
		})
	}
}

func TestGenerateText_CachedResultIsServed(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	body := TextGenerationRequest{Prompt: "a cat playing piano", Style: "Anime", AspectRatio: "16:9"}

	first := decodeGeneration(t, postJSON(t, f.router, "/generate/text", body))
	require.True(t, first.Success)
	require.False(t, first.Cached)

	second := decodeGeneration(t, postJSON(t, f.router, "/generate/text", body))
	assert.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, 1, f.gen.textCalls, "cache hit must not call the orchestrator")
}

func TestGenerateText_FailuresAreNotCached(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: &generate.Result{
		Success:      false,
		ErrorMessage: "Video generation failed or timed out",
		Mode:         registry.ModeTextToVideo,
	}})

	body := TextGenerationRequest{Prompt: "a cat"}

	first := decodeGeneration(t, postJSON(t, f.router, "/generate/text", body))
	assert.False(t, first.Success)
	assert.Equal(t, "Video generation failed or timed out", first.ErrorMessage)

	second := decodeGeneration(t, postJSON(t, f.router, "/generate/text", body))
	assert.False(t, second.Cached)
	assert.Equal(t, 2, f.gen.textCalls, "failed results must be retried")
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	wr := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, wr.WriteField(name, value))
	}
	for name, content := range files {
		fw, err := wr.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, wr.Close())
	return &buf, wr.FormDataContentType()
}

func TestGenerateImage_Success(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	body, contentType := multipartBody(t,
		map[string]string{"prompt": "make it  move", "style": "Realistic", "model": "wan2.2-i2v-plus"},
		map[string][]byte{"image": []byte("fake image bytes")},
	)

	req := httptest.NewRequest(http.MethodPost, "/generate/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeGeneration(t, rec)
	assert.True(t, resp.Success)

	assert.Equal(t, 1, f.gen.imageCalls)
	assert.NotEmpty(t, f.gen.lastImage.ImagePath)
	assert.Equal(t, "make it move", f.gen.lastImage.Prompt)
	assert.Equal(t, "Realistic", f.gen.lastImage.Style)
	assert.Equal(t, "wan2.2-i2v-plus", f.gen.lastImage.Model)
}

func TestGenerateImage_MissingFile(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	body, contentType := multipartBody(t, map[string]string{"prompt": "move"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_IMAGE")
	assert.Zero(t, f.gen.imageCalls)
}

func TestGenerateKeyframe_Success(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	body, contentType := multipartBody(t,
		map[string]string{"prompt": "smooth morph"},
		map[string][]byte{
			"start_frame": []byte("start frame bytes"),
			"end_frame":   []byte("end frame bytes"),
		},
	)

	req := httptest.NewRequest(http.MethodPost, "/generate/keyframe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.gen.keyframeCalls)
	assert.NotEmpty(t, f.gen.lastKeyframe.StartImagePath)
	assert.NotEmpty(t, f.gen.lastKeyframe.EndImagePath)
	assert.NotEqual(t, f.gen.lastKeyframe.StartImagePath, f.gen.lastKeyframe.EndImagePath)
}

func TestGenerateKeyframe_MissingEndFrame(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	body, contentType := multipartBody(t,
		nil,
		map[string][]byte{"start_frame": []byte("start frame bytes")},
	)

	req := httptest.NewRequest(http.MethodPost, "/generate/keyframe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_END_FRAME")
	assert.Zero(t, f.gen.keyframeCalls)
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	req := httptest.NewRequest(http.MethodOptions, "/generate/text", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://studio.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	handler := ChainMiddleware(RecoveryMiddleware(logger))(mux)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRouter_BodySizeLimit(t *testing.T) {
	f := newHandlersFixture(t, &fakeGenerator{result: successResult()})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(f.handlers, logger, Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   16,
	})

	body := map[string]string{"prompt": "A prompt comfortably over sixteen bytes"}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate/text", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.gen.textCalls)
}
