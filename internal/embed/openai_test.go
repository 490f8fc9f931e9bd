// ABOUTME: Tests for the OpenAI embedder against a fake API server
// ABOUTME: Covers the describe-then-embed flow, retries and configuration
package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/config"
)

type fakeOpenAI struct {
	chatCalls      atomic.Int32
	embeddingCalls atomic.Int32
	failChat       int32 // number of leading chat calls answered with 500
	chatStatus     int   // when set, every chat call returns this status
	lastImageURL   atomic.Value
	lastInput      atomic.Value
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			n := f.chatCalls.Add(1)
			if f.chatStatus != 0 {
				w.WriteHeader(f.chatStatus)
				_, _ = fmt.Fprint(w, `{"error":{"message":"rejected","type":"invalid_request_error"}}`)
				return
			}
			if n <= f.failChat {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
				return
			}

			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Content []struct {
						Type     string `json:"type"`
						ImageURL struct {
							URL string `json:"url"`
						} `json:"image_url"`
					} `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding chat request: %v", err)
			}
			for _, m := range req.Messages {
				for _, part := range m.Content {
					if part.Type == "image_url" {
						f.lastImageURL.Store(part.ImageURL.URL)
					}
				}
			}
			_, _ = fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
				"choices":[{"index":0,"message":{"role":"assistant","content":"  A red square on canvas. "},"finish_reason":"stop"}]}`)

		case "/v1/embeddings":
			f.embeddingCalls.Add(1)
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding embedding request: %v", err)
			}
			if len(req.Input) > 0 {
				f.lastInput.Store(req.Input[0])
			}
			_, _ = fmt.Fprint(w, `{"object":"list","model":"text-embedding-3-small",
				"data":[{"object":"embedding","index":0,"embedding":[0.25,0.5,-0.75]}]}`)

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestOpenAI(t *testing.T, fake *fakeOpenAI) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	e, err := NewOpenAIEmbedder(&OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    5 * time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder failed: %v", err)
	}
	return e
}

func TestOpenAIEmbedderDescribesThenEmbeds(t *testing.T) {
	fake := &fakeOpenAI{}
	e := newTestOpenAI(t, fake)

	vec, err := e.Embed(context.Background(), encodePNG(t, solid(4, 4, red)))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	want := []float64{0.25, 0.5, -0.75}
	if len(vec) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(vec))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("value %d: expected %f, got %f", i, want[i], vec[i])
		}
	}

	imageURL, _ := fake.lastImageURL.Load().(string)
	if !strings.HasPrefix(imageURL, "data:image/png;base64,") {
		t.Errorf("expected PNG data URL, got %.40q", imageURL)
	}
	if input, _ := fake.lastInput.Load().(string); input != "A red square on canvas." {
		t.Errorf("expected trimmed description as embedding input, got %q", input)
	}
}

func TestOpenAIEmbedderRetriesServerErrors(t *testing.T) {
	fake := &fakeOpenAI{failChat: 2}
	e := newTestOpenAI(t, fake)

	if _, err := e.Embed(context.Background(), encodePNG(t, solid(4, 4, red))); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if got := fake.chatCalls.Load(); got != 3 {
		t.Errorf("expected 3 chat calls, got %d", got)
	}
}

func TestOpenAIEmbedderDoesNotRetryClientErrors(t *testing.T) {
	fake := &fakeOpenAI{chatStatus: http.StatusBadRequest}
	e := newTestOpenAI(t, fake)

	_, err := e.Embed(context.Background(), encodePNG(t, solid(4, 4, red)))
	if err == nil {
		t.Fatal("expected error for rejected request")
	}
	if got := fake.chatCalls.Load(); got != 1 {
		t.Errorf("expected a single chat call, got %d", got)
	}
	if fake.embeddingCalls.Load() != 0 {
		t.Error("embedding endpoint should not be called after a failed description")
	}
}

func TestOpenAIEmbedderRejectsNonImages(t *testing.T) {
	fake := &fakeOpenAI{}
	e := newTestOpenAI(t, fake)

	_, err := e.Embed(context.Background(), []byte("plain text, not pixels"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
	if fake.chatCalls.Load() != 0 {
		t.Error("API should not be called for non-image input")
	}
}

func TestOpenAIEmbedderDefaults(t *testing.T) {
	if _, err := NewOpenAIEmbedder(&OpenAIConfig{}, zerolog.Nop()); err == nil {
		t.Error("expected error without API key")
	}

	e, err := NewOpenAIEmbedder(&OpenAIConfig{APIKey: "k"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if e.Model() != "openai:gpt-4o-mini+text-embedding-3-small" {
		t.Errorf("unexpected model %q", e.Model())
	}
	if e.Dimension() != 1536 {
		t.Errorf("expected dimension 1536, got %d", e.Dimension())
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    string
		wantErr bool
	}{
		{"histogram", config.Config{Embedder: config.EmbedderHistogram}, "histogram-rgb444-q2", false},
		{"empty defaults to histogram", config.Config{}, "histogram-rgb444-q2", false},
		{"openai", config.Config{Embedder: config.EmbedderOpenAI, OpenAIKey: "k", VisionModel: "gpt-4o", EmbeddingModel: "text-embedding-3-large"}, "openai:gpt-4o+text-embedding-3-large", false},
		{"openai without key", config.Config{Embedder: config.EmbedderOpenAI}, "", true},
		{"unknown", config.Config{Embedder: "clip"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(&tt.cfg, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && e.Model() != tt.want {
				t.Errorf("expected model %q, got %q", tt.want, e.Model())
			}
		})
	}
}
