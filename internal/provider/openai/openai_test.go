package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

type capturedRequest struct {
	Messages  []provider.Message `json:"messages"`
	Model     string             `json:"model"`
	Stream    bool               `json:"stream"`
	MaxTokens int                `json:"max_tokens"`
}

func writeChunk(w http.ResponseWriter, content string) {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"delta": map[string]string{"content": content}},
		},
	})
	fmt.Fprintf(w, "data: %s\n\n", string(data))
	w.(http.Flusher).Flush()
}

func TestStreamChat_Mock(t *testing.T) {
	var captured capturedRequest
	var authHeader, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Hello", " from", " OpenAI", "!"} {
			writeChunk(w, chunk)
		}
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := New("test-key", server.URL)

	stream, err := p.StreamChat(context.Background(), []provider.Message{
		{Role: provider.RoleSystem, Content: "You write ad copy."},
		{Role: provider.RoleUser, Content: "hi"},
	}, "")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	var content string
	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		content += frag
	}

	if content != "Hello from OpenAI!" {
		t.Errorf("Expected 'Hello from OpenAI!', got %s", content)
	}
	if path != "/chat/completions" {
		t.Errorf("Expected /chat/completions, got %s", path)
	}
	if authHeader != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %s", authHeader)
	}
	if captured.Model != provider.DefaultModel {
		t.Errorf("Expected default model %s, got %s", provider.DefaultModel, captured.Model)
	}
	if !captured.Stream || captured.MaxTokens != 2000 {
		t.Errorf("Expected stream=true max_tokens=2000, got %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != provider.RoleSystem {
		t.Errorf("Expected messages forwarded in order, got %+v", captured.Messages)
	}
}

func TestStreamChat_ExplicitModel(t *testing.T) {
	var captured capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := New("k", server.URL).StreamChat(context.Background(), []provider.Message{{Role: provider.RoleUser, Content: "hi"}}, "gpt-4o")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected immediate io.EOF, got %v", err)
	}
	if captured.Model != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", captured.Model)
	}
}

func TestStreamChat_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	_, err := New("k", server.URL).StreamChat(context.Background(), []provider.Message{{Role: provider.RoleUser, Content: "hi"}}, "")
	var upErr *provider.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", upErr.StatusCode)
	}
	if upErr.Provider != provider.OpenAI {
		t.Errorf("Expected provider openai, got %s", upErr.Provider)
	}
	if !strings.Contains(upErr.Body, "quota exceeded") {
		t.Errorf("Expected raw body in error, got %s", upErr.Body)
	}
}

func TestStreamChat_SkipsMalformedLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "before")
		fmt.Fprintf(w, "data: not-json\n\n")
		writeChunk(w, " after")
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := New("k", server.URL).StreamChat(context.Background(), []provider.Message{{Role: provider.RoleUser, Content: "hi"}}, "")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer stream.Close()

	var frags []string
	for {
		frag, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("Expected io.EOF, got %v", err)
			}
			break
		}
		frags = append(frags, frag)
	}
	if strings.Join(frags, "|") != "before| after" {
		t.Errorf("Expected [before, after], got %q", frags)
	}
}

func TestStreamChat_CloseStopsBlockedRead(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "first")
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := New("k", server.URL).StreamChat(ctx, []provider.Message{{Role: provider.RoleUser, Content: "hi"}}, "")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	if frag, err := stream.Next(); err != nil || frag != "first" {
		t.Fatalf("Expected first fragment, got %q, %v", frag, err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	_ = stream.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected an error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestName(t *testing.T) {
	p := New("key", "")
	if p.Name() != provider.OpenAI {
		t.Errorf("Expected 'openai', got %s", p.Name())
	}
}

func TestCountTokens(t *testing.T) {
	var counter provider.TokenCounter = New("key", "")
	got := counter.CountTokens("Write a headline for running shoes")
	if got.Prompt != 9 || got.Completion != 0 {
		t.Errorf("Expected {9 0}, got %+v", got)
	}
}
