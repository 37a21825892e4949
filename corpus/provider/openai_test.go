package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization=%q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			return
		}
		resp := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "deepseek-chat",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatClient_Complete(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := chatServer(t, http.StatusOK, `{"meta_info":{"global_scene_type":"Other"},"interaction_units":[]}`, &req)

	c, err := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}
	got, err := c.Complete(context.Background(), "system prompt", "user text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.PromptTokens != 12 || got.CompletionTokens != 7 {
		t.Fatalf("usage=%d/%d", got.PromptTokens, got.CompletionTokens)
	}
	if !strings.Contains(got.Content, "interaction_units") {
		t.Fatalf("content=%q", got.Content)
	}

	if req["model"] != DefaultModel {
		t.Fatalf("model=%v", req["model"])
	}
	if req["temperature"] != DefaultTemperature {
		t.Fatalf("temperature=%v", req["temperature"])
	}
	rf, _ := req["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("response_format=%v", req["response_format"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", msgs)
	}
}

func TestChatClient_ZeroTemperatureIsSent(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := chatServer(t, http.StatusOK, `{"meta_info":{"global_scene_type":"Other"},"interaction_units":[]}`, &req)

	zero := 0.0
	c, err := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Temperature: &zero})
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}
	if _, err := c.Complete(context.Background(), "system prompt", "user text"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got, ok := req["temperature"].(float64); !ok || got != 0 {
		t.Fatalf("temperature=%v, want 0", req["temperature"])
	}
}

func TestChatClient_EmptyContent(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, "", nil)
	c, err := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}
	got, err := c.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("err=%v, want ErrEmptyCompletion", err)
	}
	if got.PromptTokens != 12 {
		t.Fatalf("usage should still be reported: %+v", got)
	}
}

func TestChatClient_AuthErrorIsNotTransient(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusUnauthorized, "", nil)
	c, err := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewChatClient: %v", err)
	}
	_, err = c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatalf("expected error")
	}
	if Transient(err) {
		t.Fatalf("401 should not be transient: %v", err)
	}
}

func TestNewChatClient_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewChatClient(ChatConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}
