package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteWithoutKeyReturnsPlaceholder(t *testing.T) {
	c := NewClient("http://unused.invalid", "", "gpt-3.5-turbo", time.Second)

	got, err := c.Complete(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != notConfiguredText {
		t.Fatalf("got %q, want placeholder", got)
	}
}

func TestCompleteSendsChatPayload(t *testing.T) {
	var captured chatRequest
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  A summary.\n"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-3.5-turbo", time.Second)
	got, err := c.Complete(context.Background(), "You summarize.", "Summarize this.")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "A summary." {
		t.Fatalf("got %q, want trimmed completion", got)
	}
	if authHeader != "Bearer test-key" {
		t.Fatalf("authorization header = %q", authHeader)
	}
	if captured.Temperature != 0.7 || captured.MaxTokens != 500 {
		t.Fatalf("sampling params = %v/%v", captured.Temperature, captured.MaxTokens)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", captured.Messages)
	}
}

func TestCompleteSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "quota exhausted"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-3.5-turbo", time.Second)
	if _, err := c.Complete(context.Background(), "", "prompt"); err == nil {
		t.Fatal("expected provider error")
	}
}
