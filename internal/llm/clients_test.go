package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vruksh/agroqa/internal/llm"
)

// mockOllamaServer simulates the Ollama API endpoints used by the client.
func mockOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"response": "Sow wheat after the first rain.",
				"done":     true,
			})
		case "/api/embed":
			var req struct {
				Input interface{} `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)

			count := 1
			if arr, ok := req.Input.([]interface{}); ok {
				count = len(arr)
			}
			embeddings := make([][]float32, count)
			for i := range embeddings {
				embeddings[i] = []float32{float32(i) + 0.1, 0.2, 0.3}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"embeddings": embeddings,
			})
		case "/api/version":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"version": "0.5.0"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaClient_Complete(t *testing.T) {
	server := mockOllamaServer(t)
	defer server.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: server.URL, Model: "qwen2.5:7b"})

	got, err := client.Complete(context.Background(), "When should I sow wheat?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Sow wheat after the first rain." {
		t.Errorf("unexpected completion: %q", got)
	}
}

func TestOllamaClient_Embed(t *testing.T) {
	server := mockOllamaServer(t)
	defer server.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: server.URL, Model: "nomic-embed-text"})

	vec, err := client.Embed(context.Background(), "wheat sowing")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-dimensional vector, got %d", len(vec))
	}
}

func TestOllamaClient_EmbedBatch(t *testing.T) {
	server := mockOllamaServer(t)
	defer server.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: server.URL, Model: "nomic-embed-text"})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			t.Errorf("vector %d is empty", i)
		}
	}
}

func TestOllamaClient_EmbedBatchEmptyInput(t *testing.T) {
	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: "http://localhost:1", Model: "m"})

	vecs, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch must not error: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result for empty batch, got %v", vecs)
	}
}

func TestOllamaClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: server.URL, Model: "m"})

	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if _, err := client.Embed(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestOllamaClient_HealthCheck(t *testing.T) {
	server := mockOllamaServer(t)
	defer server.Close()

	client := llm.NewOllamaClient(llm.OllamaConfig{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

// TestOpenAIEmbeddingClient_BatchOrder verifies results are mapped back
// by index even when the API returns them out of order.
func TestOpenAIEmbeddingClient_BatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float64{1.0, 1.0}},
				{"index": 0, "embedding": []float64{0.5, 0.5}},
			},
		})
	}))
	defer server.Close()

	client := llm.NewOpenAIEmbeddingClient(llm.OpenAIEmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vecs[0][0] != 0.5 {
		t.Errorf("expected index-0 vector first, got %v", vecs[0])
	}
	if vecs[1][0] != 1.0 {
		t.Errorf("expected index-1 vector second, got %v", vecs[1])
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "" {
			t.Error("request is missing the model")
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "Mulch the beds to retain soil moisture."},
			},
		})
	}))
	defer server.Close()

	client := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})

	got, err := client.Complete(context.Background(), "How do I retain soil moisture?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Mulch the beds to retain soil moisture." {
		t.Errorf("unexpected completion: %q", got)
	}
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{},
		})
	}))
	defer server.Close()

	client := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "k", BaseURL: server.URL})

	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestAnthropicClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	client := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "k", BaseURL: server.URL})

	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Irrigate in the evening."}},
			},
		})
	}))
	defer server.Close()

	client := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})

	got, err := client.Complete(context.Background(), "when to irrigate?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Irrigate in the evening." {
		t.Errorf("unexpected completion: %q", got)
	}
}
