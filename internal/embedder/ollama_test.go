package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder_Embed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("expected path /api/embed, got %s", r.URL.Path)
		}

		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(server.URL, "nomic-embed-text", WithOllamaHTTPClient(server.Client()))

	result, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(result))
	}
	if emb.Dimension() != 3 {
		t.Errorf("expected dimension 3 after first call, got %d", emb.Dimension())
	}
}

func TestOllamaEmbedder_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1}},
		})
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(server.URL, "nomic-embed-text", WithOllamaHTTPClient(server.Client()))

	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestOllamaEmbedder_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model not found"))
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(server.URL, "missing-model", WithOllamaHTTPClient(server.Client()))

	if _, err := emb.Embed(context.Background(), []string{"test"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	emb := NewOllamaEmbedder("", "")

	if emb.baseURL != DefaultOllamaBaseURL {
		t.Errorf("expected default base URL, got %s", emb.baseURL)
	}
	if emb.model != DefaultOllamaModel {
		t.Errorf("expected default model, got %s", emb.model)
	}
}
