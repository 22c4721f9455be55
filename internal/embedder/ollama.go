package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
)

// OllamaEmbedder はOllama APIを使用するEmbedder実装
type OllamaEmbedder struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dim        int
	dimOnce    sync.Once
}

// OllamaOption はOllamaEmbedderのオプション
type OllamaOption func(*OllamaEmbedder)

// WithOllamaHTTPClient はHTTPクライアントを設定
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.httpClient = client
	}
}

// WithOllamaDim は既知の次元を設定
func WithOllamaDim(dim int) OllamaOption {
	return func(e *OllamaEmbedder) {
		e.dim = dim
	}
}

// NewOllamaEmbedder は新しいOllamaEmbedderを作成
func NewOllamaEmbedder(baseURL, model string, opts ...OllamaOption) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	e := &OllamaEmbedder{
		httpClient: http.DefaultClient,
		baseURL:    baseURL,
		model:      model,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ollamaEmbedRequest はOllama /api/embed リクエストの構造
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse はOllama /api/embed レスポンスの構造
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed はテキスト列を1回のAPI呼び出しで埋め込みベクトル列に変換する
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	reqJSON, err := json.Marshal(ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	url := e.baseURL + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var embResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if len(embResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrInvalidResponse, len(texts), len(embResp.Embeddings))
	}

	for _, vec := range embResp.Embeddings {
		if len(vec) == 0 {
			return nil, ErrEmptyEmbedding
		}
	}

	// 次元を更新（初回のみ、かつdimが未設定の場合）
	if e.dim == 0 {
		e.dimOnce.Do(func() {
			e.dim = len(embResp.Embeddings[0])
		})
	}

	return embResp.Embeddings, nil
}

// Dimension は次元を返す
func (e *OllamaEmbedder) Dimension() int {
	return e.dim
}
