// Package embedder provides text embedding interfaces and implementations.
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// Embedder はテキスト列から埋め込みベクトル列を生成するインターフェース
type Embedder interface {
	// Embed はテキスト列を同順の埋め込みベクトル列に変換する
	// 返却されるベクトルは全て同一次元であること
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はこのEmbedderが生成するベクトルの次元数を返す
	// 初回埋め込み前（dim未確定時）は 0 を返す
	Dimension() int
}

// DimUpdater は次元数が確定した際に呼び出されるコールバック
type DimUpdater interface {
	UpdateDim(dim int) error
}

// エラー定義
var (
	ErrAPIKeyRequired  = errors.New("api key is required")
	ErrUnavailable     = errors.New("embedding provider unavailable")
	ErrInvalidResponse = errors.New("invalid API response")
	ErrEmptyEmbedding  = errors.New("empty embedding returned")
	ErrEmptyInput      = errors.New("no texts to embed")
	ErrUnknownProvider = errors.New("unknown embedder provider")
)

// APIError は詳細なAPIエラー情報を保持
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnavailable
}

// probeText は次元数確定のためのプローブ入力
const probeText = "test"

// ProbeDimension はEmbedderの生成するベクトルの次元数を確定する
// 既に次元が確定していればそのまま返し、未確定ならプローブ入力を1件埋め込んで求める
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	if dim := e.Dimension(); dim > 0 {
		return dim, nil
	}

	vecs, err := e.Embed(ctx, []string{probeText})
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}

	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, ErrEmptyEmbedding
	}

	return len(vecs[0]), nil
}
