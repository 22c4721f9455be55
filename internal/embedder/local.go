package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// DefaultLocalDim はLocalEmbedderのデフォルト次元数
const DefaultLocalDim = 128

// LocalEmbedder は外部APIを使わない決定論的なEmbedder実装
// テキストのSHA256ハッシュからベクトルを生成する
// 意味的な類似性は表現しないが、同一テキストは常に同一ベクトルになるため
// オフライン動作やテストに使用できる
type LocalEmbedder struct {
	dim int
}

// NewLocalEmbedder は新しいLocalEmbedderを作成
// dimが0以下の場合はDefaultLocalDimを使用
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDim
	}
	return &LocalEmbedder{dim: dim}
}

// Embed はテキスト列から決定論的なベクトル列を生成
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}

	return vectors, nil
}

// embedOne はテキストのSHA256ハッシュから決定論的にベクトルを生成
func (e *LocalEmbedder) embedOne(text string) []float32 {
	hash := sha256.Sum256([]byte(text))

	vec := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		// 4バイトずつ読み込んでfloat32に変換
		offset := (i * 4) % len(hash)
		bytes := hash[offset : offset+4]
		val := binary.BigEndian.Uint32(bytes)
		// 0-1の範囲に正規化
		vec[i] = float32(val) / float32(0xFFFFFFFF)
	}

	return vec
}

// Dimension は次元を返す
func (e *LocalEmbedder) Dimension() int {
	return e.dim
}
