// Package index provides the exact nearest-neighbor index used by the flat store.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// エラー定義
var (
	ErrInvalidDimension  = errors.New("dimension must be positive")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidPosition   = errors.New("position out of range")
)

// Result は検索結果の1件（行位置とスコア）を表す
type Result struct {
	Position int     // インデックス内の行位置
	Score    float64 // 内積スコア（正規化済みベクトル同士ならコサイン類似度に一致）
}

// Flat は内積スコアリングによる全探索インデックス
// 行位置は挿入順にそのまま対応し、削除はリビルド（Reset + 再Insert）でのみ行う
// FAISSのIndexFlatIPに相当する構造
type Flat struct {
	dim  int
	vecs [][]float32
}

// NewFlat は次元dimのFlatインデックスを作成する
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dim)
	}
	return &Flat{dim: dim}, nil
}

// Dimension はインデックスの次元数を返す
func (f *Flat) Dimension() int {
	return f.dim
}

// Count は格納済みベクトル数を返す
func (f *Flat) Count() int {
	return len(f.vecs)
}

// Insert はベクトルを末尾に追加し、挿入前のカウントを行位置として返す
func (f *Flat) Insert(vec []float32) (int, error) {
	if len(vec) != f.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), f.dim)
	}

	// ディープコピー（呼び出し側のスライス再利用から保護）
	stored := make([]float32, f.dim)
	copy(stored, vec)

	f.vecs = append(f.vecs, stored)
	return len(f.vecs) - 1, nil
}

// Search はクエリベクトルとの内積が大きい順にmin(k, count)件を返す
// 同点の場合は行位置の昇順（先に挿入された方が優先）で決定的に順序付ける
// インデックスが空の場合はエラーではなく空の結果を返す
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(f.vecs) == 0 {
		return []Result{}, nil
	}

	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}

	// 全ベクトルをスキャンして内積を計算
	results := make([]Result, len(f.vecs))
	for i, vec := range f.vecs {
		var dot float64
		for j := range vec {
			dot += float64(query[j]) * float64(vec[j])
		}
		results[i] = Result{Position: i, Score: dot}
	}

	// スコア降順、同点は行位置昇順でソート
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})

	if k < 0 {
		k = 0
	}
	if k > len(results) {
		k = len(results)
	}

	return results[:k], nil
}

// Reconstruct は指定した行位置のベクトルのコピーを返す
// 削除時のリビルドで使用する
func (f *Flat) Reconstruct(position int) ([]float32, error) {
	if position < 0 || position >= len(f.vecs) {
		return nil, fmt.Errorf("%w: %d (count %d)", ErrInvalidPosition, position, len(f.vecs))
	}

	vec := make([]float32, f.dim)
	copy(vec, f.vecs[position])
	return vec, nil
}

// Truncate は末尾のベクトルを削り、カウントをnに戻す
// 永続化に失敗した追加操作のロールバックにのみ使用する
func (f *Flat) Truncate(n int) error {
	if n < 0 || n > len(f.vecs) {
		return fmt.Errorf("%w: %d (count %d)", ErrInvalidPosition, n, len(f.vecs))
	}

	f.vecs = f.vecs[:n]
	return nil
}

// Reset はインデックスを空にする
func (f *Flat) Reset() {
	f.vecs = nil
}
