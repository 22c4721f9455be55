// Package store provides vector storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/brbranch/kb_vector/internal/model"
)

// Store はベクトルストアの抽象インターフェース
// 埋め込みベクトルはservice層で生成・L2正規化された状態で渡される
type Store interface {
	// エントリ操作
	Add(ctx context.Context, entry *model.Entry, embedding []float32) error
	// AddBatch はバッチに対してアトミック（全件成功するか、変更前に全体が拒否されるか）
	AddBatch(ctx context.Context, entries []*model.Entry, embeddings [][]float32) error
	// Delete は未知のIDに対してErrNotFoundを返す
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)

	// ベクトル検索
	// スコア降順でmin(topK, count)件を返す。空ストアでは空の結果（エラーなし）
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)

	// 初期化・終了
	// dimはストアの生存期間を通じて固定のベクトル次元数
	Initialize(ctx context.Context, dim int) error
	Close() error
}

// SearchResult はベクトル検索結果の1件を表す
type SearchResult struct {
	Entry *model.Entry
	Score float64 // コサイン類似度（-1〜1。正規化済みベクトル同士の内積に一致）
}

// エラー定義
var (
	ErrNotFound          = errors.New("entry not found")
	ErrNotInitialized    = errors.New("store not initialized")
	ErrConnectionFailed  = errors.New("failed to connect to store")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStorageCorrupt    = errors.New("persisted artifacts are missing or inconsistent")
	ErrBatchMismatch     = errors.New("entries and embeddings length mismatch")
)
