package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brbranch/kb_vector/internal/model"
)

// MemoryStore はテスト用のインメモリStore実装（永続化なし）
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[string]*memoryEntry // key: entry.ID
	nextSeq     int
	dim         int
	initialized bool
}

type memoryEntry struct {
	entry     *model.Entry
	embedding []float32
	seq       int // 挿入順（同点スコアの決定的順序に使用）
}

// NewMemoryStore はMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Initialize はストアを初期化する
func (s *MemoryStore) Initialize(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}

	s.dim = dim
	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	s.initialized = false
	return nil
}

// Add はエントリを追加する
func (s *MemoryStore) Add(ctx context.Context, entry *model.Entry, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.add(entry, embedding)
}

// add は呼び出し側がロックを保持している前提の内部実装
func (s *MemoryStore) add(entry *model.Entry, embedding []float32) error {
	if !s.initialized {
		return ErrNotInitialized
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	if len(embedding) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dim)
	}

	// ディープコピー
	embeddingCopy := make([]float32, len(embedding))
	copy(embeddingCopy, embedding)

	s.entries[entry.ID] = &memoryEntry{
		entry:     copyEntry(entry),
		embedding: embeddingCopy,
		seq:       s.nextSeq,
	}
	s.nextSeq++

	return nil
}

// AddBatch は複数エントリをまとめて追加する
// 全件の検証を変更前に行い、失敗時は一切の変更なしに拒否する
func (s *MemoryStore) AddBatch(ctx context.Context, entries []*model.Entry, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if len(entries) != len(embeddings) {
		return fmt.Errorf("%w: %d entries, %d embeddings", ErrBatchMismatch, len(entries), len(embeddings))
	}

	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if len(embeddings[i]) != s.dim {
			return fmt.Errorf("%w: entry %d has %d, want %d", ErrDimensionMismatch, i, len(embeddings[i]), s.dim)
		}
	}

	for i, entry := range entries {
		if err := s.add(entry, embeddings[i]); err != nil {
			return err
		}
	}

	return nil
}

// Delete はエントリを削除する
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}

	delete(s.entries, id)
	return nil
}

// Clear は全エントリを削除する
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	s.entries = make(map[string]*memoryEntry)
	return nil
}

// Count は格納件数を返す
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	return len(s.entries), nil
}

// Search はベクトル検索を実行する
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	if len(s.entries) == 0 {
		return []SearchResult{}, nil
	}

	if len(embedding) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dim)
	}

	type scoredEntry struct {
		result SearchResult
		seq    int
	}

	// 全エントリをスキャン
	scored := make([]scoredEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		scored = append(scored, scoredEntry{
			result: SearchResult{
				Entry: copyEntry(entry.entry),
				Score: CosineSimilarity(embedding, entry.embedding),
			},
			seq: entry.seq,
		})
	}

	// スコア降順、同点は挿入順でソート
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].result.Score != scored[j].result.Score {
			return scored[i].result.Score > scored[j].result.Score
		}
		return scored[i].seq < scored[j].seq
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]SearchResult, len(scored))
	for i, item := range scored {
		results[i] = item.result
	}

	return results, nil
}
