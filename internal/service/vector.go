package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/brbranch/kb_vector/internal/embedder"
	"github.com/brbranch/kb_vector/internal/model"
	"github.com/brbranch/kb_vector/internal/store"
	"github.com/google/uuid"
)

// vectorService はVectorServiceの実装
// 埋め込みはここで生成・L2正規化し、正規化済みベクトルをStoreに渡す
type vectorService struct {
	embedder  embedder.Embedder
	store     store.Store
	namespace string
}

// NewVectorService はVectorServiceの新しいインスタンスを作成
func NewVectorService(emb embedder.Embedder, s store.Store, namespace string) VectorService {
	return &vectorService{
		embedder:  emb,
		store:     s,
		namespace: namespace,
	}
}

// Add はテキストを追加する
func (s *vectorService) Add(ctx context.Context, req *AddRequest) (*AddResponse, error) {
	// バリデーション
	if req.Text == "" {
		return nil, ErrTextRequired
	}

	// 埋め込み生成
	embeddings, err := s.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	id := uuid.New().String()
	entry := &model.Entry{
		ID:       id,
		Text:     req.Text,
		Metadata: req.Metadata,
	}

	// Storeに保存（L2正規化してから）
	if err := s.store.Add(ctx, entry, store.Normalize(embeddings[0])); err != nil {
		return nil, fmt.Errorf("failed to add entry to store: %w", err)
	}

	return &AddResponse{
		ID:        id,
		Namespace: s.namespace,
	}, nil
}

// AddBatch は複数テキストをまとめて追加する
// 埋め込み生成は1回のAPI呼び出しで行い、Storeへの追加はアトミック
// （全件成功するか、1件も追加されないか）
func (s *vectorService) AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error) {
	// バリデーション
	if len(req.Texts) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, text := range req.Texts {
		if text == "" {
			return nil, fmt.Errorf("%w: texts[%d] is empty", ErrTextRequired, i)
		}
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.Texts) {
		return nil, fmt.Errorf("metadatas length %d does not match texts length %d",
			len(req.Metadatas), len(req.Texts))
	}

	// 埋め込み生成（バッチ1回）
	embeddings, err := s.embedder.Embed(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			embedder.ErrInvalidResponse, len(embeddings), len(req.Texts))
	}

	ids := make([]string, len(req.Texts))
	entries := make([]*model.Entry, len(req.Texts))
	normalized := make([][]float32, len(req.Texts))
	for i, text := range req.Texts {
		ids[i] = uuid.New().String()
		entries[i] = &model.Entry{
			ID:   ids[i],
			Text: text,
		}
		if req.Metadatas != nil {
			entries[i].Metadata = req.Metadatas[i]
		}
		normalized[i] = store.Normalize(embeddings[i])
	}

	if err := s.store.AddBatch(ctx, entries, normalized); err != nil {
		return nil, fmt.Errorf("failed to add entries to store: %w", err)
	}

	return &AddBatchResponse{
		IDs:       ids,
		Namespace: s.namespace,
	}, nil
}

// Search は検索クエリに類似するエントリを検索する
func (s *vectorService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	// バリデーション
	if req.Query == "" {
		return nil, ErrQueryRequired
	}

	// TopKのデフォルト値
	topK := 5
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	// 埋め込み生成
	embeddings, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	// Store検索
	results, err := s.store.Search(ctx, store.Normalize(embeddings[0]), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	// レスポンスの構築
	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		searchResults = append(searchResults, SearchResult{
			ID:       r.Entry.ID,
			Text:     r.Entry.Text,
			Score:    r.Score,
			Metadata: r.Entry.Metadata,
		})
	}

	return &SearchResponse{
		Namespace: s.namespace,
		Results:   searchResults,
	}, nil
}

// Delete は指定されたIDのエントリを削除する
// 未知のIDはエラーではなくfalseを返す（冪等な削除）
func (s *vectorService) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrIDRequired
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}

	return true, nil
}

// Clear は全エントリを削除する
func (s *vectorService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// Size は格納エントリ数を返す
func (s *vectorService) Size(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
