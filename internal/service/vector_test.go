package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brbranch/kb_vector/internal/store"
)

// mockEmbedder はテスト用のEmbedder
// vectorsに登録されたテキストは固定ベクトルを返し、それ以外はデフォルトを返す
type mockEmbedder struct {
	vectors   map[string][]float32
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	dim       int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := m.vectors[text]; ok {
			results[i] = vec
			continue
		}
		vec := make([]float32, m.dim)
		vec[0] = 1
		results[i] = vec
	}
	return results, nil
}

func (m *mockEmbedder) Dimension() int {
	return m.dim
}

func newTestVectorService(t *testing.T, emb *mockEmbedder) VectorService {
	t.Helper()

	memStore := store.NewMemoryStore()
	if err := memStore.Initialize(context.Background(), emb.dim); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return NewVectorService(emb, memStore, fmt.Sprintf("local:test:%d", emb.dim))
}

func TestVectorService_Add(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})

	resp, err := svc.Add(context.Background(), &AddRequest{
		Text:     "hello world",
		Metadata: map[string]any{"source": "test"},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if resp.ID == "" {
		t.Error("expected non-empty ID")
	}
	if resp.Namespace != "local:test:3" {
		t.Errorf("expected namespace local:test:3, got %s", resp.Namespace)
	}

	size, err := svc.Size(context.Background())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("expected size 1, got %d", size)
	}
}

func TestVectorService_Add_TextRequired(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})

	_, err := svc.Add(context.Background(), &AddRequest{})
	if !errors.Is(err, ErrTextRequired) {
		t.Errorf("expected ErrTextRequired, got %v", err)
	}
}

func TestVectorService_Add_EmbedderError(t *testing.T) {
	embedErr := errors.New("embedding backend down")
	svc := newTestVectorService(t, &mockEmbedder{
		dim: 3,
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, embedErr
		},
	})

	_, err := svc.Add(context.Background(), &AddRequest{Text: "text"})
	if !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}

	// 失敗した追加でストアは変化しない
	size, err := svc.Size(context.Background())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("expected size 0 after failed add, got %d", size)
	}
}

func TestVectorService_AddBatch(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})

	resp, err := svc.AddBatch(context.Background(), &AddBatchRequest{
		Texts: []string{"first", "second", "third"},
		Metadatas: []map[string]any{
			{"n": float64(1)},
			nil,
			{"n": float64(3)},
		},
	})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	if len(resp.IDs) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(resp.IDs))
	}

	// IDはユニーク
	seen := make(map[string]bool)
	for _, id := range resp.IDs {
		if id == "" {
			t.Error("expected non-empty ID")
		}
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}

	size, err := svc.Size(context.Background())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 3 {
		t.Errorf("expected size 3, got %d", size)
	}
}

func TestVectorService_AddBatch_Validation(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})
	ctx := context.Background()

	if _, err := svc.AddBatch(ctx, &AddBatchRequest{}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty batch: expected ErrEmptyBatch, got %v", err)
	}

	_, err := svc.AddBatch(ctx, &AddBatchRequest{Texts: []string{"ok", ""}})
	if !errors.Is(err, ErrTextRequired) {
		t.Errorf("empty text: expected ErrTextRequired, got %v", err)
	}

	_, err = svc.AddBatch(ctx, &AddBatchRequest{
		Texts:     []string{"one", "two"},
		Metadatas: []map[string]any{{"k": "v"}},
	})
	if err == nil {
		t.Error("metadatas length mismatch: expected error, got nil")
	}
}

func TestVectorService_AddBatch_EmbedderErrorAtomic(t *testing.T) {
	embedErr := errors.New("embedding backend down")
	svc := newTestVectorService(t, &mockEmbedder{
		dim: 3,
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, embedErr
		},
	})

	_, err := svc.AddBatch(context.Background(), &AddBatchRequest{
		Texts: []string{"first", "second"},
	})
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected wrapped embedder error, got %v", err)
	}

	size, err := svc.Size(context.Background())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("expected size 0 after failed batch, got %d", size)
	}
}

func TestVectorService_Search_SemanticRanking(t *testing.T) {
	// 類似テキストを近いベクトル、無関係なテキストを遠いベクトルにした固定辞書
	emb := &mockEmbedder{
		dim: 3,
		vectors: map[string][]float32{
			"recipe for apple pie":   {0.9, 0.1, 0},
			"how to bake apple tart": {0.8, 0.2, 0},
			"car engine maintenance": {0, 0, 1},
			"apple pie":              {1, 0, 0},
		},
	}
	svc := newTestVectorService(t, emb)
	ctx := context.Background()

	_, err := svc.AddBatch(ctx, &AddBatchRequest{
		Texts: []string{
			"recipe for apple pie",
			"car engine maintenance",
			"how to bake apple tart",
		},
	})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	resp, err := svc.Search(ctx, &SearchRequest{Query: "apple pie"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}

	// 類似度の高い順: pie recipe > tart > car
	want := []string{
		"recipe for apple pie",
		"how to bake apple tart",
		"car engine maintenance",
	}
	for i, text := range want {
		if resp.Results[i].Text != text {
			t.Errorf("result %d: expected %q, got %q", i, text, resp.Results[i].Text)
		}
	}

	// スコアは降順
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Errorf("scores not descending at %d: %f > %f",
				i, resp.Results[i].Score, resp.Results[i-1].Score)
		}
	}
}

func TestVectorService_Search_DefaultTopK(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})
	ctx := context.Background()

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	if _, err := svc.AddBatch(ctx, &AddBatchRequest{Texts: texts}); err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	resp, err := svc.Search(ctx, &SearchRequest{Query: "text"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 5 {
		t.Errorf("expected default topK of 5 results, got %d", len(resp.Results))
	}
}

func TestVectorService_Search_Validation(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})
	ctx := context.Background()

	if _, err := svc.Search(ctx, &SearchRequest{}); !errors.Is(err, ErrQueryRequired) {
		t.Errorf("expected ErrQueryRequired, got %v", err)
	}

	zero := 0
	if _, err := svc.Search(ctx, &SearchRequest{Query: "q", TopK: &zero}); !errors.Is(err, ErrInvalidTopK) {
		t.Errorf("expected ErrInvalidTopK, got %v", err)
	}
}

func TestVectorService_Search_EmptyStore(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})

	resp, err := svc.Search(context.Background(), &SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(resp.Results))
	}
}

func TestVectorService_Delete(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})
	ctx := context.Background()

	resp, err := svc.Add(ctx, &AddRequest{Text: "to delete"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	deleted, err := svc.Delete(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true for existing id")
	}

	// 未知のIDはエラーにならずfalse
	deleted, err = svc.Delete(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Delete of unknown id failed: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false for unknown id")
	}
}

func TestVectorService_Delete_IDRequired(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})

	if _, err := svc.Delete(context.Background(), ""); !errors.Is(err, ErrIDRequired) {
		t.Errorf("expected ErrIDRequired, got %v", err)
	}
}

func TestVectorService_DeleteThenSearch(t *testing.T) {
	emb := &mockEmbedder{
		dim: 3,
		vectors: map[string][]float32{
			"first":  {1, 0, 0},
			"second": {0, 1, 0},
			"third":  {0, 0, 1},
		},
	}
	svc := newTestVectorService(t, emb)
	ctx := context.Background()

	resp, err := svc.AddBatch(ctx, &AddBatchRequest{
		Texts: []string{"first", "second", "third"},
	})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	// 真ん中を削除しても残りの検索は正しく動く
	if _, err := svc.Delete(ctx, resp.IDs[1]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	searchResp, err := svc.Search(ctx, &SearchRequest{Query: "third"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(searchResp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(searchResp.Results))
	}
	if searchResp.Results[0].Text != "third" {
		t.Errorf("expected top hit 'third', got %q", searchResp.Results[0].Text)
	}
	for _, r := range searchResp.Results {
		if r.ID == resp.IDs[1] {
			t.Error("deleted entry still returned in search")
		}
	}
}

func TestVectorService_ClearAndSize(t *testing.T) {
	svc := newTestVectorService(t, &mockEmbedder{dim: 3})
	ctx := context.Background()

	if _, err := svc.AddBatch(ctx, &AddBatchRequest{Texts: []string{"a", "b"}}); err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	size, err := svc.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("expected size 0 after clear, got %d", size)
	}

	// 空の状態でもClearは成功する
	if err := svc.Clear(ctx); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}
