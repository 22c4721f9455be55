package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brbranch/kb_vector/internal/model"
	"github.com/qdrant/go-client/qdrant"
)

// sanitizeCollectionName はQdrantのコレクション名として使用できる文字列に変換する
// Qdrantは ":" などの特殊文字をコレクション名に使用できないため
func sanitizeCollectionName(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}

// QdrantStore はQdrantを使用したStore実装
type QdrantStore struct {
	client      *qdrant.Client
	url         string
	namespace   string
	dim         int
	initialized bool
	mu          sync.RWMutex // initializedフラグの保護
}

// NewQdrantStore はQdrantStoreを作成する
// namespaceはコレクション名の元になる（"provider:model:dim" 形式）
func NewQdrantStore(urlStr string, namespace string) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	host := parsedURL.Hostname()
	portStr := parsedURL.Port()
	// Qdrant gRPCポートはデフォルト6334（HTTPは6333）
	port := 6334
	if portStr != "" {
		// URLにポートが明示されている場合は、gRPCポートに変換
		// 例: http://localhost:6333 -> 6334
		if p, err := strconv.Atoi(portStr); err == nil {
			if p == 6333 {
				port = 6334 // HTTPポート指定の場合はgRPCポートに変換
			} else {
				port = p
			}
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		SkipCompatibilityCheck: true, // バージョンチェックをスキップ
	})
	if err != nil {
		return nil, ErrConnectionFailed
	}

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		return nil, ErrConnectionFailed
	}

	return &QdrantStore{
		client:    client,
		url:       urlStr,
		namespace: namespace,
	}, nil
}

// collection はエントリ用コレクション名を返す
func (s *QdrantStore) collection() string {
	return sanitizeCollectionName(s.namespace)
}

// Initialize はストアを初期化する
func (s *QdrantStore) Initialize(ctx context.Context, dim int) error {
	if s.client == nil {
		return ErrConnectionFailed
	}

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}

	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	s.mu.Lock()
	s.dim = dim
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// ensureCollection はコレクションが存在しなければ作成する
func (s *QdrantStore) ensureCollection(ctx context.Context, dim int) error {
	collectionName := sanitizeCollectionName(s.namespace)

	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	return nil
}

// Close はストアをクローズする
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// isInitialized は初期化状態を安全に取得する
func (s *QdrantStore) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Add はエントリを追加する
func (s *QdrantStore) Add(ctx context.Context, entry *model.Entry, embedding []float32) error {
	if !s.isInitialized() {
		return ErrNotInitialized
	}

	if err := s.validate(entry, embedding); err != nil {
		return err
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection(),
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(hashID(entry.ID)),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: buildPayload(entry),
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// AddBatch は複数エントリを1回のUpsertでまとめて追加する
func (s *QdrantStore) AddBatch(ctx context.Context, entries []*model.Entry, embeddings [][]float32) error {
	if !s.isInitialized() {
		return ErrNotInitialized
	}

	if len(entries) != len(embeddings) {
		return fmt.Errorf("%w: %d entries, %d embeddings", ErrBatchMismatch, len(entries), len(embeddings))
	}

	for i, entry := range entries {
		if err := s.validate(entry, embeddings[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, entry := range entries {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(hashID(entry.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: buildPayload(entry),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection(),
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})

	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Delete はエントリを削除する
func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	if !s.isInitialized() {
		return ErrNotInitialized
	}

	// 存在確認
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection(),
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(hashID(id))},
		WithPayload:    qdrant.NewWithPayload(false),
	})

	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}

	if len(points) == 0 {
		return ErrNotFound
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection(),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(hashID(id))),
	})

	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}

// Clear は全エントリを削除する
// コレクションを破棄して空の状態で作り直す
func (s *QdrantStore) Clear(ctx context.Context) error {
	if !s.isInitialized() {
		return ErrNotInitialized
	}

	if err := s.client.DeleteCollection(ctx, s.collection()); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()

	return s.ensureCollection(ctx, dim)
}

// Count は格納件数を返す
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if !s.isInitialized() {
		return 0, ErrNotInitialized
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection(),
		Exact:          qdrant.PtrOf(true),
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return int(count), nil
}

// Search はベクトル検索を実行する
func (s *QdrantStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	if !s.isInitialized() {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()

	if len(embedding) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}

	queryResp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection(),
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	results := []SearchResult{}
	for _, point := range queryResp {
		entry, err := payloadToEntry(point.Payload)
		if err != nil {
			continue
		}

		// コサイン距離のスコアは-1〜1のまま返す
		results = append(results, SearchResult{
			Entry: entry,
			Score: float64(point.Score),
		})
	}

	// スコア降順でソート（念のため）
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// Helper functions

func (s *QdrantStore) validate(entry *model.Entry, embedding []float32) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()

	if len(embedding) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	return nil
}

// hashID は文字列IDを数値IDに変換する（簡易実装）
func hashID(id string) uint64 {
	// SHA256ハッシュの先頭8バイトを使用して衝突耐性を向上
	h := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(h[:8])
}

// buildPayload はEntryからQdrantのpayloadを構築する
func buildPayload(entry *model.Entry) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value)

	payload["id"], _ = qdrant.NewValue(entry.ID)
	payload["text"], _ = qdrant.NewValue(entry.Text)

	// metadata をJSON経由で変換
	if entry.Metadata != nil {
		jsonBytes, err := json.Marshal(entry.Metadata)
		if err == nil {
			var metadataMap map[string]any
			if err := json.Unmarshal(jsonBytes, &metadataMap); err == nil {
				valueMap := qdrant.NewValueMap(metadataMap)
				payload["metadata"], _ = qdrant.NewValue(valueMap)
			}
		}
	}

	return payload
}

// payloadToEntry はQdrantのpayloadからEntryを構築する
func payloadToEntry(payload map[string]*qdrant.Value) (*model.Entry, error) {
	entry := &model.Entry{}

	if v, ok := payload["id"]; ok && v.GetStringValue() != "" {
		entry.ID = v.GetStringValue()
	}
	if v, ok := payload["text"]; ok && v.GetStringValue() != "" {
		entry.Text = v.GetStringValue()
	}

	if entry.ID == "" || entry.Text == "" {
		return nil, fmt.Errorf("payload missing id or text")
	}

	// metadataの取得（convertQdrantValueを使用して型を正確に復元）
	if v, ok := payload["metadata"]; ok && v != nil {
		converted := convertQdrantValue(v)
		if metadata, ok := converted.(map[string]any); ok {
			entry.Metadata = metadata
		}
	}

	return entry, nil
}

// convertQdrantValue はQdrantのValueをGoの値に変換する
func convertQdrantValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	case *qdrant.Value_StructValue:
		structVal := v.GetStructValue()
		if structVal != nil && structVal.Fields != nil {
			result := make(map[string]any)
			for key, field := range structVal.Fields {
				result[key] = convertQdrantValue(field)
			}
			return result
		}
	case *qdrant.Value_ListValue:
		listVal := v.GetListValue()
		if listVal != nil {
			var values []any
			for _, item := range listVal.Values {
				values = append(values, convertQdrantValue(item))
			}
			return values
		}
	}
	return nil
}
