package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brbranch/kb_vector/internal/index"
	"github.com/brbranch/kb_vector/internal/model"
)

const (
	// IndexFileName はインデックスアーティファクトのファイル名
	IndexFileName = "vector_store.index"
	// MetaFileName はメタデータアーティファクトのファイル名
	MetaFileName = "vector_store_meta.json"
)

// FlatStore は全探索インデックスをファイルに永続化するStore実装
//
// 2つのアーティファクトを1つの論理単位として扱う:
//   - インデックスアーティファクト: ベクトル本体のバイナリ（行位置 = 挿入順）
//   - メタデータアーティファクト: ID列（行位置と対応）とID→{text, metadata}のJSON
//
// 行位置iのベクトルとids[i]の対応が、検索ヒットをエントリに解決する唯一の仕組み。
// 削除は全リビルド（残存ベクトルをReconstructして再挿入）で行うためO(N)。
// 大量削除はAddBatch同様にまとめて行うことを推奨する。
type FlatStore struct {
	mu          sync.RWMutex
	dir         string
	index       *index.Flat
	ids         []string // 行位置i ↔ ids[i]
	meta        *metadataStore
	dim         int
	initialized bool
}

// metaRecord はメタデータアーティファクト内の1エントリ
type metaRecord struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// metaSnapshot はメタデータアーティファクトの構造
type metaSnapshot struct {
	IDs     []string              `json:"ids"`
	Entries map[string]metaRecord `json:"entries"`
}

// NewFlatStore はFlatStoreを作成する
// dirは永続化アーティファクトを置くディレクトリ
func NewFlatStore(dir string) (*FlatStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("flat store directory is required")
	}

	return &FlatStore{
		dir:  dir,
		meta: newMetadataStore(),
	}, nil
}

// Initialize はストアを初期化する
// 両方のアーティファクトが存在すれば読み込み、どちらも無ければ空で開始する
// 片方のみ存在する、または内容が矛盾する場合はErrStorageCorruptで初期化を拒否する
func (s *FlatStore) Initialize(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	idx, err := index.NewFlat(dim)
	if err != nil {
		return err
	}

	indexPath := filepath.Join(s.dir, IndexFileName)
	metaPath := filepath.Join(s.dir, MetaFileName)

	indexExists := fileExists(indexPath)
	metaExists := fileExists(metaPath)

	switch {
	case indexExists && metaExists:
		loaded, ids, meta, err := s.load(indexPath, metaPath, dim)
		if err != nil {
			return err
		}
		s.index = loaded
		s.ids = ids
		s.meta = meta

	case indexExists != metaExists:
		// 片方のみ存在: 空で開始せず、明示的に失敗する
		return fmt.Errorf("%w: exactly one of %s and %s exists in %s",
			ErrStorageCorrupt, IndexFileName, MetaFileName, s.dir)

	default:
		s.index = idx
		s.ids = nil
		s.meta = newMetadataStore()
	}

	s.dim = dim
	s.initialized = true
	return nil
}

// load は両アーティファクトを読み込み、相互の整合性を検証する
func (s *FlatStore) load(indexPath, metaPath string, dim int) (*index.Flat, []string, *metadataStore, error) {
	// メタデータアーティファクト読み込み
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: failed to read metadata artifact: %v", ErrStorageCorrupt, err)
	}

	var snapshot metaSnapshot
	if err := json.Unmarshal(metaBytes, &snapshot); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: failed to parse metadata artifact: %v", ErrStorageCorrupt, err)
	}

	// インデックスアーティファクト読み込み
	indexFile, err := os.Open(indexPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: failed to open index artifact: %v", ErrStorageCorrupt, err)
	}
	defer indexFile.Close()

	loaded, err := index.ReadFlat(indexFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: failed to read index artifact: %v", ErrStorageCorrupt, err)
	}

	// 整合性検証: 次元、件数、ID集合の一致
	if loaded.Dimension() != dim {
		return nil, nil, nil, fmt.Errorf("%w: index dimension %d does not match embedder dimension %d",
			ErrStorageCorrupt, loaded.Dimension(), dim)
	}

	if loaded.Count() != len(snapshot.IDs) || len(snapshot.IDs) != len(snapshot.Entries) {
		return nil, nil, nil, fmt.Errorf("%w: index has %d vectors, metadata has %d ids and %d entries",
			ErrStorageCorrupt, loaded.Count(), len(snapshot.IDs), len(snapshot.Entries))
	}

	meta := newMetadataStore()
	seen := make(map[string]bool, len(snapshot.IDs))
	for _, id := range snapshot.IDs {
		if seen[id] {
			return nil, nil, nil, fmt.Errorf("%w: duplicate id %q in metadata artifact", ErrStorageCorrupt, id)
		}
		seen[id] = true

		record, ok := snapshot.Entries[id]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: id %q has no metadata entry", ErrStorageCorrupt, id)
		}

		meta.Put(&model.Entry{
			ID:       id,
			Text:     record.Text,
			Metadata: record.Metadata,
		})
	}

	ids := make([]string, len(snapshot.IDs))
	copy(ids, snapshot.IDs)

	return loaded, ids, meta, nil
}

// Close はストアをクローズする
func (s *FlatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	return nil
}

// Add はエントリを追加する
func (s *FlatStore) Add(ctx context.Context, entry *model.Entry, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	if len(embedding) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dim)
	}

	before := s.index.Count()

	if _, err := s.index.Insert(embedding); err != nil {
		return err
	}
	s.ids = append(s.ids, entry.ID)
	s.meta.Put(entry)

	if err := s.persist(); err != nil {
		// 永続化失敗時はインメモリ状態を追加前に戻す
		s.index.Truncate(before)
		s.ids = s.ids[:before]
		s.meta.Remove(entry.ID)
		return err
	}

	return nil
}

// AddBatch は複数エントリをまとめて追加する
// 全件の検証を変更前に行い、失敗時は一切の変更なしに拒否する
func (s *FlatStore) AddBatch(ctx context.Context, entries []*model.Entry, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if len(entries) != len(embeddings) {
		return fmt.Errorf("%w: %d entries, %d embeddings", ErrBatchMismatch, len(entries), len(embeddings))
	}

	// 変更前に全件を検証
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if len(embeddings[i]) != s.dim {
			return fmt.Errorf("%w: entry %d has %d, want %d", ErrDimensionMismatch, i, len(embeddings[i]), s.dim)
		}
	}

	before := s.index.Count()

	for i, entry := range entries {
		if _, err := s.index.Insert(embeddings[i]); err != nil {
			// 検証済みなので到達しないはずだが、途中失敗は巻き戻す
			s.rollbackTo(before, entries[:i])
			return err
		}
		s.ids = append(s.ids, entry.ID)
		s.meta.Put(entry)
	}

	if err := s.persist(); err != nil {
		s.rollbackTo(before, entries)
		return err
	}

	return nil
}

// rollbackTo は追加操作をカウントbeforeの時点まで巻き戻す
func (s *FlatStore) rollbackTo(before int, added []*model.Entry) {
	s.index.Truncate(before)
	s.ids = s.ids[:before]
	for _, entry := range added {
		s.meta.Remove(entry.ID)
	}
}

// Search はベクトル検索を実行する
// 空ストアでは空の結果を返す（エラーなし）
func (s *FlatStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	hits, err := s.index.Search(embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	// 行位置→ID→メタデータの順に解決
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		id := s.ids[hit.Position]
		entry, ok := s.meta.Get(id)
		if !ok {
			// 位置対応の不変条件が破れている
			return nil, fmt.Errorf("%w: id %q at position %d has no metadata", ErrStorageCorrupt, id, hit.Position)
		}

		results = append(results, SearchResult{
			Entry: entry,
			Score: hit.Score,
		})
	}

	return results, nil
}

// Delete はエントリを削除する
// 全探索インデックスは行削除を直接サポートしないため、残存ベクトルを
// 元の相対順のままReconstructして新しいインデックスに再挿入する（O(N)）
func (s *FlatStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if !s.meta.Has(id) {
		return ErrNotFound
	}

	rebuilt, err := index.NewFlat(s.dim)
	if err != nil {
		return err
	}

	newIDs := make([]string, 0, len(s.ids)-1)
	for i, eid := range s.ids {
		if eid == id {
			continue
		}

		vec, err := s.index.Reconstruct(i)
		if err != nil {
			return fmt.Errorf("failed to reconstruct vector at position %d: %w", i, err)
		}
		if _, err := rebuilt.Insert(vec); err != nil {
			return fmt.Errorf("failed to reinsert vector: %w", err)
		}
		newIDs = append(newIDs, eid)
	}

	// 旧状態を保持してからスワップ（永続化失敗時に戻すため）
	oldIndex, oldIDs := s.index, s.ids
	removed, _ := s.meta.Get(id)

	s.index = rebuilt
	s.ids = newIDs
	s.meta.Remove(id)

	if err := s.persist(); err != nil {
		s.index = oldIndex
		s.ids = oldIDs
		s.meta.Put(removed)
		return err
	}

	return nil
}

// Clear は全エントリを削除する（冪等）
func (s *FlatStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	emptied, err := index.NewFlat(s.dim)
	if err != nil {
		return err
	}

	oldIndex, oldIDs, oldMeta := s.index, s.ids, s.meta

	s.index = emptied
	s.ids = nil
	s.meta = newMetadataStore()

	if err := s.persist(); err != nil {
		s.index = oldIndex
		s.ids = oldIDs
		s.meta = oldMeta
		return err
	}

	return nil
}

// Count は格納件数を返す
func (s *FlatStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	return s.index.Count(), nil
}

// persist は両アーティファクトをディスクに書き出す
// メタデータを先に書くことで、途中クラッシュ時に「インデックスに無いエントリを
// 記述するメタデータ」までで済み、逆（メタデータの無いベクトル）は起きない
// それぞれ一時ファイル経由のリネームでatomicに置き換える
func (s *FlatStore) persist() error {
	if err := s.writeMeta(); err != nil {
		return err
	}
	return s.writeIndex()
}

func (s *FlatStore) writeMeta() error {
	snapshot := metaSnapshot{
		IDs:     s.ids,
		Entries: make(map[string]metaRecord, s.meta.Len()),
	}
	if snapshot.IDs == nil {
		snapshot.IDs = []string{}
	}

	for _, id := range s.ids {
		entry, ok := s.meta.Get(id)
		if !ok {
			return fmt.Errorf("%w: id %q has no metadata", ErrStorageCorrupt, id)
		}
		snapshot.Entries[id] = metaRecord{
			Text:     entry.Text,
			Metadata: entry.Metadata,
		}
	}

	data, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata artifact: %w", err)
	}

	metaPath := filepath.Join(s.dir, MetaFileName)
	return atomicWrite(metaPath, data)
}

func (s *FlatStore) writeIndex() error {
	indexPath := filepath.Join(s.dir, IndexFileName)

	tmpFile := indexPath + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}

	if _, err := s.index.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write index artifact: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temp index file: %w", err)
	}

	if err := os.Rename(tmpFile, indexPath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return nil
}

// atomicWrite は一時ファイルに書き込んでからリネームする
func atomicWrite(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
