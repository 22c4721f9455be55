package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/brbranch/kb_vector/internal/model"
	_ "modernc.org/sqlite"
)

const (
	// entryCountWarningThreshold は警告を出すエントリ件数の閾値
	// 全件スキャン検索のため、これを超えると検索レイテンシが目立ち始める
	entryCountWarningThreshold = 5000
)

// SQLiteStore はSQLiteを使用したStore実装
// 埋め込みはBLOBとして保存し、検索は全件スキャンのコサイン類似度で行う
type SQLiteStore struct {
	mu          sync.RWMutex
	db          *sql.DB
	dbPath      string
	dim         int
	initialized bool
}

// NewSQLiteStore はSQLiteStoreを作成する
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WALモードを有効化
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Initialize はストアを初期化する
func (s *SQLiteStore) Initialize(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}

	// entriesテーブル作成
	// seqは挿入順を保持し、同点スコアの決定的順序に使用する
	entriesSQL := `
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, entriesSQL); err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}

	s.dim = dim
	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add はエントリを追加する
func (s *SQLiteStore) Add(ctx context.Context, entry *model.Entry, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if err := s.validate(entry, embedding); err != nil {
		return err
	}

	metadataJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (id, text, metadata, embedding) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Text, metadataJSON, encodeEmbedding(embedding))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	s.warnIfLarge(ctx)
	return nil
}

// AddBatch は複数エントリを1トランザクションでまとめて追加する
// 全件の検証を変更前に行い、トランザクションにより全成功か全失敗かになる
func (s *SQLiteStore) AddBatch(ctx context.Context, entries []*model.Entry, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, text, metadata, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		metadataJSON, err := marshalMetadata(entry.Metadata)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx, entry.ID, entry.Text, metadataJSON, encodeEmbedding(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.warnIfLarge(ctx)
	return nil
}

// Delete はエントリを削除する
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Clear は全エントリを削除する
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	return nil
}

// Count は格納件数を返す
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	return s.countEntries(ctx)
}

// Search はベクトル検索を実行する
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	count, err := s.countEntries(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []SearchResult{}, nil
	}

	if len(embedding) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dim)
	}

	// 挿入順（seq昇順）で全件スキャン
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM entries ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	type scoredEntry struct {
		result SearchResult
		seq    int
	}

	var scored []scoredEntry
	seq := 0
	for rows.Next() {
		var (
			id, text      string
			metadataJSON  sql.NullString
			embeddingBlob []byte
		)
		if err := rows.Scan(&id, &text, &metadataJSON, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		entry := &model.Entry{ID: id, Text: text}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata for entry %s: %w", id, err)
			}
		}

		scored = append(scored, scoredEntry{
			result: SearchResult{
				Entry: entry,
				Score: CosineSimilarity(embedding, decodeEmbedding(embeddingBlob)),
			},
			seq: seq,
		})
		seq++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
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

// Helper functions

func (s *SQLiteStore) validate(entry *model.Entry, embedding []float32) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if len(embedding) != s.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dim)
	}
	return nil
}

func (s *SQLiteStore) countEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) warnIfLarge(ctx context.Context) {
	count, err := s.countEntries(ctx)
	if err != nil {
		return
	}
	if count > entryCountWarningThreshold {
		slog.Warn("entry count exceeds full-scan search threshold",
			"count", count, "threshold", entryCountWarningThreshold)
	}
}

func marshalMetadata(metadata map[string]any) (sql.NullString, error) {
	if metadata == nil {
		return sql.NullString{}, nil
	}

	b, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// encodeEmbedding は埋め込みをリトルエンディアンfloat32列のBLOBに変換する
func encodeEmbedding(embedding []float32) []byte {
	b := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// decodeEmbedding はBLOBを埋め込みに戻す
func decodeEmbedding(data []byte) []float32 {
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
