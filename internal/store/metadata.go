package store

import (
	"encoding/json"

	"github.com/brbranch/kb_vector/internal/model"
)

// metadataStore はID→{テキスト、メタデータ}のインメモリマッピング
// 永続化ロジックは持たない（スナップショット保存はFlatStore側が担う）
type metadataStore struct {
	entries map[string]*model.Entry
}

// newMetadataStore はmetadataStoreを作成する
func newMetadataStore() *metadataStore {
	return &metadataStore{
		entries: make(map[string]*model.Entry),
	}
}

// Put はエントリを登録する（ディープコピーして保持）
func (m *metadataStore) Put(entry *model.Entry) {
	m.entries[entry.ID] = copyEntry(entry)
}

// Get はIDでエントリを取得する（ディープコピーを返す）
func (m *metadataStore) Get(id string) (*model.Entry, bool) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return copyEntry(entry), true
}

// Has はIDの存在を確認する
func (m *metadataStore) Has(id string) bool {
	_, ok := m.entries[id]
	return ok
}

// Remove はIDのエントリを削除する
func (m *metadataStore) Remove(id string) {
	delete(m.entries, id)
}

// Clear は全エントリを削除する
func (m *metadataStore) Clear() {
	m.entries = make(map[string]*model.Entry)
}

// Len は登録件数を返す
func (m *metadataStore) Len() int {
	return len(m.entries)
}

// copyEntry はEntryのディープコピーを返す
func copyEntry(entry *model.Entry) *model.Entry {
	entryCopy := &model.Entry{
		ID:   entry.ID,
		Text: entry.Text,
	}

	if entry.Metadata != nil {
		entryCopy.Metadata = copyValue(entry.Metadata).(map[string]any)
	}

	return entryCopy
}

// copyValue は任意の値をJSON経由でディープコピーする
func copyValue(v any) any {
	if v == nil {
		return nil
	}

	b, _ := json.Marshal(v)
	var result any
	json.Unmarshal(b, &result)
	return result
}
