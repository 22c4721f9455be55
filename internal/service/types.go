package service

// AddRequest はエントリ追加リクエスト
type AddRequest struct {
	Text     string
	Metadata map[string]any
}

// AddResponse はエントリ追加レスポンス
type AddResponse struct {
	ID        string
	Namespace string
}

// AddBatchRequest は複数エントリの一括追加リクエスト
type AddBatchRequest struct {
	Texts     []string
	Metadatas []map[string]any // nilなら全件メタデータなし。指定時はTextsと同じ長さ
}

// AddBatchResponse は一括追加レスポンス
// IDsは入力Textsと同じ順序
type AddBatchResponse struct {
	IDs       []string
	Namespace string
}

// SearchRequest は検索リクエスト
type SearchRequest struct {
	Query string
	TopK  *int // default 5
}

// SearchResponse は検索レスポンス
type SearchResponse struct {
	Namespace string
	Results   []SearchResult
}

// SearchResult は検索結果の1件
type SearchResult struct {
	ID       string
	Text     string
	Score    float64 // コサイン類似度（-1〜1）
	Metadata map[string]any
}
