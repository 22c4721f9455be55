package model

// Config は全体の設定を表す
type Config struct {
	Embedder EmbedderConfig `json:"embedder"`
	Store    StoreConfig    `json:"store"`
	Paths    PathsConfig    `json:"paths"`
}

// EmbedderConfig はembedder設定
type EmbedderConfig struct {
	Provider string  `json:"provider"`          // "openai" | "ollama" | "local"
	Model    string  `json:"model"`             // モデル名
	Dim      int     `json:"dim"`               // ベクトル次元（0は未設定、初回プローブで確定）
	BaseURL  *string `json:"baseUrl,omitempty"` // nullable、省略可
	APIKey   *string `json:"apiKey,omitempty"`  // nullable、省略可（セキュリティ注意）
}

// StoreConfig はvector store設定
type StoreConfig struct {
	Type string  `json:"type"`           // "flat" | "memory" | "sqlite" | "qdrant"
	Path *string `json:"path,omitempty"` // nullable（flat/SQLite用）
	URL  *string `json:"url,omitempty"`  // nullable（Qdrant用）
}

// PathsConfig はファイルパス設定
type PathsConfig struct {
	ConfigPath string `json:"configPath"` // 設定ファイルパス
	DataDir    string `json:"dataDir"`    // データディレクトリ
}

// Embedder Provider定数
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// Store Type定数
const (
	StoreTypeFlat   = "flat"
	StoreTypeMemory = "memory"
	StoreTypeSQLite = "sqlite"
	StoreTypeQdrant = "qdrant"
)
