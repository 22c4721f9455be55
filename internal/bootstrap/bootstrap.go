// Package bootstrap provides common initialization logic for kb-vector.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/brbranch/kb_vector/internal/config"
	"github.com/brbranch/kb_vector/internal/embedder"
	"github.com/brbranch/kb_vector/internal/model"
	"github.com/brbranch/kb_vector/internal/service"
	"github.com/brbranch/kb_vector/internal/store"
)

// Services は初期化されたサービス群を保持
type Services struct {
	VectorService service.VectorService
	Store         store.Store
	Embedder      embedder.Embedder
	Config        *model.Config
	Namespace     string
}

// Initialize は設定を読み込み、必要なサービスを初期化する
//
// 初期化の流れ:
//  1. 設定の読み込みと環境変数の上書き適用
//  2. Embedder作成
//  3. 埋め込み次元の解決（設定に保存済みならそれを使い、なければプローブ）
//  4. namespace生成とStore作成・初期化
//  5. VectorService組み立て
func Initialize(ctx context.Context, configPath string) (*Services, func(), error) {
	// 設定マネージャーの作成
	configManager, err := config.NewManager(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	// 設定ファイルの読み込み
	if err := configManager.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configManager.GetConfig()
	config.ApplyEnvOverrides(cfg)

	// 1. Embedder初期化
	emb, err := embedder.NewEmbedder(&cfg.Embedder, config.GetOpenAIAPIKey(cfg), configManager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	// 2. 埋め込み次元の解決
	// 設定に保存済み（dim > 0）ならAPI呼び出しなしで使う
	dim := cfg.Embedder.Dim
	if dim <= 0 {
		probed, err := embedder.ProbeDimension(ctx, emb)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to determine embedding dimension: %w", err)
		}
		dim = probed

		// 次回起動からプローブを省略できるよう設定に保存
		// 保存に失敗しても起動は継続する
		if err := configManager.UpdateDim(dim); err != nil {
			slog.Warn("failed to persist embedding dimension", "error", err)
		}
	}

	// 3. namespace生成
	namespace := config.GenerateNamespace(cfg.Embedder.Provider, cfg.Embedder.Model, dim)

	// 4. Store初期化
	st, err := newStore(cfg, namespace)
	if err != nil {
		return nil, nil, err
	}

	if err := st.Initialize(ctx, dim); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// 5. Service初期化
	vectorService := service.NewVectorService(emb, st, namespace)

	cleanup := func() {
		st.Close()
	}

	return &Services{
		VectorService: vectorService,
		Store:         st,
		Embedder:      emb,
		Config:        cfg,
		Namespace:     namespace,
	}, cleanup, nil
}

// newStore は設定に応じたStoreを作成する
func newStore(cfg *model.Config, namespace string) (store.Store, error) {
	switch cfg.Store.Type {
	case model.StoreTypeFlat:
		// namespace専用ディレクトリに2つのアーティファクトを置く
		dir := config.NamespaceDataDir(cfg.Paths.DataDir, namespace)
		if cfg.Store.Path != nil && *cfg.Store.Path != "" {
			dir = *cfg.Store.Path
		}
		st, err := store.NewFlatStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create flat store: %w", err)
		}
		return st, nil

	case model.StoreTypeSQLite:
		// SQLiteのDBパスを決定
		dbPath := filepath.Join(cfg.Paths.DataDir, "vectors.db")
		if cfg.Store.Path != nil && *cfg.Store.Path != "" {
			dbPath = *cfg.Store.Path
		}
		// DBファイルの親ディレクトリを作成
		if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
		return st, nil

	case model.StoreTypeQdrant:
		url := "http://localhost:6333"
		if cfg.Store.URL != nil && *cfg.Store.URL != "" {
			url = *cfg.Store.URL
		}
		st, err := store.NewQdrantStore(url, namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create qdrant store: %w", err)
		}
		return st, nil

	default:
		return store.NewMemoryStore(), nil
	}
}
