package service

import (
	"context"
	"errors"
)

// VectorService はテキストの登録・検索・削除を提供
type VectorService interface {
	Add(ctx context.Context, req *AddRequest) (*AddResponse, error)
	AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error)
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
	// Delete はIDのエントリを削除し、削除したかどうかを返す
	// 未知のIDはエラーではなくfalseを返す
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}

// エラー定義
var (
	ErrTextRequired  = errors.New("text is required")
	ErrQueryRequired = errors.New("query is required")
	ErrIDRequired    = errors.New("id is required")
	ErrInvalidTopK   = errors.New("topK must be positive")
	ErrEmptyBatch    = errors.New("texts is required")
)
