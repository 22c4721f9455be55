package model

import (
	"fmt"
)

// Entry はベクトルストアに格納される1件のエントリを表す（内部データモデル）
// ベクトル本体はインデックス側が行位置で保持するため、ここには含まない
type Entry struct {
	ID       string         `json:"id"`                 // UUID形式、追加時に生成、不変
	Text     string         `json:"text"`               // 元のテキスト（そのまま保存）、必須、不変
	Metadata map[string]any `json:"metadata,omitempty"` // 呼び出し側が付与する不透明なキー値データ、nullable
}

// Validate はEntryのバリデーションを実行する
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("ID must not be empty")
	}

	if e.Text == "" {
		return fmt.Errorf("Text must not be empty")
	}

	return nil
}
