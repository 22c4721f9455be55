package embedder

import (
	"context"
	"errors"
	"testing"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	emb := NewLocalEmbedder(128)

	first, err := emb.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	second, err := emb.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("same text produced different vectors at element %d", i)
		}
	}
}

func TestLocalEmbedder_DifferentTextsDiffer(t *testing.T) {
	emb := NewLocalEmbedder(128)

	vecs, err := emb.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	same := true
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestLocalEmbedder_Dimension(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		wantDim int
	}{
		{name: "明示的な次元", dim: 64, wantDim: 64},
		{name: "0はデフォルト次元", dim: 0, wantDim: DefaultLocalDim},
		{name: "負値はデフォルト次元", dim: -5, wantDim: DefaultLocalDim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := NewLocalEmbedder(tt.dim)
			if emb.Dimension() != tt.wantDim {
				t.Errorf("expected dimension %d, got %d", tt.wantDim, emb.Dimension())
			}

			vecs, err := emb.Embed(context.Background(), []string{"test"})
			if err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			if len(vecs[0]) != tt.wantDim {
				t.Errorf("expected vector length %d, got %d", tt.wantDim, len(vecs[0]))
			}
		})
	}
}

func TestLocalEmbedder_BatchOrder(t *testing.T) {
	emb := NewLocalEmbedder(32)

	texts := []string{"one", "two", "three"}
	batch, err := emb.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	// バッチの各要素が単件埋め込みと一致すること（順序保証）
	for i, text := range texts {
		single, err := emb.Embed(context.Background(), []string{text})
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		for j := range single[0] {
			if batch[i][j] != single[0][j] {
				t.Fatalf("batch element %d does not match single embedding", i)
			}
		}
	}
}

func TestLocalEmbedder_EmptyInput(t *testing.T) {
	emb := NewLocalEmbedder(32)

	if _, err := emb.Embed(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}
