package config

import (
	"testing"
)

func TestGenerateNamespace(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		dim      int
		want     string
	}{
		{
			name:     "openaiプロバイダ",
			provider: "openai",
			model:    "text-embedding-ada-002",
			dim:      1536,
			want:     "openai:text-embedding-ada-002:1536",
		},
		{
			name:     "dim未設定",
			provider: "local",
			model:    "hash",
			dim:      0,
			want:     "local:hash:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateNamespace(tt.provider, tt.model, tt.dim)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		name         string
		namespace    string
		wantProvider string
		wantModel    string
		wantDim      int
		wantErr      bool
	}{
		{
			name:         "正常な形式",
			namespace:    "ollama:nomic-embed-text:768",
			wantProvider: "ollama",
			wantModel:    "nomic-embed-text",
			wantDim:      768,
		},
		{
			name:      "区切りが足りない",
			namespace: "openai:1536",
			wantErr:   true,
		},
		{
			name:      "dimが数値でない",
			namespace: "openai:model:abc",
			wantErr:   true,
		},
		{
			name:      "dimが負数",
			namespace: "openai:model:-1",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model, dim, err := ParseNamespace(tt.namespace)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNamespace failed: %v", err)
			}
			if provider != tt.wantProvider || model != tt.wantModel || dim != tt.wantDim {
				t.Errorf("got (%s, %s, %d), want (%s, %s, %d)",
					provider, model, dim, tt.wantProvider, tt.wantModel, tt.wantDim)
			}
		})
	}
}

func TestNamespaceRoundTrip(t *testing.T) {
	namespace := GenerateNamespace("openai", "text-embedding-3-small", 1536)
	provider, model, dim, err := ParseNamespace(namespace)
	if err != nil {
		t.Fatalf("ParseNamespace failed: %v", err)
	}
	if provider != "openai" || model != "text-embedding-3-small" || dim != 1536 {
		t.Errorf("round trip mismatch: (%s, %s, %d)", provider, model, dim)
	}
}
