package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/brbranch/kb_vector/internal/service"
)

func TestParseSearchFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    *SearchOptions
		wantErr bool
	}{
		{
			name: "クエリのみ",
			args: []string{"search", "query"},
			want: &SearchOptions{TopK: 5, Format: "text", Query: "search query"},
		},
		{
			name: "top-k指定",
			args: []string{"-k", "10", "query"},
			want: &SearchOptions{TopK: 10, Format: "text", Query: "query"},
		},
		{
			name: "json出力",
			args: []string{"-f", "json", "query"},
			want: &SearchOptions{TopK: 5, Format: "json", Query: "query"},
		},
		{
			name: "stdin指定ならクエリ省略可",
			args: []string{"--stdin"},
			want: &SearchOptions{TopK: 5, Format: "text", UseStdin: true},
		},
		{
			name:    "クエリなし",
			args:    []string{},
			wantErr: true,
		},
		{
			name:    "top-kが0",
			args:    []string{"-k", "0", "query"},
			wantErr: true,
		},
		{
			name:    "不正なformat",
			args:    []string{"-f", "xml", "query"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSearchFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSearchFlags failed: %v", err)
			}
			if got.TopK != tt.want.TopK || got.Format != tt.want.Format ||
				got.Query != tt.want.Query || got.UseStdin != tt.want.UseStdin {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatTextOutput(t *testing.T) {
	var buf bytes.Buffer

	results := []service.SearchResult{
		{ID: "id-1", Text: "first result", Score: 0.95},
		{ID: "id-2", Text: "second result", Score: 0.80},
	}

	formatTextOutput(&buf, results)

	out := buf.String()
	if !strings.Contains(out, "[1] id-1 (score: 0.95)") {
		t.Errorf("missing first result header: %s", out)
	}
	if !strings.Contains(out, "first result") {
		t.Errorf("missing first result text: %s", out)
	}
	if !strings.Contains(out, "[2] id-2 (score: 0.80)") {
		t.Errorf("missing second result header: %s", out)
	}
}

func TestFormatTextOutput_Empty(t *testing.T) {
	var buf bytes.Buffer

	formatTextOutput(&buf, nil)

	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("unexpected empty output: %s", buf.String())
	}
}

func TestFormatJSONOutput(t *testing.T) {
	var buf bytes.Buffer

	results := []service.SearchResult{
		{ID: "id-1", Text: "text", Score: 0.5, Metadata: map[string]any{"k": "v"}},
	}

	if err := formatJSONOutput(&buf, results); err != nil {
		t.Fatalf("formatJSONOutput failed: %v", err)
	}

	var output JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(output.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(output.Results))
	}
	if output.Results[0].ID != "id-1" || output.Results[0].Score != 0.5 {
		t.Errorf("unexpected result: %+v", output.Results[0])
	}
	if output.Results[0].Metadata["k"] != "v" {
		t.Errorf("metadata lost: %+v", output.Results[0].Metadata)
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{
			name:   "短いテキストはそのまま",
			text:   "short",
			maxLen: 10,
			want:   "short",
		},
		{
			name:   "長いテキストは省略",
			text:   "0123456789abcdef",
			maxLen: 10,
			want:   "0123456789 ...",
		},
		{
			name:   "空文字",
			text:   "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateText(tt.text, tt.maxLen); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
