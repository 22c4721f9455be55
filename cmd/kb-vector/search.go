package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brbranch/kb_vector/internal/bootstrap"
	"github.com/brbranch/kb_vector/internal/service"
)

// SearchOptions holds parsed search command options
type SearchOptions struct {
	TopK       int
	Format     string
	ConfigPath string
	UseStdin   bool
	Query      string
}

// JSONOutput represents the JSON output format
type JSONOutput struct {
	Results []JSONResult `json:"results"`
}

// JSONResult represents a single result in JSON output
type JSONResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// parseSearchFlags parses command line arguments for search command
func parseSearchFlags(args []string) (*SearchOptions, error) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // suppress default error output

	opts := &SearchOptions{}

	// Long flags
	fs.IntVar(&opts.TopK, "top-k", 5, "Number of results")
	fs.StringVar(&opts.Format, "format", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")
	fs.BoolVar(&opts.UseStdin, "stdin", false, "Read query from stdin")

	// Short flags
	fs.IntVar(&opts.TopK, "k", 5, "Number of results")
	fs.StringVar(&opts.Format, "f", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.Format == "" {
		opts.Format = "text"
	}

	// Get query from remaining args
	opts.Query = strings.Join(fs.Args(), " ")

	// Validation
	if !opts.UseStdin && opts.Query == "" {
		return nil, fmt.Errorf("query is required (or use --stdin)")
	}
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("top-k must be greater than 0")
	}
	if opts.Format != "text" && opts.Format != "json" {
		return nil, fmt.Errorf("invalid format: %s (must be text or json)", opts.Format)
	}

	return opts, nil
}

// runSearchCmd is the entry point for search command
func runSearchCmd(args []string) error {
	opts, err := parseSearchFlags(args)
	if err != nil {
		return err
	}

	// Read query from stdin if requested
	if opts.UseStdin {
		query, err := readQueryFromStdin()
		if err != nil {
			return fmt.Errorf("failed to read query from stdin: %w", err)
		}
		opts.Query = query
	}

	if opts.Query == "" {
		return fmt.Errorf("query is empty")
	}

	// Initialize services
	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	resp, err := services.VectorService.Search(ctx, &service.SearchRequest{
		Query: opts.Query,
		TopK:  &opts.TopK,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	// Output results
	switch opts.Format {
	case "json":
		if err := formatJSONOutput(os.Stdout, resp.Results); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	default:
		formatTextOutput(os.Stdout, resp.Results)
	}

	return nil
}

// readQueryFromStdin reads a single line query from stdin
func readQueryFromStdin() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}

// formatTextOutput outputs results in human-readable text format
func formatTextOutput(w io.Writer, results []service.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	for i, r := range results {
		fmt.Fprintf(w, "[%d] %s (score: %.2f)\n", i+1, r.ID, r.Score)

		// Truncated text content
		text := truncateText(r.Text, 60)
		fmt.Fprintf(w, "    %s\n", text)

		fmt.Fprintln(w)
	}
}

// formatJSONOutput outputs results in JSON format
func formatJSONOutput(w io.Writer, results []service.SearchResult) error {
	output := JSONOutput{
		Results: make([]JSONResult, 0, len(results)),
	}

	for _, r := range results {
		output.Results = append(output.Results, JSONResult{
			ID:       r.ID,
			Text:     r.Text,
			Score:    r.Score,
			Metadata: r.Metadata,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// truncateText truncates text to maxLen and adds "..." if truncated
func truncateText(text string, maxLen int) string {
	if text == "" || len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + " ..."
}
