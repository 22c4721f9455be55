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

// AddOptions holds parsed add command options
type AddOptions struct {
	Meta       string
	Format     string
	ConfigPath string
	Text       string
}

// parseAddFlags parses command line arguments for add command
func parseAddFlags(args []string) (*AddOptions, error) {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &AddOptions{}

	fs.StringVar(&opts.Meta, "meta", "", "Metadata as a JSON object")
	fs.StringVar(&opts.Format, "format", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")

	fs.StringVar(&opts.Meta, "m", "", "Metadata as a JSON object")
	fs.StringVar(&opts.Format, "f", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Text = strings.Join(fs.Args(), " ")

	if opts.Text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if opts.Format != "text" && opts.Format != "json" {
		return nil, fmt.Errorf("invalid format: %s (must be text or json)", opts.Format)
	}

	return opts, nil
}

// parseMetadata parses a JSON object string into a metadata map
func parseMetadata(metaStr string) (map[string]any, error) {
	if metaStr == "" {
		return nil, nil
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(metaStr), &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return metadata, nil
}

// runAddCmd is the entry point for add command
func runAddCmd(args []string) error {
	opts, err := parseAddFlags(args)
	if err != nil {
		return err
	}

	metadata, err := parseMetadata(opts.Meta)
	if err != nil {
		return err
	}

	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	resp, err := services.VectorService.Add(ctx, &service.AddRequest{
		Text:     opts.Text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	switch opts.Format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]string{"id": resp.ID})
	default:
		fmt.Println(resp.ID)
	}

	return nil
}

// runAddBatchCmd is the entry point for add-batch command
// Texts are read from stdin, one entry per line (empty lines are skipped)
func runAddBatchCmd(args []string) error {
	fs := flag.NewFlagSet("add-batch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var format, configPath string
	fs.StringVar(&format, "format", "text", "Output format: text|json")
	fs.StringVar(&format, "f", "text", "Output format: text|json")
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&configPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format: %s (must be text or json)", format)
	}

	texts, err := readLines(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read texts from stdin: %w", err)
	}
	if len(texts) == 0 {
		return fmt.Errorf("no texts received on stdin")
	}

	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	resp, err := services.VectorService.AddBatch(ctx, &service.AddBatchRequest{
		Texts: texts,
	})
	if err != nil {
		return fmt.Errorf("add-batch failed: %w", err)
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string][]string{"ids": resp.IDs})
	default:
		for _, id := range resp.IDs {
			fmt.Println(id)
		}
	}

	return nil
}

// readLines reads non-empty trimmed lines from r
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// runDeleteCmd is the entry point for delete command
func runDeleteCmd(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&configPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: kb-vector delete [options] <id>")
	}
	id := fs.Arg(0)

	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	deleted, err := services.VectorService.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	if deleted {
		fmt.Printf("deleted %s\n", id)
	} else {
		fmt.Printf("not found: %s\n", id)
	}

	return nil
}

// runClearCmd is the entry point for clear command
func runClearCmd(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&configPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	if err := services.VectorService.Clear(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	fmt.Println("cleared")
	return nil
}

// runSizeCmd is the entry point for size command
func runSizeCmd(args []string) error {
	fs := flag.NewFlagSet("size", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&configPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	services, cleanup, err := bootstrap.Initialize(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	size, err := services.VectorService.Size(ctx)
	if err != nil {
		return fmt.Errorf("size failed: %w", err)
	}

	fmt.Println(size)
	return nil
}
