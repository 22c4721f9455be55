package main

import (
	"fmt"
	"os"
)

// ビルド時変数（-ldflags で変更可能）
var version = "dev"

func main() {
	var err error

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		err = runAddCmd(os.Args[2:])
	case "add-batch":
		err = runAddBatchCmd(os.Args[2:])
	case "search":
		err = runSearchCmd(os.Args[2:])
	case "delete":
		err = runDeleteCmd(os.Args[2:])
	case "clear":
		err = runClearCmd(os.Args[2:])
	case "size":
		err = runSizeCmd(os.Args[2:])
	case "version", "-v", "--version":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// printUsage prints the usage information
func printUsage() {
	fmt.Println(`kb-vector - Persistent text embedding vector store

Usage:
  kb-vector <command> [options]

Commands:
  add        Add a text entry
  add-batch  Add multiple text entries (one per stdin line)
  search     Search entries by semantic similarity
  delete     Delete an entry by id
  clear      Remove all entries
  size       Print the number of stored entries
  version    Print version information
  help       Print this help message

Add Options:
  -m, --meta string        Metadata as a JSON object
  -f, --format string      Output format: text, json (default: text)
  -c, --config string      Config file path

Search Options:
  -k, --top-k int          Number of results (default: 5)
  -f, --format string      Output format: text, json (default: text)
  -c, --config string      Config file path
  --stdin                  Read query from stdin

Examples:
  kb-vector add "the quick brown fox"
  kb-vector add -m '{"source":"docs"}' "installation guide"
  cat texts.txt | kb-vector add-batch
  kb-vector search -k 10 "how to install"
  kb-vector delete 3f1a9c2e-...
  kb-vector size`)
}

// printVersion prints the version information
func printVersion() {
	fmt.Printf("kb-vector version %s\n", version)
}
