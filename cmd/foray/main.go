// Package main provides the foray CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"foray/cli"
)

// defaultTraceDB is where trace subcommands look when --db is not given.
const defaultTraceDB = ".foray/trace.db"

var (
	// Global flags
	provider string
	rootDir  string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "foray",
		Short: "Budgeted multi-agent code retrieval",
		Long: `Foray answers "where is X in this codebase" questions.

Each query gets its own retrieval agent with search, read and symbol
tools. Agent selections are merged, resolved against the working tree
and packed into a token-budgeted context artifact on stdout.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", cli.DefaultProvider(), "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "Repository root to retrieve from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print pipeline progress to stderr")

	// Add commands
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(traceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func queryCmd() *cobra.Command {
	var extraQueries []string
	var hints []string
	var jsonOut bool
	var tracePath string

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Run retrieval agents and print the packed context artifact",
		Long: `Run one retrieval agent per query against the repository, merge their
selections and print a token-budgeted artifact on stdout.

Additional --query flags add parallel queries to the same run; the
artifact marks files that more than one query selected. Keyword hints
bias the relevance scan for the primary query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:  provider,
				Root:      rootDir,
				Verbose:   verbose,
				JSON:      jsonOut,
				TracePath: tracePath,
			}
			return cli.Query(context.Background(), append([]string{args[0]}, extraQueries...), hints, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&extraQueries, "query", "q", nil, "Additional query to run in parallel (repeatable)")
	cmd.Flags().StringArrayVar(&hints, "hint", nil, "Keyword hint for the primary query (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the artifact and metadata as JSON")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Record the run in a SQLite trace log at this path")

	return cmd
}

func scanCmd() *cobra.Command {
	var hints []string

	cmd := &cobra.Command{
		Use:   "scan [question]",
		Short: "Preview the relevance scan without any model calls",
		Long: `Rank repository files the way the pipeline seeds its agents: derive
search patterns from the query, count matches per file and render the
top files as a directory tree. Useful for checking what an agent would
see first, and it costs nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider: provider,
				Root:     rootDir,
				Verbose:  verbose,
			}
			return cli.Scan(context.Background(), args[0], hints, opts)
		},
	}

	cmd.Flags().StringArrayVar(&hints, "hint", nil, "Keyword hint (repeatable)")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools retrieval agents operate with",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func traceCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded retrieval runs",
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultTraceDB, "Path to the trace database")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.TraceList(context.Background(), dbPath, limit)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run with per-agent detail",
		Long:  `Show a recorded run. The run id may be any unique prefix of the full id.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.TraceShow(context.Background(), dbPath, args[0])
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(showCmd)

	return cmd
}
