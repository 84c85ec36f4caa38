// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/retrievit"
	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/chunking"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/eval"
	"github.com/poiesic/retrievit/ingestion"
	"github.com/poiesic/retrievit/retrieval"
)

func main() {
	app := &cli.App{
		Name:  "retrievit",
		Usage: "Hybrid retrieval engine over local documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Chunk, embed, and store documents",
				ArgsUsage: "[file ...]",
				Action:    ingestCommand,
				Flags: append(modelFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Document name when reading from stdin",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Characters per chunk",
						Value: chunking.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Characters shared between adjacent chunks",
						Value: chunking.DefaultOverlap,
					},
					&cli.StringFlag{
						Name:  "chunk-strategy",
						Usage: "Chunking strategy (fixed, recursive, page)",
						Value: "fixed",
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Retrieve the chunks most relevant to a query",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: append(modelFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Retrieval strategy (dense, sparse, hybrid)",
						Value:   "hybrid",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   retrieval.DefaultTopK,
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rescore candidates with the rerank model",
					},
					&cli.BoolFlag{
						Name:  "diversify",
						Usage: "Apply maximal marginal relevance selection",
					},
					&cli.Float64Flag{
						Name:  "mmr-lambda",
						Usage: "Relevance/diversity tradeoff in [0,1]",
						Value: retrieval.DefaultMMRLambda,
					},
				),
			},
			{
				Name:   "eval",
				Usage:  "Run a benchmark dataset against retrieval configurations",
				Action: evalCommand,
				Flags: append(modelFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "Path to the benchmark dataset JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "strategies",
						Usage: "Comma-separated strategies to evaluate",
						Value: "dense,sparse,hybrid",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results per query",
						Value:   retrieval.DefaultTopK,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Emit the full JSON report instead of the table",
					},
				),
			},
			{
				Name:   "compact",
				Usage:  "Remove obsolete document versions and their data",
				Action: compactCommand,
				Flags: append(modelFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show document and chunk counts",
				Action: statsCommand,
				Flags: append(modelFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// modelFlags are the embedding service flags shared by every command
// that opens a database.
func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "Model service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "rerank-model",
			Usage: "Rerank model name (empty disables reranking)",
		},
		&cli.StringFlag{
			Name:  "judge-model",
			Usage: "Judge model name for generation metrics (empty skips them)",
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithRerankModel(c.String("rerank-model")),
		ai.WithJudgeModel(c.String("judge-model")),
	)
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	strategy, err := chunking.ParseStrategy(c.String("chunk-strategy"))
	if err != nil {
		return err
	}
	chunkingConfig := chunking.DefaultConfig()
	chunkingConfig.ChunkSize = c.Int("chunk-size")
	chunkingConfig.Overlap = c.Int("overlap")
	chunkingConfig.Strategy = strategy
	if err := chunkingConfig.Validate(); err != nil {
		return err
	}

	db, err := retrievit.NewDatabase(c.String("db"),
		retrievit.WithAIConfig(aiConfigFromFlags(c)),
		retrievit.WithChunkingConfig(chunkingConfig),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	sources, err := gatherSources(c)
	if err != nil {
		return err
	}

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	summaries := pipeline.IngestAll(ctx, sources, func(stage string, fraction float64) {
		fmt.Fprintf(os.Stderr, "\r%-10s %3.0f%%", stage, fraction*100)
	})
	fmt.Fprintln(os.Stderr)

	var failed int
	for _, summary := range summaries {
		if summary.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", summary.Document, summary.Err)
			continue
		}
		fmt.Printf("%s: %d chunks created, %d skipped, %d failed (%s)\n",
			summary.Document, summary.ChunksCreated, summary.ChunksSkipped,
			summary.Failures, summary.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(sources))
	}
	return nil
}

// gatherSources reads the documents named on the command line, or stdin
// when no files are given.
func gatherSources(c *cli.Context) ([]ingestion.Source, error) {
	if c.NArg() == 0 {
		name := c.String("name")
		if name == "" {
			return nil, fmt.Errorf("--name is required when reading from stdin")
		}
		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []ingestion.Source{{Name: name, Text: string(text)}}, nil
	}

	sources := make([]ingestion.Source, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		sources = append(sources, ingestion.Source{
			Name:       filepath.Base(path),
			Text:       string(text),
			SourcePath: path,
		})
	}
	return sources, nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query text is required")
	}

	strategy, err := core.ParseStrategy(c.String("strategy"))
	if err != nil {
		return err
	}

	retrievalConfig := retrieval.DefaultConfig()
	retrievalConfig.TopK = c.Int("top-k")
	retrievalConfig.Rerank = c.Bool("rerank")
	retrievalConfig.Diversify = c.Bool("diversify")
	retrievalConfig.MMRLambda = c.Float64("mmr-lambda")

	db, err := retrievit.NewDatabase(c.String("db"),
		retrievit.WithAIConfig(aiConfigFromFlags(c)),
		retrievit.WithRetrievalConfig(retrievalConfig),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	orchestrator, err := db.NewOrchestrator()
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	results, err := orchestrator.Retrieve(ctx, retrieval.Request{
		Query:    query,
		Strategy: strategy,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, result := range results {
		fmt.Printf("%2d. [%.4f] chunk %d\n%s\n\n",
			result.Rank, result.Score, result.Chunk.Id, result.Chunk.Text)
	}
	return nil
}

func evalCommand(c *cli.Context) error {
	ctx := context.Background()

	items, err := eval.LoadDataset(c.String("dataset"))
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	var configs []eval.RunConfig
	for _, name := range strings.Split(c.String("strategies"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		strategy, err := core.ParseStrategy(name)
		if err != nil {
			return err
		}
		configs = append(configs, eval.RunConfig{
			Name:     name,
			Strategy: strategy,
			TopK:     c.Int("top-k"),
		})
	}
	if len(configs) == 0 {
		return fmt.Errorf("no strategies to evaluate")
	}

	db, err := retrievit.NewDatabase(c.String("db"),
		retrievit.WithAIConfig(aiConfigFromFlags(c)),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	harness, err := db.NewHarness()
	if err != nil {
		return fmt.Errorf("failed to create harness: %w", err)
	}

	report, err := harness.Run(ctx, items, configs)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if c.Bool("json") {
		return report.WriteJSON(os.Stdout)
	}
	return report.WriteTable(os.Stdout)
}

func compactCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := retrievit.NewDatabase(c.String("db"),
		retrievit.WithAIConfig(aiConfigFromFlags(c)),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	summary, err := db.ChunkRepository().Compact(ctx)
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}

	fmt.Printf("removed %d obsolete documents and %d chunks\n",
		summary.Documents, summary.Chunks)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := retrievit.NewDatabase(c.String("db"),
		retrievit.WithAIConfig(aiConfigFromFlags(c)),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	documents, err := db.DocumentRepository().GetAllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	chunkCount, err := db.ChunkRepository().GetChunkCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	var obsolete int
	for _, doc := range documents {
		if doc.Obsolete {
			obsolete++
		}
	}

	fmt.Printf("documents: %d (%d obsolete versions)\n", len(documents), obsolete)
	fmt.Printf("chunks:    %d\n", chunkCount)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
