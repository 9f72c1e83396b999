package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/config"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	"github.com/avaolo/agknow/internal/ingest"
	logpkg "github.com/avaolo/agknow/internal/logger"
	"github.com/avaolo/agknow/internal/metrics"
	knowledgerepo "github.com/avaolo/agknow/internal/repository/knowledge"
	documentuc "github.com/avaolo/agknow/internal/usecase/document"
	embeddinguc "github.com/avaolo/agknow/internal/usecase/embedding"
)

var ingestFlags struct {
	source    string
	docType   string
	crop      string
	chemical  string
	country   string
	language  string
	relevance string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Extract, chunk and index documents into the knowledge base",
	Long: `Extract, chunk and index documents into the knowledge base.

Walks the given files and directories, extracts text (PDF or plain text),
splits it into overlapping chunks and bulk indexes them. Metadata flags
apply to every chunk of the run.

Examples:
  agknow ingest --doc-type regulation --country HR ./docs/fis
  agknow ingest --doc-type pesticide --source fis_portal karenca.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.source, "source", "", "document source label (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestFlags.docType, "doc-type", "", "document type (pesticide, crop_protection, fis, regulation, general)")
	ingestCmd.Flags().StringVar(&ingestFlags.crop, "crop", "", "crop the documents apply to")
	ingestCmd.Flags().StringVar(&ingestFlags.chemical, "chemical", "", "active chemical the documents describe")
	ingestCmd.Flags().StringVar(&ingestFlags.country, "country", "", "ISO country code")
	ingestCmd.Flags().StringVar(&ingestFlags.language, "language", "", "document language code")
	ingestCmd.Flags().StringVar(&ingestFlags.relevance, "relevance", "", "relevance tier (country, global)")
}

func runIngest(paths []string) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics.RegisterEmbeddingMetrics()

	budget := buildBudget(ctx, cfg, store, logger)
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}
	embedder := buildEmbedder(cfg.Embedding, store, budgetChecker, logger)

	knowRepo := knowledgerepo.New(store)
	if err := knowRepo.EnsureIndex(ctx, knowledgerepo.IndexParams{
		Dimensions:  cfg.Embedding.Dimensions,
		HNSWM:       cfg.Knowledge.HNSWM,
		EFConstruct: cfg.Knowledge.HNSWEFConstruct,
	}); err != nil {
		return fmt.Errorf("failed to ensure search index: %w", err)
	}
	docSvc := documentuc.New(knowRepo, embedder, documentuc.Config{
		DefaultLanguage: cfg.Knowledge.DefaultLanguage,
		Dimensions:      cfg.Embedding.Dimensions,
		MaxBatchSize:    cfg.Knowledge.MaxBatchSize,
		Concurrency:     cfg.Ingest.Concurrency,
	})

	files, err := collectFiles(paths, int64(cfg.Ingest.MaxFileSizeMB)*1024*1024, logger)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no ingestable files under %v", paths)
	}

	chunker := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	var total, indexed, failed int
	for _, path := range files {
		text, err := ingest.ExtractFile(path)
		if err != nil {
			logger.Warn("Extraction failed, skipping file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}

		inputs := chunkInputs(chunker, text, path, cfg.Ingest.MinChunkLength)
		if len(inputs) == 0 {
			logger.Warn("No usable chunks, skipping file", zap.String("path", path))
			continue
		}
		total += len(inputs)

		for start := 0; start < len(inputs); start += cfg.Knowledge.MaxBatchSize {
			end := start + cfg.Knowledge.MaxBatchSize
			if end > len(inputs) {
				end = len(inputs)
			}

			stats, items, err := docSvc.BulkIndex(ctx, inputs[start:end])
			if err != nil {
				return fmt.Errorf("bulk index %s: %w", path, err)
			}
			indexed += stats.Succeeded
			failed += stats.Failed
			for _, item := range items {
				if item.Err != nil {
					logger.Warn("Chunk rejected",
						zap.String("path", path),
						zap.String("doc_id", item.ID),
						zap.Error(item.Err),
					)
				}
			}
		}

		logger.Info("File ingested", zap.String("path", path), zap.Int("chunks", len(inputs)))
	}

	logger.Info("Ingest finished",
		zap.Int("files", len(files)),
		zap.Int("chunks", total),
		zap.Int("indexed", indexed),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d chunks failed", failed, total)
	}
	return nil
}

// collectFiles expands paths into regular files, skipping oversized ones.
func collectFiles(paths []string, maxSize int64, logger *zap.Logger) ([]string, error) {
	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxSize {
				logger.Warn("File exceeds size limit, skipping",
					zap.String("path", path),
					zap.Int64("size", info.Size()),
				)
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}

// chunkInputs turns extracted text into document inputs carrying the run's
// metadata flags. IDs stay empty so identical (source, text) chunks keep
// deterministic IDs and re-ingesting is idempotent.
func chunkInputs(chunker *ingest.Chunker, text, path string, minLen int) []documentuc.Input {
	source := ingestFlags.source
	if source == "" {
		source = filepath.Base(path)
	}

	chunks := chunker.Chunk(text)
	inputs := make([]documentuc.Input, 0, len(chunks))
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) < minLen {
			continue
		}
		inputs = append(inputs, documentuc.Input{
			Text: chunk,
			Attributes: knowledge.Attributes{
				Source:      source,
				Type:        knowledge.DocType(ingestFlags.docType),
				Crop:        ingestFlags.crop,
				Chemical:    ingestFlags.chemical,
				CountryCode: ingestFlags.country,
				Language:    ingestFlags.language,
				Relevance:   knowledge.Relevance(ingestFlags.relevance),
			},
		})
	}
	return inputs
}
