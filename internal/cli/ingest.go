package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ragengine/config"
	"ragengine/internal/adapter/chunker"
	"ragengine/internal/adapter/fs"
	"ragengine/internal/domain"
	"ragengine/internal/usecase"
)

var (
	ingestIncludes []string
	ingestExcludes []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Chunk, embed and index documents",
	Long: `Ingest files or directories into the vector index. Directories are
walked recursively for text and markdown files; the resulting snapshot
is stored in .ragengine/index.db within the data directory.

Examples:
  ragengine ingest ./docs
  ragengine ingest notes.md guide.txt
  ragengine ingest ./docs --exclude "**/drafts/**"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringArrayVar(&ingestIncludes, "include", nil, "glob pattern for files to ingest (default **/*.txt, **/*.md)")
	ingestCmd.Flags().StringArrayVar(&ingestExcludes, "exclude", nil, "glob pattern for files to skip")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No matching files found.")
		return nil
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ck, err := chunker.NewTextChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}

	idx, snapshotPath, err := openIndex(cfg, dataDir)
	if err != nil {
		return err
	}

	ingestUC := usecase.NewIngestUseCase(ck, embedder, idx, logger)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var (
		ingested    int
		totalChunks int
		warnings    []string
	)

	for _, file := range files {
		text, err := fs.ReadFile(file.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to read %s: %v", file.Path, err))
			bar.Add(1)
			continue
		}

		metadata := map[string]any{
			domain.MetaSource:       displayPath(file.Path),
			domain.MetaDocumentType: file.Type,
		}

		result, err := ingestUC.Ingest(cmd.Context(), text, metadata)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to ingest %s: %v", file.Path, err))
			bar.Add(1)
			continue
		}

		ingested++
		totalChunks += result.Chunks
		bar.Add(1)
	}

	if err := config.EnsureDataDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := idx.Persist(snapshotPath); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	stats := idx.Stats()
	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", ingested)
	fmt.Printf("  Chunks created: %d\n", totalChunks)
	fmt.Printf("  Index entries:  %d (dimension %d)\n", stats.Entries, stats.Dimension)

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", snapshotPath)
	return nil
}

// collectFiles expands each argument: directories are walked with the
// include/exclude patterns, plain files are taken as-is.
func collectFiles(args []string) ([]fs.File, error) {
	walker := fs.NewWalker(ingestIncludes, ingestExcludes)

	var files []fs.File
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", arg, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("path does not exist: %w", err)
		}

		if !info.IsDir() {
			files = append(files, fs.File{Path: path, Type: fs.DocumentType(path)})
			continue
		}

		found, err := walker.Walk(path)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// displayPath prefers a path relative to the working directory for the
// source metadata, falling back to the absolute path.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || len(rel) > len(path) {
		return path
	}
	return rel
}
