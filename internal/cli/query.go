package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ragengine/config"
	"ragengine/internal/adapter/cache"
	"ragengine/internal/adapter/memory"
	"ragengine/internal/domain"
	"ragengine/internal/port"
	"ragengine/internal/usecase"
)

var (
	queryText    string
	queryTopK    int
	queryFilters []string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a one-shot question against the index",
	Long: `Embed the question, retrieve the most similar chunks and generate a
grounded answer. Filters restrict retrieval by chunk metadata; repeating
a key accepts any of its values.

Examples:
  ragengine query -q "how do I deploy"
  ragengine query -q "release steps" --top-k 8 --filter document_type=md
  ragengine query -q "auth" --filter source=a.md --filter source=b.md`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to answer (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "metadata filter as key=value")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	if _, err := os.Stat(config.SnapshotPath(dataDir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'ragengine ingest' first")
	}

	filter, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	uc, _, err := newQueryUseCase(cfg, dataDir)
	if err != nil {
		return err
	}

	result, err := uc.Query(cmd.Context(), usecase.QueryRequest{
		Question: queryText,
		TopK:     queryTopK,
		Filter:   filter,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(queryOutput(result), "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, s := range result.Sources {
			fmt.Printf("  [%d] %v (score: %.3f)\n", i+1, s.Metadata[domain.MetaSource], s.Score)
		}
	}
	return nil
}

// newQueryUseCase wires the full pipeline. The session registry is
// returned alongside so chat can manage sessions against the same
// store the pipeline records into.
func newQueryUseCase(cfg *config.Config, dataDir string) (*usecase.QueryUseCase, *memory.Registry, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	model, err := newLLM(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create language model: %w", err)
	}

	idx, _, err := openIndex(cfg, dataDir)
	if err != nil {
		return nil, nil, err
	}

	sessions := memory.NewRegistry(
		time.Duration(cfg.Sessions.Timeout),
		cfg.Sessions.MaxSessions,
		cfg.Sessions.MaxHistoryTurns,
		logger,
	)

	var answers *cache.AnswerCache
	if cfg.Cache.Enabled {
		answers = cache.New(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTL))
	}

	uc := usecase.NewQueryUseCase(embedder, idx, model, sessions, answers, usecase.QueryOptions{
		DefaultTopK:     cfg.Retrieval.DefaultTopK,
		MaxTopK:         cfg.Retrieval.MaxTopK,
		MaxContextTurns: cfg.Sessions.MaxContextTurns,
		MinScore:        cfg.Retrieval.MinScore,
	}, logger)

	return uc, sessions, nil
}

// parseFilters turns repeated key=value flags into a search filter.
// Repeating a key collects its values into an accepted set.
func parseFilters(pairs []string) (port.SearchFilter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filter := make(port.SearchFilter, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}

		switch existing := filter[key].(type) {
		case nil:
			filter[key] = value
		case string:
			filter[key] = []any{existing, value}
		case []any:
			filter[key] = append(existing, value)
		}
	}
	return filter, nil
}

type sourceOutput struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

type resultOutput struct {
	Answer  string         `json:"answer"`
	Sources []sourceOutput `json:"sources"`
}

func queryOutput(result domain.QueryResult) resultOutput {
	out := resultOutput{Answer: result.Answer}
	for _, s := range result.Sources {
		source, _ := s.Metadata[domain.MetaSource].(string)
		out.Sources = append(out.Sources, sourceOutput{
			Source: source,
			Score:  s.Score,
			Text:   s.Text,
		})
	}
	return out
}
