package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragengine/config"
	"ragengine/internal/log"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logger  log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragengine",
	Short: "Retrieval-augmented generation engine for local document corpora",
	Long: `ragengine ingests documents into a local vector index and answers
questions against it, grounding a language model on the retrieved chunks.

Example usage:
  ragengine ingest ./docs              # Chunk, embed and index documents
  ragengine query -q "how do I deploy" # Ask a one-shot question
  ragengine chat                       # Converse with session memory`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = log.New(cfg.Logging.Level, cfg.Logging.JSON)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragengine.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
