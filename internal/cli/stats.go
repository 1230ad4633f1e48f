package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragengine/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	path := config.SnapshotPath(dataDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'ragengine ingest' first")
	}

	idx, _, err := openIndex(cfg, dataDir)
	if err != nil {
		return err
	}

	stats := idx.Stats()
	fmt.Printf("Index: %s\n", path)
	fmt.Printf("  Entries:   %d\n", stats.Entries)
	fmt.Printf("  Dimension: %d\n", stats.Dimension)
	return nil
}
