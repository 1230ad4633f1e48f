package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragengine/config"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the index snapshot",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	path := config.SnapshotPath(GetRootDir())

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No index to clear.")
			return nil
		}
		return fmt.Errorf("failed to remove index: %w", err)
	}

	fmt.Printf("Index removed: %s\n", path)
	return nil
}
