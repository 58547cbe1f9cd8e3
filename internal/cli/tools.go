package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkernel/config"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool manifest",
	Long: `Print the manifest of every registered tool, in registration order,
exactly as it is handed to the planning step.`,
	Args: cobra.NoArgs,
	RunE: printTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func printTools(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := newRuntime(cfg, io.Discard)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer func() { _ = rt.close() }()

	return writeJSON(cmd, rt.kernel.Tools().Manifest())
}
