package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/agentkernel/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentkernel",
	Short: "agentkernel - run goal-driven agents on a cooperative scheduler",
	Long: `agentkernel runs agents through the intent, plan, act, observe and
reflect loop. Agents call registered tools, may spawn child agents and are
driven by a cooperative scheduler until they finish or exhaust their budget.

Settings are read from .agentkernel.yaml and AGENTKERNEL_* environment
variables; flags override both.

Example:
  agentkernel run --provider mock --input "hello"`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .agentkernel.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".agentkernel")
	}

	config.ConfigureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	if viper.GetBool("verbose") {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
	}

	return nil
}
