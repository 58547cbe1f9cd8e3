package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run agents until they finish",
	Long: `Spawn one root agent per --input and drive all agents, including any
children they spawn, until the scheduler is idle. Outcomes are printed as
JSON in completion order.

Examples:
  agentkernel run --provider mock --input "hello"
  agentkernel run --provider openai --model gpt-4o-mini --input "plan a trip" --workers 4`,
	RunE: runAgents,
}

// runOutput is the JSON document printed by the run command.
type runOutput struct {
	Outcomes []outcomeView    `json:"outcomes"`
	Stats    *scheduler.Stats `json:"stats,omitempty"`
}

type outcomeView struct {
	AgentID  string `json:"agent_id"`
	ParentID string `json:"parent_id,omitempty"`
	Status   string `json:"status"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayP("input", "i", nil, "Seed input for a root agent (repeatable)")
	runCmd.Flags().Bool("stats", false, "Include scheduler statistics in the output")

	runCmd.Flags().String("provider", "", "Oracle provider (anthropic, openai, mock)")
	runCmd.Flags().String("model", "", "Model identifier passed to the provider")
	runCmd.Flags().Int("workers", 0, "Number of scheduler workers")
	runCmd.Flags().Int("max-cycles", 0, "Cycle budget per agent")
	runCmd.Flags().String("memory", "", "Memory backend (memory, redis)")
	runCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("validate-args", true, "Validate tool arguments against their schema")

	bindFlag(runCmd, "oracle.provider", "provider")
	bindFlag(runCmd, "oracle.model", "model")
	bindFlag(runCmd, "scheduler.workers", "workers")
	bindFlag(runCmd, "agent.max_cycles", "max-cycles")
	bindFlag(runCmd, "memory.backend", "memory")
	bindFlag(runCmd, "logging.level", "log-level")
	bindFlag(runCmd, "tools.validate_args", "validate-args")
}

// bindFlag binds a flag to a config key. Viper only prefers the flag once it
// has been set, so unset flags leave file and environment values intact.
func bindFlag(cmd *cobra.Command, key, flag string) {
	_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
}

func runAgents(cmd *cobra.Command, _ []string) error {
	inputs, _ := cmd.Flags().GetStringArray("input")
	if len(inputs) == 0 {
		return errors.New("at least one --input is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := newRuntime(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer func() { _ = rt.close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, in := range inputs {
		if _, err := rt.kernel.Spawn(in); err != nil {
			return err
		}
	}

	outcomes, err := rt.kernel.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	out := runOutput{Outcomes: make([]outcomeView, 0, len(outcomes))}
	for _, o := range outcomes {
		out.Outcomes = append(out.Outcomes, viewOutcome(o))
	}

	if withStats, _ := cmd.Flags().GetBool("stats"); withStats {
		st := rt.kernel.Scheduler().Stats()
		out.Stats = &st
	}

	return writeJSON(cmd, out)
}

func viewOutcome(o scheduler.Outcome) outcomeView {
	v := outcomeView{AgentID: o.AgentID, ParentID: o.ParentID}

	if o.Err != nil {
		v.Status = "error"
		v.Error = o.Err.Error()
		return v
	}

	v.Status = o.Result.String()
	v.Result = o.Result.Spec

	return v
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
