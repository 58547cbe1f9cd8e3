package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/config"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/oracle"
)

// execute runs the root command with args and returns stdout. Flag values
// are reset first because cobra keeps them between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	for _, name := range []string{"input", "stats", "provider", "model", "workers", "max-cycles", "memory", "log-level", "validate-args"} {
		f := runCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)

		if sv, ok := f.Value.(interface{ Replace([]string) error }); ok {
			require.NoError(t, sv.Replace(nil))
		} else {
			require.NoError(t, f.Value.Set(f.DefValue))
		}
		f.Changed = false
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestRunCommand_Mock(t *testing.T) {
	stdout, err := execute(t, "run", "--provider", "mock", "--input", "hello")
	require.NoError(t, err)

	var out runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	require.Len(t, out.Outcomes, 1)
	assert.Equal(t, "finished", out.Outcomes[0].Status)
	assert.Equal(t, map[string]any{"result": "hello"}, out.Outcomes[0].Result)
	assert.Nil(t, out.Stats)
}

func TestRunCommand_ManyInputsWithStats(t *testing.T) {
	stdout, err := execute(t, "run", "--provider", "mock", "--workers", "2", "--stats", "-i", "a", "-i", "b")
	require.NoError(t, err)

	var out runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	require.Len(t, out.Outcomes, 2)
	require.NotNil(t, out.Stats)
	assert.Equal(t, int64(2), out.Stats.Completed)
	assert.Equal(t, int64(4), out.Stats.CyclesExecuted)
}

func TestRunCommand_CycleBudget(t *testing.T) {
	stdout, err := execute(t, "run", "--provider", "mock", "--max-cycles", "1", "--input", "hello")
	require.NoError(t, err)

	var out runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	require.Len(t, out.Outcomes, 1)
	assert.Equal(t, "cycles_exceeded", out.Outcomes[0].Status)
}

func TestRunCommand_RequiresInput(t *testing.T) {
	_, err := execute(t, "run", "--provider", "mock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}

func TestToolsCommand(t *testing.T) {
	stdout, err := execute(t, "tools")
	require.NoError(t, err)

	var manifest []core.ManifestEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &manifest))

	names := make([]string, 0, len(manifest))
	for _, m := range manifest {
		names = append(names, m.Name)
	}

	assert.Equal(t, []string{"echo", "reverse_string", core.SpawnToolName}, names)
}

func TestNewOracle(t *testing.T) {
	o, err := newOracle(config.OracleConfig{Provider: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, oracle.Funcs{}, o)

	for _, p := range []string{"anthropic", "openai"} {
		o, err := newOracle(config.OracleConfig{Provider: p, APIKey: "test", MaxCalls: 2}, nil)
		require.NoError(t, err, p)
		assert.IsType(t, &oracle.ModelOracle{}, o, p)
	}

	_, err = newOracle(config.OracleConfig{Provider: "nope"}, nil)
	require.Error(t, err)
}

func TestNewMemory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	provider, closeFn, err := newMemory(config.MemoryConfig{
		Backend:  "redis",
		RedisURL: "redis://" + mr.Addr() + "/0",
		Prefix:   "test",
	})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	mem := provider("C-1")
	require.NoError(t, mem.Set(context.Background(), "k", "v"))
	assert.True(t, mr.Exists("test:C-1:k"))

	_, _, err = newMemory(config.MemoryConfig{Backend: "redis", RedisURL: "://bad"})
	require.Error(t, err)

	_, _, err = newMemory(config.MemoryConfig{Backend: "disk"})
	require.Error(t, err)
}
