// Package cli implements the command-line interface.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/config"
	"github.com/studiometa/productive-tools-sub004/internal/logging"
)

var (
	// Global flags
	orgFlag       string
	configPath    string
	statePathFlag string
	verbose       bool

	// Resolved values
	resolvedConfigPath string
	resolvedStatePath  string
	cfg                *config.Config
	state              *config.State
	env                config.Env
	logger             = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "productive",
	Short: "Productive.io from the command line",
	Long: `productive talks to the Productive.io API and turns the references people
actually use (emails, project numbers, names) into entity ids.

Lookups are answered from a local per-organization cache when it is fresh
and from the API otherwise. Use --json for agent and script output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(logging.Options{Verbose: verbose, JSON: jsonOutput})

		switch cmd.Name() {
		case "help", "version", "completion":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
			return nil
		}

		var err error
		resolvedConfigPath = config.ResolveConfigPath(configPath)
		cfg, err = config.LoadFrom(resolvedConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		resolvedStatePath = config.ResolveStatePath(statePathFlag, resolvedConfigPath, cfg)
		state, err = config.LoadState(resolvedStatePath)
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		env, err = config.ReadEnv()
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if s, err := sessionFrom(cmd); err == nil {
			s.close()
		}
		_ = logger.Sync()
	},
}

// Execute runs the CLI. The tenant cache opened by the command is owned by
// this call and closed before it returns.
func Execute(ctx context.Context) error {
	s := &session{}
	defer s.close()
	return rootCmd.ExecuteContext(withSession(ctx, s))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&orgFlag, "org", "", "Organization name from config")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&statePathFlag, "state", "", "Path to state file (overrides state_file in config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("org", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		loaded, err := config.LoadFrom(config.ResolveConfigPath(configPath))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, name := range loaded.OrgNames() {
			if strings.HasPrefix(name, toComplete) {
				out = append(out, name)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}
