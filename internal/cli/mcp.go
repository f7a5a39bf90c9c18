package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/mcp"
	"github.com/studiometa/productive-tools-sub004/internal/mcpclient"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

var (
	mcpClientFlag       string
	mcpStatusClientFlag string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run or register the MCP server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve resolver tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		s := mcp.NewServer(currentVersionInfo().Version, mcp.Deps{
			Resolver: a.resolver,
			Store:    a.store,
			Queue:    a.queue,
			Fetcher:  a.remote,
			DrainMax: a.drainMax,
			Logger:   logger,
		})
		return mcp.Serve(cmd.Context(), s, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func parseClient(name string) (mcpclient.Client, error) {
	if !mcpclient.ValidClient(name) {
		return "", fmt.Errorf("unknown client %q", name)
	}
	return mcpclient.Client(name), nil
}

func clientConfigPath() (mcpclient.Client, string, error) {
	client, err := parseClient(mcpClientFlag)
	if err != nil {
		return "", "", handleError(ErrMCPClientInvalid, err, "Valid clients: claude-code, claude-desktop, cursor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", handleError(ErrInternal, err, "")
	}
	path, err := mcpclient.ConfigPath(client, home)
	if err != nil {
		return "", "", handleError(ErrMCPClientInvalid, err, "")
	}
	return client, path, nil
}

var mcpInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register this server in an MCP client config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := clientConfigPath()
		if path == "" {
			return err
		}
		result, err := mcpclient.Install(path, mcpclient.BuildServerEntry(orgFlag))
		if err != nil {
			return handleError(ErrMCPConfigWriteError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"client": string(client), "config_path": path, "result": result.String()}, nil)
			return nil
		}
		switch result {
		case mcpclient.AlreadyInstalled:
			fmt.Fprintln(stdout, ui.Info(fmt.Sprintf("already installed for %s", client)))
		default:
			fmt.Fprintln(stdout, ui.Successf("%s for %s", result, client))
		}
		fmt.Fprintln(stdout, ui.Hint("Config: "+path))
		return nil
	},
}

var mcpRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove this server from an MCP client config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := clientConfigPath()
		if path == "" {
			return err
		}
		removed, err := mcpclient.Remove(path)
		if err != nil {
			return handleError(ErrMCPConfigWriteError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]any{"client": client, "config_path": path, "removed": removed}, nil)
			return nil
		}
		if !removed {
			fmt.Fprintln(stdout, ui.Info(fmt.Sprintf("not installed for %s", client)))
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("removed from %s", client))
		return nil
	},
}

var mcpStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether this server is registered in MCP clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		clients := mcpclient.AllClients()
		if mcpStatusClientFlag != "" {
			c, err := parseClient(mcpStatusClientFlag)
			if err != nil {
				return handleError(ErrMCPClientInvalid, err, "Valid clients: claude-code, claude-desktop, cursor")
			}
			clients = []mcpclient.Client{c}
		}

		statuses := make([]*mcpclient.ClientStatus, 0, len(clients))
		for _, c := range clients {
			path, err := mcpclient.ConfigPath(c, home)
			if err != nil {
				continue
			}
			st, err := mcpclient.Status(c, path)
			if err != nil {
				return handleError(ErrFileReadError, err, "")
			}
			statuses = append(statuses, st)
		}

		if isJSONOutput() {
			outputSuccess(statuses, &Meta{Count: len(statuses)})
			return nil
		}
		t := ui.NewTable(3)
		for _, st := range statuses {
			status := ui.Hint("not installed")
			if st.Installed {
				status = ui.Success("installed")
			}
			t.AddRow(string(st.Client), status, ui.Hint(st.ConfigPath))
		}
		fmt.Fprint(stdout, t.Render(ui.TermWidth()))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{mcpInstallCmd, mcpRemoveCmd} {
		c.Flags().StringVar(&mcpClientFlag, "client", string(mcpclient.ClaudeCode), "MCP client (claude-code, claude-desktop, cursor)")
	}
	mcpStatusCmd.Flags().StringVar(&mcpStatusClientFlag, "client", "", "Only show this client")

	mcpCmd.AddCommand(mcpServeCmd, mcpInstallCmd, mcpRemoveCmd, mcpStatusCmd)
	rootCmd.AddCommand(mcpCmd)
}
