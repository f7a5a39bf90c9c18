package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/config"
	"github.com/studiometa/productive-tools-sub004/internal/productive"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

var (
	orgAddID         string
	orgAddToken      string
	orgAddBaseURL    string
	orgAddDefault    bool
	orgRemoveConfirm bool
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage configured organizations",
}

type orgListItem struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	BaseURL string `json:"base_url,omitempty"`
	Default bool   `json:"default"`
	Active  bool   `json:"active"`
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured organizations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		active := config.SelectOrg(orgFlag, state)
		if active == "" {
			active = c.DefaultOrg
		}

		items := make([]orgListItem, 0, len(c.Orgs))
		for _, name := range c.OrgNames() {
			oc := c.Orgs[name]
			items = append(items, orgListItem{
				Name:    name,
				ID:      oc.ID,
				BaseURL: oc.BaseURL,
				Default: name == c.DefaultOrg,
				Active:  name == active,
			})
		}

		if isJSONOutput() {
			outputSuccess(items, &Meta{Count: len(items)})
			return nil
		}
		if len(items) == 0 {
			if env.OrgID != "" {
				fmt.Fprintln(stdout, ui.Info("using organization "+env.OrgID+" from PRODUCTIVE_ORG_ID"))
				return nil
			}
			fmt.Fprintln(stdout, ui.Info("no organizations configured"))
			fmt.Fprintln(stdout, ui.Hint("Add one with 'productive org add <name> --id <org-id> --token <token>'"))
			return nil
		}

		t := ui.NewTable(3)
		for _, it := range items {
			marker := " "
			if it.Active {
				marker = ui.Accent.Render("*")
			}
			label := it.Name
			if it.Default {
				label += ui.Hint(" (default)")
			}
			t.AddRow(marker, label, ui.ID(it.ID))
		}
		fmt.Fprint(stdout, t.Render(ui.TermWidth()))
		return nil
	},
}

var orgUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the organization used by later commands",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return getConfig().OrgNames(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if _, ok := getConfig().Orgs[name]; !ok {
			return handleErrorMsg(ErrOrgNotFound, fmt.Sprintf("organization '%s' not found in config", name),
				"Run 'productive org list' to see configured organizations")
		}

		next := *state
		next.ActiveOrg = name
		if err := config.SaveState(resolvedStatePath, &next); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		*state = next

		if isJSONOutput() {
			outputSuccess(map[string]string{"active_org": name}, nil)
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Using organization %s", name))
		return nil
	},
}

var orgAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update an organization",
	Long: `Add an organization to the config file, or update an existing one.

Examples:
  productive org add studio --id 12345 --token $PRODUCTIVE_API_TOKEN --default`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" || strings.ContainsAny(name, " \t") {
			return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("invalid organization name %q", args[0]), "Use a single word")
		}

		c := getConfig()
		oc, exists := c.Orgs[name]
		if orgAddID != "" {
			oc.ID = orgAddID
		}
		if orgAddToken != "" {
			oc.Token = orgAddToken
		}
		if orgAddBaseURL != "" {
			oc.BaseURL = orgAddBaseURL
		}
		if oc.ID == "" {
			return handleErrorMsg(ErrMissingArgument, "--id is required", "Find the organization id in the Productive URL")
		}

		if c.Orgs == nil {
			c.Orgs = make(map[string]config.OrgConfig)
		}
		c.Orgs[name] = oc
		if orgAddDefault || c.DefaultOrg == "" {
			c.DefaultOrg = name
		}
		if err := config.SaveTo(resolvedConfigPath, c); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		cfg = c

		if isJSONOutput() {
			outputSuccess(orgListItem{Name: name, ID: oc.ID, BaseURL: oc.BaseURL, Default: c.DefaultOrg == name}, nil)
			return nil
		}
		verb := "Added"
		if exists {
			verb = "Updated"
		}
		fmt.Fprintln(stdout, ui.Successf("%s organization %s", verb, name))
		fmt.Fprintln(stdout, ui.Hint("Config: "+resolvedConfigPath))
		return nil
	},
}

var orgRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an organization from the config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		c := getConfig()
		if _, ok := c.Orgs[name]; !ok {
			return handleErrorMsg(ErrOrgNotFound, fmt.Sprintf("organization '%s' not found in config", name), "")
		}
		if !orgRemoveConfirm {
			return handleErrorMsg(ErrInvalidInput, "refusing to remove without --confirm", "Re-run with --confirm")
		}

		delete(c.Orgs, name)
		if c.DefaultOrg == name {
			c.DefaultOrg = ""
		}
		if err := config.SaveTo(resolvedConfigPath, c); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		if state.ActiveOrg == name {
			next := *state
			next.ActiveOrg = ""
			if err := config.SaveState(resolvedStatePath, &next); err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
			*state = next
		}

		if isJSONOutput() {
			outputSuccess(map[string]string{"removed": name}, nil)
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Removed organization %s", name))
		return nil
	},
}

func init() {
	orgAddCmd.Flags().StringVar(&orgAddID, "id", "", "Productive organization id")
	orgAddCmd.Flags().StringVar(&orgAddToken, "token", "", "API token")
	orgAddCmd.Flags().StringVar(&orgAddBaseURL, "base-url", "", "API base URL (default "+productive.DefaultBaseURL+")")
	orgAddCmd.Flags().BoolVar(&orgAddDefault, "default", false, "Make this the default organization")
	orgRemoveCmd.Flags().BoolVar(&orgRemoveConfirm, "confirm", false, "Confirm removal")

	orgCmd.AddCommand(orgListCmd, orgUseCmd, orgAddCmd, orgRemoveCmd)
	rootCmd.AddCommand(orgCmd)
}
