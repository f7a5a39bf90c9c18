package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/resolver"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

type detectOutput struct {
	Query    string              `json:"query"`
	Detected bool                `json:"detected"`
	IsID     bool                `json:"is_id,omitempty"`
	Match    *resolver.Detection `json:"match,omitempty"`
}

var detectCmd = &cobra.Command{
	Use:   "detect <query>",
	Short: "Show which entity type a query looks like",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := detectOutput{Query: args[0], IsID: resolver.IsNumericID(args[0])}
		if d, ok := resolver.Detect(args[0]); ok {
			out.Detected = true
			out.Match = &d
		}

		if isJSONOutput() {
			outputSuccess(out, nil)
			return nil
		}
		switch {
		case out.IsID:
			fmt.Fprintln(stdout, ui.Info("numeric id, used as-is"))
		case out.Detected:
			fmt.Fprintf(stdout, "%s %s\n", ui.AccentBold.Render(out.Match.Kind.String()),
				ui.Hint(fmt.Sprintf("(%s, %s confidence)", out.Match.Pattern, out.Match.Confidence)))
		default:
			fmt.Fprintln(stdout, ui.Warning("no pattern matched; pass --type when resolving"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
