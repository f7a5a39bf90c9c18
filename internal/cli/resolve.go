package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/resolver"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

var (
	resolveOpts resolver.Options
	resolveOne  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>...",
	Short: "Resolve references to Productive ids",
	Long: `Resolve emails, project numbers and names to entity ids.

Numeric ids are returned unchanged. Emails are looked up as people and
PRJ-123 style numbers as projects; anything else needs --type (or
--default-types to search several types).

Examples:
  productive resolve jane@example.com
  productive resolve PRJ-123
  productive resolve "Acme" --type company
  productive resolve "Design" --type service --project 1234 --first
  productive resolve --one "Website" --type project`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		ctx := cmd.Context()

		if len(args) > 1 {
			return resolveMany(cmd, a, args)
		}

		if resolveOne {
			c, err := a.resolver.ResolveOne(ctx, args[0], resolveOpts)
			if err != nil {
				return handleResolveError(err, args[0])
			}
			if isJSONOutput() {
				outputSuccess(c, nil)
				return nil
			}
			fmt.Fprintln(stdout, c.ID)
			return nil
		}

		res, err := a.resolver.Resolve(ctx, args[0], resolveOpts)
		if err != nil {
			return handleResolveError(err, args[0])
		}
		if isJSONOutput() {
			outputSuccess(res, &Meta{Count: len(res.Candidates), Source: string(res.Source), Tenant: a.org.ID})
			return nil
		}
		fmt.Fprint(stdout, renderCandidates(res.Candidates))
		if res.Ambiguous {
			fmt.Fprintln(stdout, ui.Hint(fmt.Sprintf("%d matches; use --first or a more specific query", len(res.Candidates))))
		}
		return nil
	},
}

type resolveManyItem struct {
	Query  string           `json:"query"`
	Result *resolver.Result `json:"result,omitempty"`
	Error  *ErrorInfo       `json:"error,omitempty"`
}

func resolveMany(cmd *cobra.Command, a *app, queries []string) error {
	outcomes := a.resolver.ResolveMany(cmd.Context(), queries, resolveOpts)

	items := make([]resolveManyItem, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		items[i] = resolveManyItem{Query: o.Query}
		res, err := o.Result, o.Err
		if err == nil && resolveOne {
			var c resolver.Candidate
			if c, err = res.Single(); err == nil {
				res.Candidates = []resolver.Candidate{c}
				res.Ambiguous = false
			}
		}
		if err != nil {
			failed++
			code, _ := resolveErrorCode(err)
			items[i].Error = &ErrorInfo{Code: code, Message: err.Error()}
			continue
		}
		items[i].Result = &res
	}

	if isJSONOutput() {
		outputSuccess(items, &Meta{Count: len(items), Tenant: a.org.ID})
		return nil
	}

	t := ui.NewTable(3)
	for _, item := range items {
		if item.Error != nil {
			t.AddRow(item.Query, ui.Error(""), item.Error.Message)
			continue
		}
		ids := make([]string, len(item.Result.Candidates))
		for i, c := range item.Result.Candidates {
			ids[i] = ui.ID(c.ID)
		}
		t.AddRow(item.Query, strings.Join(ids, ","), item.Result.Candidates[0].Label)
	}
	fmt.Fprint(stdout, t.Render(ui.TermWidth()))
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(items))
	}
	return nil
}

func renderCandidates(candidates []resolver.Candidate) string {
	t := ui.NewTable(4)
	for _, c := range candidates {
		marker := ""
		if c.Exact {
			marker = ui.SymbolSuccess
		}
		t.AddRow(ui.ID(c.ID), ui.Hint(c.Kind.String()), marker, c.Label)
	}
	return t.Render(ui.TermWidth())
}

// resolveErrorCode maps resolver failures to CLI error codes.
func resolveErrorCode(err error) (string, string) {
	if errors.Is(err, resolver.ErrEmptyQuery) {
		return ErrMissingArgument, "Pass a non-empty query"
	}
	code, ok := resolver.CodeOf(err)
	if !ok {
		return ErrInternal, ""
	}
	switch code {
	case resolver.NoMatch:
		return ErrRefNotFound, "Run 'productive cache sync' if the entity was created recently"
	case resolver.Ambiguous:
		return ErrRefAmbiguous, "Use a more specific query, --project, or --first"
	case resolver.NoKindDetected:
		return ErrKindRequired, "Pass --type (project, person, service, company, task)"
	case resolver.CollaboratorUnavailable:
		return ErrAPIUnavailable, "The API could not be reached; the entity may still exist"
	}
	return ErrInternal, ""
}

func handleResolveError(err error, query string) error {
	code, suggestion := resolveErrorCode(err)

	var re *resolver.ResolveError
	if !errors.As(err, &re) {
		return handleErrorMsg(code, fmt.Sprintf("failed to resolve '%s': %v", query, err), suggestion)
	}

	switch re.Code {
	case resolver.Ambiguous:
		if isJSONOutput() {
			return handleErrorWithDetails(code, re.Error(), suggestion, map[string]any{"candidates": re.Candidates})
		}
		return handleErrorMsg(code, re.Error()+"\n\n"+strings.TrimRight(renderCandidates(re.Candidates), "\n"), suggestion)
	case resolver.NoMatch:
		return handleErrorWithDetails(code, re.Error(), suggestion, map[string]any{"suggestions": re.Suggestions})
	}
	return handleErrorMsg(code, re.Error(), suggestion)
}

func init() {
	resolveCmd.Flags().Var(newKindValue(&resolveOpts.ExpectedKind), "type", "Expected entity type")
	resolveCmd.Flags().StringVar(&resolveOpts.OwnerID, "project", "", "Scope services and tasks to a project (projects to a company)")
	resolveCmd.Flags().BoolVar(&resolveOpts.PreferFirst, "first", false, "Return only the best candidate")
	resolveCmd.Flags().Var(newKindsValue(&resolveOpts.DefaultKinds), "default-types", "Types to search when the query has no recognisable shape")
	resolveCmd.Flags().IntVar(&resolveOpts.Limit, "limit", 0, "Maximum candidates per type")
	resolveCmd.Flags().BoolVar(&resolveOne, "one", false, "Require exactly one match and print only its id")
	_ = resolveCmd.RegisterFlagCompletionFunc("type", completeKinds)
	_ = resolveCmd.RegisterFlagCompletionFunc("default-types", completeKinds)
	rootCmd.AddCommand(resolveCmd)
}
