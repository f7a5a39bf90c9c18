package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

var (
	getParams  []string
	getNoCache bool
)

var getCmd = &cobra.Command{
	Use:   "get <endpoint>",
	Short: "Read an API endpoint through the query cache",
	Long: `Read a Productive API endpoint, serving repeated reads from the local
query cache. A stale cached result is returned immediately and a refresh is
queued; run 'productive cache queue drain' to process refreshes.

Examples:
  productive get projects -p filter[status]=1
  productive get people/42
  productive get time_entries -p filter[after]=2024-01-01 --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(getParams)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Use -p key=value")
		}

		a, err := requireApp(cmd)
		if a == nil {
			return err
		}

		start := time.Now()
		endpoint := strings.Trim(args[0], "/")

		var res cache.Cached
		if getNoCache {
			value, ferr := a.remote.Fetch(cmd.Context(), endpoint, params)
			if ferr == nil {
				_ = a.store.PutQuery(cmd.Context(), cache.CacheKey(endpoint, params), endpoint, params, value)
			}
			res, err = cache.Cached{Value: value, StoredAt: time.Now()}, ferr
		} else {
			res, err = a.fetcher.Get(cmd.Context(), endpoint, params)
		}
		if err != nil {
			return handleError(ErrAPIUnavailable, err, "")
		}

		if isJSONOutput() {
			outputSuccess(res.Value, &Meta{
				Cached: res.FromCache,
				Stale:  res.Stale,
				Tenant: a.org.ID,
				TimeMs: elapsedMs(start),
			})
			return nil
		}

		var pretty any
		if err := json.Unmarshal(res.Value, &pretty); err != nil {
			return handleError(ErrInternal, err, "")
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintln(stdout, string(out))
		if res.Stale {
			fmt.Fprintln(stdout, ui.Hint(fmt.Sprintf("stale result from %s; refresh queued", res.StoredAt.Local().Format(time.DateTime))))
		}
		return nil
	},
}

// parseParams turns key=value pairs into a parameter map.
func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid parameter %q", p)
		}
		params[strings.TrimSpace(k)] = v
	}
	return params, nil
}

func init() {
	getCmd.Flags().StringArrayVarP(&getParams, "param", "p", nil, "Query parameter as key=value (repeatable)")
	getCmd.Flags().BoolVar(&getNoCache, "no-cache", false, "Bypass the cache and fetch from the API")
	rootCmd.AddCommand(getCmd)
}
