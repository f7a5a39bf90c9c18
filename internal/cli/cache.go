package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/atomicfile"
	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

// stderr receives progress output. Tests swap it.
var stderr io.Writer = os.Stderr

var (
	cacheClearQueries bool
	cacheDumpOutput   string
	cacheQueueMax     int
	cacheQueueLimit   int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local reference cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached record counts and sync times",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		st := a.store.Stats(cmd.Context())

		if isJSONOutput() {
			outputSuccess(st, &Meta{Tenant: a.org.ID})
			return nil
		}
		if !st.Available {
			fmt.Fprintln(stdout, ui.Warning("cache unavailable; lookups go straight to the API"))
			return nil
		}

		fmt.Fprintln(stdout, ui.Header("Cache for "+a.org.Name))
		t := ui.NewTable(3)
		for _, k := range st.Kinds {
			t.AddRow(k.Kind.String(), fmt.Sprintf("%d", k.Records), ui.Hint(formatTime(k.LastSynced)))
		}
		fmt.Fprint(stdout, t.Render(ui.TermWidth()))
		fmt.Fprintf(stdout, "\n%s, %s\n",
			ui.Count(st.CachedQueries, "cached query", "cached queries"),
			ui.Count(st.QueuedJobs, "queued refresh", "queued refreshes"))
		return nil
	},
}

type clearOutput struct {
	Kinds   []cache.Kind `json:"kinds"`
	Records int          `json:"records"`
	Queries int          `json:"queries,omitempty"`
}

var cacheClearCmd = &cobra.Command{
	Use:               "clear [type...]",
	Short:             "Remove cached records (all types when none given)",
	ValidArgsFunction: completeKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Valid types: project, person, service, company, task")
		}
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}

		out := clearOutput{Kinds: kinds}
		if out.Records, err = a.store.Clear(cmd.Context(), kinds...); err != nil {
			return handleError(ErrCacheUnavailable, err, "")
		}
		if cacheClearQueries {
			if out.Queries, err = a.store.ClearQueries(cmd.Context()); err != nil {
				return handleError(ErrCacheUnavailable, err, "")
			}
		}

		if isJSONOutput() {
			outputSuccess(out, &Meta{Tenant: a.org.ID})
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Removed %s", ui.Count(out.Records, "record", "records")))
		if cacheClearQueries {
			fmt.Fprintln(stdout, ui.Successf("Removed %s", ui.Count(out.Queries, "cached query", "cached queries")))
		}
		return nil
	},
}

type syncedKind struct {
	Kind    cache.Kind `json:"kind"`
	Records int        `json:"records"`
	Error   string     `json:"error,omitempty"`
}

var cacheSyncCmd = &cobra.Command{
	Use:   "sync [type...]",
	Short: "Download every entity of the given types into the cache",
	Long: `Download every entity of the given types (all when none given) and
upsert them into the cache by id. A type that fails to download keeps its
cached records.`,
	ValidArgsFunction: completeKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Valid types: project, person, service, company, task")
		}
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}

		start := time.Now()
		ctx := cmd.Context()
		progress := ui.NewProgress(stderr, "Syncing", len(kinds))
		results := make([]syncedKind, 0, len(kinds))
		failed := 0
		for _, k := range kinds {
			progress.Step(k.Endpoint())
			sk := syncedKind{Kind: k}
			records, err := a.remote.List(ctx, k)
			if err == nil {
				err = a.store.Upsert(ctx, k, records)
			}
			if err != nil {
				failed++
				sk.Error = err.Error()
				logger.Warn("sync failed", zap.String("kind", string(k)), zap.Error(err))
			} else {
				sk.Records = len(records)
			}
			results = append(results, sk)
		}
		progress.Done()

		if isJSONOutput() {
			outputSuccess(results, &Meta{Count: len(results), Tenant: a.org.ID, TimeMs: elapsedMs(start)})
			return nil
		}
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintln(stdout, ui.Error(fmt.Sprintf("%s: %s", r.Kind, r.Error)))
				continue
			}
			fmt.Fprintln(stdout, ui.Successf("%s: %s", r.Kind, ui.Count(r.Records, "record", "records")))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d types failed to sync", failed, len(results))
		}
		return nil
	},
}

var cacheDumpCmd = &cobra.Command{
	Use:               "dump <type>",
	Short:             "Write cached records of a type as YAML",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := cache.ParseKind(args[0])
		if err != nil {
			return handleError(ErrInvalidInput, err, "Valid types: project, person, service, company, task")
		}
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}

		toStdout := cacheDumpOutput == "" || cacheDumpOutput == "-"
		if toStdout && isJSONOutput() {
			records := a.store.Records(cmd.Context(), kind)
			outputSuccess(records, &Meta{Count: len(records), Tenant: a.org.ID})
			return nil
		}

		var buf bytes.Buffer
		if err := a.store.DumpYAML(cmd.Context(), &buf, kind); err != nil {
			return handleError(ErrInternal, err, "")
		}
		if toStdout {
			_, err := stdout.Write(buf.Bytes())
			return err
		}
		if err := atomicfile.WriteFile(cacheDumpOutput, buf.Bytes(), 0o644); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]string{"kind": string(kind), "file": cacheDumpOutput}, &Meta{Tenant: a.org.ID})
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Wrote %s records to %s", kind, cacheDumpOutput))
		return nil
	},
}

var cacheLoadCmd = &cobra.Command{
	Use:   "load <file|->",
	Short: "Load records from a YAML dump into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return handleError(ErrFileReadError, err, "")
			}
			defer f.Close()
			r = f
		}

		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		n, err := a.store.LoadYAML(cmd.Context(), r)
		if err != nil {
			return handleError(ErrInvalidInput, err, "Input must be produced by 'productive cache dump'")
		}

		if isJSONOutput() {
			outputSuccess(map[string]int{"records": n}, &Meta{Count: n, Tenant: a.org.ID})
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Loaded %s", ui.Count(n, "record", "records")))
		return nil
	},
}

var cacheQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and process queued cache refreshes",
}

var cacheQueueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued refreshes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		jobs := a.queue.List(cmd.Context(), cacheQueueLimit)

		if isJSONOutput() {
			outputSuccess(jobs, &Meta{Count: len(jobs), Tenant: a.org.ID})
			return nil
		}
		if len(jobs) == 0 {
			fmt.Fprintln(stdout, ui.Info("no queued refreshes"))
			return nil
		}
		t := ui.NewTable(2)
		for _, j := range jobs {
			t.AddRow(ui.Hint(j.QueuedAt.Local().Format(time.DateTime)), j.CacheKey)
		}
		fmt.Fprint(stdout, t.Render(ui.TermWidth()))
		return nil
	},
}

var cacheQueueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Re-fetch queued refreshes and update the query cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		limit := cacheQueueMax
		if limit <= 0 {
			limit = a.drainMax
		}

		start := time.Now()
		res, err := a.queue.Drain(cmd.Context(), a.remote, limit)
		if errors.Is(err, cache.ErrDrainLocked) {
			return handleError(ErrDrainLocked, err, "Another drain is running; try again shortly")
		}
		if err != nil {
			return handleError(ErrCacheUnavailable, err, "")
		}

		if isJSONOutput() {
			outputSuccess(res, &Meta{Tenant: a.org.ID, TimeMs: elapsedMs(start)})
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Processed %d: %d refreshed, %d failed, %d left",
			res.Processed, res.Succeeded, res.Failed, res.Skipped))
		return nil
	},
}

var cacheQueueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued refresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp(cmd)
		if a == nil {
			return err
		}
		n, err := a.queue.Clear(cmd.Context())
		if err != nil {
			return handleError(ErrCacheUnavailable, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]int{"removed": n}, &Meta{Tenant: a.org.ID})
			return nil
		}
		fmt.Fprintln(stdout, ui.Successf("Removed %s", ui.Count(n, "queued refresh", "queued refreshes")))
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearQueries, "queries", false, "Also clear cached API query results")
	cacheDumpCmd.Flags().StringVarP(&cacheDumpOutput, "output", "o", "", "Write to file instead of stdout")
	cacheQueueListCmd.Flags().IntVar(&cacheQueueLimit, "limit", 50, "Maximum jobs to list")
	cacheQueueDrainCmd.Flags().IntVar(&cacheQueueMax, "max", 0, "Maximum jobs to process (default from config)")

	cacheQueueCmd.AddCommand(cacheQueueListCmd, cacheQueueDrainCmd, cacheQueueClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheSyncCmd, cacheDumpCmd, cacheLoadCmd, cacheQueueCmd)
	rootCmd.AddCommand(cacheCmd)
}
