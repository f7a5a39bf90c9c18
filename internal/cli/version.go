package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiometa/productive-tools-sub004/internal/buildinfo"
	"github.com/studiometa/productive-tools-sub004/internal/ui"
)

const defaultModulePath = "github.com/studiometa/productive-tools-sub004"

type versionInfo struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Fprintf(stdout, "productive %s\n", info.Version)
		t := ui.NewTable(2)
		t.AddRow(ui.Hint("module"), info.ModulePath)
		if info.Commit != "" {
			t.AddRow(ui.Hint("commit"), info.Commit)
		}
		if info.CommitTime != "" {
			t.AddRow(ui.Hint("built"), info.CommitTime)
		}
		t.AddRow(ui.Hint("go"), info.GoVersion)
		t.AddRow(ui.Hint("platform"), info.GOOS+"/"+info.GOARCH)
		if info.Modified {
			t.AddRow(ui.Hint("modified"), "yes")
		}
		fmt.Fprint(stdout, t.String())

		return nil
	},
}

// currentVersionInfo reads module and VCS data embedded by the Go toolchain.
// Values injected with -ldflags fill whatever the toolchain left empty.
func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:    "devel",
		ModulePath: defaultModulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	if bi, ok := readBuildInfo(); ok && bi != nil {
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}

		info.Version = normalizeVersion(bi.Main.Version)
		setIfEmpty := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		setIfEmpty(&info.ModulePath, bi.Main.Path)
		setIfEmpty(&info.GoVersion, bi.GoVersion)
		setIfEmpty(&info.GOOS, settings["GOOS"])
		setIfEmpty(&info.GOARCH, settings["GOARCH"])
		info.Commit = settings["vcs.revision"]
		info.CommitTime = settings["vcs.time"]
		info.Modified = strings.EqualFold(settings["vcs.modified"], "true")
	}

	if info.Version == "devel" && buildinfo.Version != "" {
		info.Version = normalizeVersion(buildinfo.Version)
	}
	if info.Commit == "" {
		info.Commit = buildinfo.Commit
	}
	if info.CommitTime == "" {
		info.CommitTime = buildinfo.Date
	}
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
