package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/render"
)

// Version is the release string. Release builds set it with:
//
//	go build -ldflags "-X github.com/ugagro/greenwatch/cmd.Version=v0.3.1"
var Version = "v0.3.0"

// BuildTime is optionally injected alongside Version:
//
//	-ldflags "-X github.com/ugagro/greenwatch/cmd.BuildTime=2026-10-19T12:00:00Z"
var BuildTime = ""

type versionInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

// currentVersion collects the version plus the VCS stamp the Go toolchain
// embeds in module builds.
func currentVersion() versionInfo {
	info := versionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		BuildTime: BuildTime,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
			if len(info.Revision) > 12 {
				info.Revision = info.Revision[:12]
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the greenwatch version and build information",
	Long: `Print the greenwatch version string and build metadata.

Default output is plain text. Use --format json or jsonl for structured
output.`,
	Example: `  greenwatch version
  greenwatch version --format json | jq .version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersion()
		w := cmd.OutOrStdout()

		switch globalFlags.Format {
		case render.FormatJSON:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case render.FormatJSONL:
			return json.NewEncoder(w).Encode(info)
		default:
			fmt.Fprintf(w, "greenwatch %s\n", info.Version)
			if info.Revision != "" {
				dirty := ""
				if info.Modified {
					dirty = " (modified)"
				}
				fmt.Fprintf(w, "revision   %s%s\n", info.Revision, dirty)
			}
			fmt.Fprintf(w, "go         %s\n", info.GoVersion)
			fmt.Fprintf(w, "os         %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(w, "built      %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
