package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/jsxsite/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for jsxsite: the version, git commit,
build time, Go version and target platform.

Examples:
  jsxsite version                # Show version info
  jsxsite version --short        # Show short version only
  jsxsite version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return writeVersionJSON(w)
	case "text":
		if versionShort {
			fmt.Fprintln(w, version.GetShortVersion())
			return nil
		}
		writeVersionText(w)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func writeVersionText(w io.Writer) {
	info := version.GetBuildInfo()

	fmt.Fprintf(w, "jsxsite %s", info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}
	if version.IsDirty() {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)
}

func writeVersionJSON(w io.Writer) error {
	type output struct {
		*version.BuildInfo
		IsRelease bool `json:"is_release"`
		IsDirty   bool `json:"is_dirty"`
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output{
		BuildInfo: version.GetBuildInfo(),
		IsRelease: version.IsRelease(),
		IsDirty:   version.IsDirty(),
	})
}
