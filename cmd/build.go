package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/jsxsite/internal/site"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	Long: `Build every page, asset and passthrough copy into the output directory.

The output directory is emptied first unless --no-clean is given.

Examples:
  jsxsite build                   # Clean and build
  jsxsite build --no-clean        # Rebuild on top of the existing output
  jsxsite build -l debug          # Show cache and compile timings`,
	RunE: runBuild,
}

var buildNoClean bool

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildNoClean, "no-clean", false, "Keep the existing output directory contents")
}

func runBuild(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !buildNoClean {
		if err := sess.site.Clean(); err != nil {
			return err
		}
	}

	report, err := sess.site.Build(sess.ctx)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, report *site.Report) {
	fmt.Fprintf(w, "Wrote %d page(s)", len(report.Pages))
	if report.Unchanged > 0 {
		fmt.Fprintf(w, ", %d unchanged", report.Unchanged)
	}
	if report.Assets != nil && report.Assets.Built() > 0 {
		fmt.Fprintf(w, ", %d asset(s)", report.Assets.Built())
	}
	if report.Copied > 0 {
		fmt.Fprintf(w, ", copied %d file(s)", report.Copied)
	}
	fmt.Fprintf(w, " in %dms\n", report.Duration.Milliseconds())
}
