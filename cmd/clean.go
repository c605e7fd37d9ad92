package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Empty the output directory",
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.site.Clean(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s\n", sess.site.Config().OutputDir())
	return nil
}
