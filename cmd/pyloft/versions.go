package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyloft/console/pkg/draft"
	"github.com/pyloft/console/pkg/engine"
)

var versionsApp string

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List deployed versions of an app",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		coord := draft.New(s.client, engine.New(s.client, s.cfg), s.cfg)
		versions, err := coord.ListVersions(cmd.Context(), versionsApp)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No versions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tDEPLOYED AT\tHASH")
		for i, v := range versions {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i, v.DeployedAt.Format(time.RFC3339), v.CodeHash)
		}
		return w.Flush()
	},
}

var (
	rollbackApp string
	rollbackYes bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <version-index>",
	Short: "Roll an app back to a previous version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var index int
		if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil || index < 0 {
			return fmt.Errorf("version index must be a non-negative integer, got %q", args[0])
		}

		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		if !confirm(fmt.Sprintf("Roll %s back to version %d? Unsaved local changes are discarded.", rollbackApp, index), rollbackYes) {
			fmt.Println("Aborted.")
			return nil
		}

		coord := draft.New(s.client, engine.New(s.client, s.cfg), s.cfg)
		if err := coord.Rollback(cmd.Context(), rollbackApp, index); err != nil {
			return err
		}

		// Server state changed underneath us; show the fresh truth.
		app, err := coord.LoadExistingApp(cmd.Context(), rollbackApp)
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back. App status: %s\n", app.Status)
		return nil
	},
}

func init() {
	versionsCmd.Flags().StringVar(&versionsApp, "app", "", "app ID (required)")
	_ = versionsCmd.MarkFlagRequired("app")

	rollbackCmd.Flags().StringVar(&rollbackApp, "app", "", "app ID (required)")
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "skip confirmation")
	_ = rollbackCmd.MarkFlagRequired("app")
}
