package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pyloft/console/pkg/engine"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List your applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		apps, err := s.client.ListApps(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "APP ID\tNAME\tSTATUS\tSTAGE")
		for _, app := range apps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", app.ID, app.Name, app.Status, app.DeployStage)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <app-id>",
	Short: "Show deployment status and recent events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		appID := args[0]
		app, err := s.client.GetApp(cmd.Context(), appID)
		if err != nil {
			return err
		}
		status, err := s.client.DeployStatus(cmd.Context(), appID)
		if err != nil {
			return err
		}

		phase := engine.PhaseFromStatus(status)

		fmt.Printf("App:    %s (%s)\n", app.Name, app.ID)
		fmt.Printf("Status: %s\n", status.Status)
		fmt.Printf("Phase:  %s (%.0f%%)\n", phase, engine.ProgressWidth(phase)*100)
		if status.PodStatus != "" {
			fmt.Printf("Pod:    %s\n", status.PodStatus)
		}
		if status.LastError != "" {
			fmt.Printf("Error:  %s\n", status.LastError)
		}

		resp, err := s.client.Events(cmd.Context(), appID)
		if err != nil {
			return nil // events are best effort
		}
		if len(resp.Events) > 0 {
			fmt.Println("\nRecent events (newest first):")
			shown := 0
			for i := len(resp.Events) - 1; i >= 0 && shown < s.cfg.EventTailDepth; i-- {
				ev := resp.Events[i]
				fmt.Printf("  %s  %-7s %s: %s\n",
					ev.Timestamp.Format("15:04:05"), ev.Type, ev.Reason, ev.Message)
				shown++
			}
		}
		return nil
	},
}

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <app-id>",
	Short: "Delete an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		appID := args[0]
		if !confirm(fmt.Sprintf("Delete app %s? This cannot be undone.", appID), deleteYes) {
			fmt.Println("Aborted.")
			return nil
		}

		if err := s.client.DeleteApp(cmd.Context(), appID); err != nil {
			return err
		}
		_ = s.store.DeleteAppPrefs(appID)
		fmt.Println("Deleted.")
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation")
}
