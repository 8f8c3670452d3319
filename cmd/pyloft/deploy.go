package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pyloft/console/pkg/draft"
	"github.com/pyloft/console/pkg/engine"
	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/types"
)

var (
	deployApp        string
	deployName       string
	deployFile       string
	deployEnv        []string
	deployYes        bool
	deployBackground bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy code and follow progress until it is live",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		code, err := os.ReadFile(deployFile)
		if err != nil {
			return fmt.Errorf("read code file: %w", err)
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		eng := engine.New(s.client, s.cfg, engine.WithBroker(broker))
		coord := draft.New(s.client, eng, s.cfg, draft.WithBroker(broker))

		if deployApp != "" {
			if _, err := coord.LoadExistingApp(cmd.Context(), deployApp); err != nil {
				return err
			}
		} else {
			coord.NewApp(deployName, "")
		}
		coord.SetBuffer(string(code))
		if deployName != "" {
			coord.SetName(deployName)
		}
		coord.SetEnvVars(parseEnvFlags(deployEnv))

		for _, v := range coord.EnvVars() {
			if !draft.ValidEnvKey(v.Key) {
				fmt.Printf("Warning: env key %q is not a valid identifier\n", v.Key)
			}
		}

		if !confirm("Deploy now?", deployYes) {
			fmt.Println("Aborted.")
			return nil
		}

		done := make(chan error, 1)
		coord.OnDeploySuccess(func(a types.DeployAttempt) {
			fmt.Printf("Deployment ready in %.0fs\n", a.DurationSeconds)
			done <- nil
		})
		coord.OnDeployFailure(func(a types.DeployAttempt) {
			done <- fmt.Errorf("deployment failed: %s", a.ErrorReason)
		})

		// The machines narrate through the broker; the CLI is just another
		// subscriber painting the events.
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		go func() {
			for ev := range sub {
				switch ev.Type {
				case events.EventPhaseChanged:
					p := types.Phase(ev.Message)
					fmt.Printf("  %-20s %3.0f%%\n", p, engine.ProgressWidth(p)*100)
				case events.EventDraftSaved:
					fmt.Printf("  %s\n", ev.Message)
				}
			}
		}()

		appID, err := coord.Deploy(cmd.Context(), deployBackground)
		if err != nil {
			return err
		}
		fmt.Printf("Deploying app %s...\n", appID)

		if err := <-done; err != nil {
			for _, ev := range eng.EventTail() {
				fmt.Printf("  %s %s: %s\n", ev.Type, ev.Reason, ev.Message)
			}
			return err
		}

		app, err := s.client.GetApp(cmd.Context(), appID)
		if err == nil {
			fmt.Printf("Open App: %s\n", eng.OpenAppURL(app))
		}
		return nil
	},
}

var validateApp string

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate code without deploying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read code file: %w", err)
		}

		eng := engine.New(s.client, s.cfg)
		result, err := eng.Validate(cmd.Context(), validateApp, string(code))
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Println("Valid.")
			return nil
		}

		// Mirror the editor decoration: point at the offending line, and
		// the file when the result names one.
		location := ""
		if result.Line > 0 {
			location = fmt.Sprintf(" (line %d", result.Line)
			if result.File != "" {
				location += " in " + result.File
			}
			location += ")"
		}
		return fmt.Errorf("invalid: %s%s", result.Message, location)
	},
}

var saveApp string

var saveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Save code as the app's draft without deploying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read code file: %w", err)
		}

		eng := engine.New(s.client, s.cfg)
		coord := draft.New(s.client, eng, s.cfg)
		if _, err := coord.LoadExistingApp(cmd.Context(), saveApp); err != nil {
			return err
		}
		coord.SetBuffer(string(code))

		outcome, err := coord.SaveDraft(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(outcome.Message)
		fmt.Printf("Status: %s\n", coord.StatusLabel())
		return nil
	},
}

func parseEnvFlags(pairs []string) []types.EnvVar {
	vars := make([]types.EnvVar, 0, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		vars = append(vars, types.EnvVar{Key: key, Value: value})
	}
	return vars
}

func init() {
	deployCmd.Flags().StringVar(&deployApp, "app", "", "existing app ID (omit to create)")
	deployCmd.Flags().StringVar(&deployName, "name", "", "app name")
	deployCmd.Flags().StringVarP(&deployFile, "file", "f", "app.py", "code file to deploy")
	deployCmd.Flags().StringArrayVarP(&deployEnv, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "skip confirmation")
	deployCmd.Flags().BoolVar(&deployBackground, "background", false, "use the longer background deadline")

	validateCmd.Flags().StringVar(&validateApp, "app", "", "existing app ID")

	saveCmd.Flags().StringVar(&saveApp, "app", "", "app ID (required)")
	_ = saveCmd.MarkFlagRequired("app")
}
