package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/logstream"
	"github.com/pyloft/console/pkg/storage"
	"github.com/pyloft/console/pkg/types"
)

var (
	logsApp    string
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show application logs, streaming live when possible",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		rec := logstream.New(s.client, s.cfg,
			logstream.WithBroker(broker),
			logstream.WithLineObserver(func(line types.LogLine) {
				if logsFollow {
					printLogLine(line)
				}
			}))

		if !logsFollow {
			// One-shot fetch; no channel lifecycle involved.
			resp, err := s.client.Logs(cmd.Context(), logsApp, s.cfg.LogBufferCap)
			if err != nil {
				return err
			}
			for _, line := range resp.Logs {
				printLogLine(line)
			}
			if resp.Error != "" {
				fmt.Printf("-- %s --\n", resp.Error)
			}
			return nil
		}

		// Subscribe before attaching so the initial mode event is seen too.
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)

		rec.Attach(cmd.Context(), logsApp)
		defer rec.Detach()

		// Remember that this user watches logs, like the console sidebar does.
		_ = s.store.SetPref(logsApp, storage.PrefSidebarTab, "logs")
		_ = s.store.SetPref(logsApp, storage.PrefSidebarOpen, "true")

		fmt.Printf("Following logs for %s, Ctrl-C to stop\n", logsApp)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sig:
				return nil
			case <-cmd.Context().Done():
				return nil
			case ev, ok := <-sub:
				if !ok {
					return nil
				}
				switch ev.Type {
				case events.EventLogMode:
					fmt.Printf("-- log channel now %s --\n", ev.Message)
				case events.EventLogError:
					fmt.Printf("-- %s --\n", ev.Message)
				}
			}
		}
	},
}

func printLogLine(line types.LogLine) {
	ts := line.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Printf("%s  %s\n", ts.Format(time.TimeOnly), line.Message)
}

func init() {
	logsCmd.Flags().StringVar(&logsApp, "app", "", "app ID (required)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", true, "keep the channel open and print new lines")
	_ = logsCmd.MarkFlagRequired("app")
}
