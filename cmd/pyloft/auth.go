package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store the platform API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.store.SetToken(args[0]); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Println("Token saved.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.store.ClearToken(); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}
