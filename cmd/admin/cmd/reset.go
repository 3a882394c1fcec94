package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Inspect and manage password reset state",
	}

	cmd.AddCommand(resetInspectCmd())
	cmd.AddCommand(resetUnblockCmd())
	return cmd
}

func resetInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <email>",
		Short: "Print the password reset status without changing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.PasswordResetService.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}

func resetUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <email>",
		Short: "Lift a resend block before it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.PasswordResetService.Unblock(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "resend block lifted for %s\n", args[0])
			return nil
		},
	}
}
