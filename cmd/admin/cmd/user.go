package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basylab/balug/internal/service"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userDeleteCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var params service.CreateUserParams

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			params.Email = args[0]
			user, err := a.UserService.Create(cmd.Context(), params)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&params.Password, "password", "", "Initial password (omit for a passwordless account)")
	cmd.Flags().BoolVar(&params.EmailVerified, "verified", false, "Mark the email address as verified")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.UserService.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
