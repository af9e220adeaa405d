package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finsync/internal/shared/auth"
)

func issueTokenCmd() *cobra.Command {
	var (
		userID int64
		email  string
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Print a session token for a user (development)",
		Long: `Sign a bearer token with JWT_SECRET for calling the API as a user.
The token expires after 24 hours.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user-id must be positive")
			}
			token, err := auth.NewJWT(cfg.JWT.Secret).Generate(userID, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id to embed")
	cmd.Flags().StringVar(&email, "email", "", "email to embed")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
