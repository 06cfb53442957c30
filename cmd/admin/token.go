package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/identity"
)

func newTokenCmd(a *app) *cobra.Command {
	var name string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := identity.NewPgDirectory(a.pool).GetUserByUsername(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("load user %q: %w", name, err)
			}

			token, err := auth.IssueToken([]byte(a.cfg.JWTSecret), a.cfg.JWTIssuer, user.Username, user.Role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "username", "", "user to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
