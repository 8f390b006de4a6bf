package cli

import (
	"fmt"
	"time"

	token_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/jwt"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the realtime gateway and read path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.auth.InsecureSecret && !cmd.Flags().Changed("secret") {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: JWT_ACCESS_SECRET is not set, signing with the insecure default secret")
			}

			tokens, err := token_adapter.NewTokenService(opts.auth.AccessSecret)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateToken(cmd.Context(), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "User id (subject claim)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}
