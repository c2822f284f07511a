package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
)

func newTokenCmd(getenv func(string) string) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify access tokens",
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", "", "signing secret (fallback: "+envJWTSecret+")")

	tokenService := func(options ...auth.TokenOption) (*auth.TokenService, error) {
		key := envDefault(getenv, envJWTSecret, "")
		if secret != "" {
			key = secret
		}
		if key == "" {
			return nil, errors.New(envJWTSecret + " (or --secret) is required")
		}
		return auth.NewTokenService([]byte(key), options...)
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <customer-id>",
		Short: "Issue a token for a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := tokenService(auth.WithTTL(ttl))
			if err != nil {
				return err
			}
			token, err := tokens.Issue(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")

	var subject string
	verify := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token and print its subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := tokenService()
			if err != nil {
				return err
			}
			if subject != "" {
				if err := tokens.Validate(args[0], subject); err != nil {
					return fmt.Errorf("token rejected: %w", err)
				}
			}
			owner, err := tokens.Authenticate(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "valid subject=%s\n", owner)
			return err
		},
	}
	verify.Flags().StringVar(&subject, "subject", "", "expected customer id")

	cmd.AddCommand(issue, verify)
	return cmd
}
