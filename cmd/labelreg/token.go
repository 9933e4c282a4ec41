package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"labelreg/api/grpcserver"
	"labelreg/internal/config"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <account>",
		Short: "Mint a bearer token for account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("LABELREG_JWT_SECRET is required")
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.TokenTTL
			}
			token, err := grpcserver.Mint([]byte(cfg.JWTSecret), args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default LABELREG_TOKEN_TTL, 0 never expires)")
	return cmd
}
