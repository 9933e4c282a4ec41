package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"labelreg/api/grpcserver"
	"labelreg/domain/ledger"
)

// clientSettings resolves the server address and token from flags,
// LABELREG_ADDR / LABELREG_TOKEN, or a client config file, in that order.
type clientSettings struct {
	v *viper.Viper
}

func newClientSettings(cmd *cobra.Command) *clientSettings {
	cmd.Flags().String("addr", "localhost:50051", "registry server address (env LABELREG_ADDR)")
	cmd.Flags().String("token", "", "bearer token (env LABELREG_TOKEN)")
	cmd.Flags().String("client-config", "", "YAML file with addr and token keys")

	v := viper.New()
	v.SetEnvPrefix("LABELREG")
	v.AutomaticEnv()
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("token", cmd.Flags().Lookup("token"))
	return &clientSettings{v: v}
}

func (s *clientSettings) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("client-config")
	if path == "" {
		return nil
	}
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	return nil
}

// with dials the server and hands fn a client. The connection is closed
// when fn returns.
func (s *clientSettings) with(ctx context.Context, fn func(context.Context, *grpcserver.Client) error) error {
	addr := s.v.GetString("addr")
	token := s.v.GetString("token")
	if token == "" {
		return errors.New("a bearer token is required; mint one with `labelreg token`")
	}
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer cc.Close()
	return fn(ctx, grpcserver.NewClient(cc, token))
}

func newClientCmds() []*cobra.Command {
	return []*cobra.Command{
		clientCmd("set <label>", "Set or replace your label", cobra.ExactArgs(1),
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, args []string) error {
				return c.SetLabel(ctx, []byte(args[0]))
			}),
		clientCmd("clear", "Clear your label and release its deposit", cobra.NoArgs,
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, _ []string) error {
				deposit, err := c.ClearLabel(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "released %d\n", deposit)
				return nil
			}),
		clientCmd("lookup <account>", "Show the label and balances of account", cobra.ExactArgs(1),
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, args []string) error {
				who := ledger.AccountID(args[0])
				bal, err := c.Balance(ctx, who)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "account:  %s\nfree:     %d\nreserved: %d\n", who, bal.Free, bal.Reserved)
				e, err := c.Lookup(ctx, who)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "label:    %q\ndeposit:  %d\n", e.Label.String(), e.Deposit)
				return nil
			}),
		clientCmd("force-set <target> <label>", "Set the label of target (authority only)", cobra.ExactArgs(2),
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, args []string) error {
				return c.ForceSetLabel(ctx, ledger.AccountID(args[0]), []byte(args[1]))
			}),
		clientCmd("force-clear <target>", "Clear the label of target (authority only)", cobra.ExactArgs(1),
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, args []string) error {
				deposit, err := c.ForceClearLabel(ctx, ledger.AccountID(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed deposit %d\n", deposit)
				return nil
			}),
		clientCmd("endow <account> <amount>", "Mint free balance into account (authority only)", cobra.ExactArgs(2),
			func(ctx context.Context, c *grpcserver.Client, cmd *cobra.Command, args []string) error {
				amount, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("amount: %w", err)
				}
				return c.Endow(ctx, ledger.AccountID(args[0]), ledger.Balance(amount))
			}),
	}
}

func clientCmd(
	use, short string,
	args cobra.PositionalArgs,
	run func(context.Context, *grpcserver.Client, *cobra.Command, []string) error,
) *cobra.Command {
	var settings *clientSettings
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.load(cmd); err != nil {
				return err
			}
			return settings.with(cmd.Context(), func(ctx context.Context, c *grpcserver.Client) error {
				return run(ctx, c, cmd, args)
			})
		},
	}
	settings = newClientSettings(cmd)
	return cmd
}
