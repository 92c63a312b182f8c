package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/credential/sqlstore"
	"github.com/kbukum/scribe/logger"
)

const maskVisible = 7

var errNoStore = errors.New("credential store is disabled: set credentials.passphrase (SCRIBE_CREDENTIALS_PASSPHRASE)")

func newCredentialsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored API keys",
	}

	withStore := func(fn func(ctx context.Context, s *sqlstore.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)
			s, err := openStore(cfg.Credentials, logger.GetGlobalLogger())
			if err != nil {
				return err
			}
			if s == nil {
				return errNoStore
			}
			defer s.Close()
			return fn(cmd.Context(), s)
		}
	}

	set := &cobra.Command{
		Use:   "set <provider> <key>",
		Short: "Store a provider key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *sqlstore.Store) error {
				if err := s.Set(ctx, args[0], strings.TrimSpace(args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s key %s\n", args[0], credential.Mask(args[1], maskVisible))
				return nil
			})(cmd, args)
		},
	}

	get := &cobra.Command{
		Use:   "get <provider>",
		Short: "Show which key a provider resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)
			store, err := openStore(cfg.Credentials, logger.GetGlobalLogger())
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			key, ok := newResolver(store).Resolve(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("no key for %s (set %s or run `scribe credentials set %s <key>`)", args[0], credential.EnvVar(args[0]), args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), credential.Mask(key, maskVisible))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *sqlstore.Store) error {
				if err := s.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s key\n", args[0])
				return nil
			})(cmd, args)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List providers with stored keys",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, s *sqlstore.Store) error {
			names, err := s.List(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	}

	cmd.AddCommand(set, get, del, list)
	return cmd
}
