package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/pysugar/photo-slideshow/internal/config"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored Google accounts",
	}
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsRemoveCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			tokenMgr, err := newTokenManager(cfg, newAuthClient(cfg), nil)
			if err != nil {
				return err
			}

			accounts := tokenMgr.ListAll()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(accounts)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT ID\tEMAIL")
			for _, a := range accounts {
				fmt.Fprintf(tw, "%s\t%s\n", a.AccountID, a.Email)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAccountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Delete an account's stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			tokenMgr, err := newTokenManager(cfg, newAuthClient(cfg), nil)
			if err != nil {
				return err
			}

			removed, err := tokenMgr.Remove(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("account %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-secret <client-id> <client-secret>",
		Short: "Store the OAuth client secret in the OS keyring",
		Long: `Stores the client secret in the OS keyring under the client id.
Set use_keyring: true (or SLIDESHOW_USE_KEYRING=1) to read it back at startup.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.StoreSecret(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Client secret stored in keyring")
			return nil
		},
	}
}
