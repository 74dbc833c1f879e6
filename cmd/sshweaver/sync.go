package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/sshweaver/internal/account"
)

// loginHint points the user at the login command when the account rejected
// the cached token.
func loginHint(err error) error {
	if account.IsUnauthorized(err) {
		return fmt.Errorf("%w (run 'sshweaver login' to refresh the token)", err)
	}
	return err
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Push local config entries to the account",
	Long: `Export reads the managed ssh_config, plans the changes needed to make
the account reflect it, and applies them. Entries only present on the
account are left untouched. Entries the account rejects are reported
individually; the rest of the run still goes through.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		a, closer, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closer()

		report, err := a.RunExport(cmd.Context())
		if err != nil {
			return loginHint(err)
		}

		fmt.Print(report.Summary())
		if report.HasErrors() {
			return fmt.Errorf("%d entries were rejected by the account", report.FailedCount())
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Write account entries into the local config",
	Long: `Import fetches the account's connection records and folds them into
the managed ssh_config, with the account authoritative for matching
entries. Local-only entries are kept. The file is replaced atomically;
when any step fails, it is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		a, closer, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closer()

		report, err := a.RunImport(cmd.Context())
		if err != nil {
			return loginHint(err)
		}

		fmt.Print(report.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
