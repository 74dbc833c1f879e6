package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gitlab.bluewillows.net/root/sshweaver/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain and cache an account API token",
	Long: `Login authenticates against the account with the configured username
and a password taken from SSHWEAVER_ACCOUNT_PASSWORD (or its _FILE
variant), prompting interactively when neither is set. The token is
cached in ` + "~/.config/sshweaver/credentials.toml" + ` for later runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		password := config.AccountPassword()
		if password == "" {
			password, err = promptPassword(cfg.AccountUsername)
			if err != nil {
				return err
			}
		}

		client := newAccountClient(cfg, logger)
		token, err := client.Login(cmd.Context(), cfg.AccountUsername, password)
		if err != nil {
			return fmt.Errorf("logging in as %s: %w", cfg.AccountUsername, err)
		}

		path := config.DefaultCredentialsPath()
		creds := &config.Credentials{}
		creds.Account.Username = cfg.AccountUsername
		creds.Account.Token = token
		if err := config.SaveCredentials(path, creds); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}

		fmt.Printf("logged in as %s, token cached in %s\n", cfg.AccountUsername, path)
		return nil
	},
}

// promptPassword reads the password from the terminal without echo, falling
// back to a plain line read when stdin is not a terminal.
func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", username)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
