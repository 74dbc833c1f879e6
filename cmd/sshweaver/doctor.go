package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/sshweaver/internal/doctor"
)

var doctorServer string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that configured hostnames resolve",
	Long: `Doctor parses the managed ssh_config and looks each hostname up in
DNS, reporting entries that do not resolve along with any problems the
parser noticed. Nothing is modified.`,
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

		var opts []doctor.Option
		opts = append(opts, doctor.WithLogger(logger))
		if doctorServer != "" {
			opts = append(opts, doctor.WithServer(doctorServer))
		}
		d, err := doctor.New(opts...)
		if err != nil {
			return err
		}

		result, err := a.Doctor(cmd.Context(), d)
		if err != nil {
			return err
		}

		if result.OK() {
			fmt.Printf("checked %d entries, no problems found\n", result.Checked)
			return nil
		}

		for _, f := range result.Findings {
			fmt.Println(f.String())
		}
		return fmt.Errorf("%d problems found", len(result.Findings))
	},
}

func init() {
	doctorCmd.Flags().StringVar(&doctorServer, "server", "",
		"DNS server to query (host:port), defaults to the system resolver")
	rootCmd.AddCommand(doctorCmd)
}
