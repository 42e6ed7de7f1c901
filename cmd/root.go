package cmd

import (
	"github.com/hookdump/hookdump/internal/config"
	"github.com/spf13/cobra"
)

const HOOKDUMP_VERSION = "0.1.0"

var (
	cfgFile string
	LogJSON bool
	NoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "hookdump",
	Short: "hookdump dumps your databases and delivers the artifacts to a chat webhook",
	Long: `hookdump is a command-line tool that backs up databases and drops the
resulting artifacts straight into a chat channel via an incoming webhook.
It dumps PostgreSQL, MySQL, SQLite, and Redis targets, compresses the
output, and splits files that exceed the platform's upload ceiling into
ordered parts so nothing gets rejected. Schedules, archive copies, and
status notifications turn it into a tiny backup pipeline for teams that
live in chat.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Initialize(cfgFile)
	},
}

func init() {
	rootCmd.Version = HOOKDUMP_VERSION
	rootCmd.SetVersionTemplate("hookdump version {{ .Version }}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&LogJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "disable colored log output")
}

func Execute() error {
	return rootCmd.Execute()
}
