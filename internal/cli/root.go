package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "remindbot",
	Short: "Telegram reminder bot",
	Long:  "remindbot schedules note reminders, delivers them over Telegram and push, and keeps recurring series moving.",
	// bare invocation runs the bot
	RunE:          runBot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config file (json or yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(versionCmd)
}
