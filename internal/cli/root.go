package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moodgate",
	Short: "Mood-aware validation for conversational memories",
	Long:  "Moodgate scores the emotional content of conversational memories and routes each one to auto-approve, human review, or auto-reject. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(thresholdsCmd)
}
