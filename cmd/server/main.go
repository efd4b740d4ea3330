package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "whatsapp-relay",
	Short: "WhatsApp relay - Evolution API webhooks to automated agent replies",
	Long: `whatsapp-relay receives Evolution API webhooks, records conversations
and answers inbound messages through the configured agent.

Examples:
  whatsapp-relay serve
  whatsapp-relay migrate
  whatsapp-relay send-test --agent <agent-id> --phone 5511988887777 --message "hello"`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnvFiles()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sendTestCmd)
}
