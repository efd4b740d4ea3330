package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janhq/whatsapp-relay/internal/config"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/logger"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/responses"
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Send a test message through an agent's channel",
	Long:  `Send a message through the agent's active channel without creating a chat and print the delivery outcome.`,
	RunE:  runSendTest,
}

func init() {
	sendTestCmd.Flags().String("agent", "", "Agent ID")
	sendTestCmd.Flags().String("phone", "", "Destination phone number")
	sendTestCmd.Flags().StringP("message", "m", "", "Message text")
	_ = sendTestCmd.MarkFlagRequired("agent")
	_ = sendTestCmd.MarkFlagRequired("phone")
	_ = sendTestCmd.MarkFlagRequired("message")
}

func runSendTest(cmd *cobra.Command, args []string) error {
	agentID, _ := cmd.Flags().GetString("agent")
	phone, _ := cmd.Flags().GetString("phone")
	message, _ := cmd.Flags().GetString("message")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.SweeperEnabled = false
	log := logger.New(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, cleanup, err := initializeApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := app.pipeline.SendTestMessage(ctx, agentID, phone, message)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(responses.FromOutcome(outcome), "", "  ")
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
