package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bgdnvk/resonance/internal/orchestrator"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Run one chat turn through the orchestrator",
	Long: `Classify the message, route it, ground it in the knowledge index and print
the synthesized reply.

Examples:
  resonance chat "This is an emergency, I need help NOW"
  resonance chat --history "we deployed at noon" "why is latency up?"
  resonance chat --backend dual --json "compare the two migration plans"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		history, _ := cmd.Flags().GetStringArray("history")
		backend, _ := cmd.Flags().GetString("backend")
		companion, _ := cmd.Flags().GetString("companion")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.orch.Handle(ctx, orchestrator.ChatRequest{
			Message:          strings.Join(args, " "),
			History:          history,
			CompanionContext: companion,
			PreferredBackend: backend,
		})
		if err != nil {
			return err
		}
		return printChat(cmd, resp, asJSON)
	},
}

func printChat(cmd *cobra.Command, resp orchestrator.ChatResponse, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintln(out, resp.Response)
	fmt.Fprintf(out, "\n[model=%s emotion=%s confidence=%.2f escalation=%d]\n", resp.Model, resp.Emotion, resp.Confidence, resp.EscalationLevel)
	return nil
}

func init() {
	chatCmd.Flags().StringArray("history", nil, "prior turn, oldest first (repeatable)")
	chatCmd.Flags().String("backend", "", "preferred backend: analytic, empathetic or dual")
	chatCmd.Flags().String("companion", "", "companion/persona context")
	chatCmd.Flags().Bool("json", false, "print the response as JSON")
	rootCmd.AddCommand(chatCmd)
}
