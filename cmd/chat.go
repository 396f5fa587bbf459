package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Starts an interactive conversation with the assistant. Type /reset to
forget the conversation so far and /exit (or Ctrl-D) to leave.`,
	RunE: runChat,
}

var (
	chatTenant  tenantFlags
	chatSession string
	chatTrace   bool
)

func init() {
	chatCmd.Flags().StringVar(&chatTenant.owner, "owner", "", "owner id the assistant acts for")
	chatCmd.Flags().StringVar(&chatTenant.property, "property", "", "property id the conversation is about")
	chatCmd.Flags().StringVar(&chatTenant.scope, "scope", "", "knowledge scope: property, owner or global (default from config)")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to continue")
	chatCmd.Flags().BoolVar(&chatTrace, "trace", false, "print the path and tool calls of each answer")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scope, err := chatTenant.toolScope(a.cfg.Retrieval.KBScope)
	if err != nil {
		return err
	}
	registry, err := a.buildTools()
	if err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	asst, err := a.buildAssistant(registry)
	if err != nil {
		return err
	}
	defer asst.sessions.Close()

	sessionID := chatSession
	if sessionID == "" {
		sessionID = session.NewID()
	}
	fmt.Printf("Session %s. Type /exit to quit.\n\n", sessionID)

	prompt := promptui.Prompt{Label: "you"}
	for {
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			asst.sessions.Clear(sessionID)
			fmt.Println("Conversation cleared.")
			continue
		}

		res, err := asst.orch.Handle(ctx, orchestrator.Request{
			SessionID: sessionID,
			Message:   line,
			Scope:     scope,
		})
		if err != nil {
			a.logger.Debug("chat turn failed", "error", err)
			fmt.Printf("assistant: %s\n\n", apperr.UserMessage(err, apperr.DetectLanguage(line)))
			continue
		}

		fmt.Printf("assistant: %s\n", res.Reply)
		if chatTrace {
			printTrace(res)
		}
		fmt.Println()
	}
}

func printTrace(res *orchestrator.Result) {
	fmt.Printf("  [%s, %d iterations, %s, %d tokens]\n",
		res.Path, res.Iterations, res.Duration.Round(time.Millisecond), res.Usage.InputTokens+res.Usage.OutputTokens)
	for _, tc := range res.ToolCalls {
		status := "ok"
		if !tc.OK {
			status = "failed: " + tc.Error
		}
		fmt.Printf("  - %s %s (%s)\n", tc.Name, truncate(string(tc.Arguments), 80), status)
	}
}
