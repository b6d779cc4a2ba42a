package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nvoronin/periscope/internal/client"
)

var (
	askMode string
	askChat string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Ask a question and stream the answer to stdout.

Creates a new chat unless --chat continues an existing one. The mode
selects which tools the model may use; run 'periscope modes' to see
what is available.

Examples:
  periscope ask "What happened at CERN this week?"
  periscope ask "Summarize arxiv 2401.12345" --mode academic
  periscope ask "And the follow-up?" --chat chat_0c5d2f...`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "web", "search mode")
	askCmd.Flags().StringVarP(&askChat, "chat", "c", "", "continue an existing chat")
}

var suggestionStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6C6C6C")).
	Italic(true)

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	question := args[0]
	ctx := context.Background()

	ctrl := newController()
	if askChat != "" {
		if _, err := ctrl.LoadChat(ctx, askChat); err != nil {
			return err
		}
		if ctrl.CurrentChatID() == "" {
			return fmt.Errorf("chat not found: %s", askChat)
		}
	}

	chatID, err := ctrl.Submit(ctx, question, nil)
	if err != nil {
		return err
	}

	result, err := apiClient.Stream(ctx, client.StreamRequest{
		ChatID: chatID,
		Mode:   askMode,
	}, creds.Token, func(token string) error {
		fmt.Print(token)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println()

	if len(result.Suggestions) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, s := range result.Suggestions {
			fmt.Fprintln(os.Stderr, suggestionStyle.Render("→ "+s))
		}
	}
	if askChat == "" {
		fmt.Fprintf(os.Stderr, "\nChat: %s\n", chatID)
	}
	return nil
}
