package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat",
	Long: `Delete a chat and all of its messages.

Requires confirmation unless --force is used.

Examples:
  periscope delete chat_0c5d2f1a...
  periscope delete chat_0c5d2f1a... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	chatID := args[0]
	ctx := context.Background()

	ctrl := newController()
	chat, err := ctrl.LoadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat not found: %s", chatID)
	}

	if !deleteForce {
		fmt.Printf("About to delete: %s (%d messages)\n", chat.Title, len(chat.Messages))
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := ctrl.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	fmt.Printf("Deleted: %s\n", chat.Title)
	return nil
}
