package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your chats",
	Long: `List your chats, most recently updated first.

Examples:
  periscope list
  periscope list -v`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx := context.Background()

	chats, err := newController().ListChats(ctx)
	if err != nil {
		return err
	}

	if len(chats) == 0 {
		fmt.Println("No chats yet. Start one with 'periscope ask' or 'periscope chat'.")
		return nil
	}

	fmt.Printf("Chats (%d):\n\n", len(chats))
	for _, chat := range chats {
		fmt.Printf("- %s  %s\n", chat.ID, chat.Title)
		if verbose {
			fmt.Printf("  updated %s, %d messages\n",
				chat.UpdatedAt.Format("2006-01-02 15:04"), len(chat.Messages))
		}
	}
	return nil
}
