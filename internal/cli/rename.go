package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <chat-id> <title>",
	Short: "Rename a chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		ctx := context.Background()

		if err := newController().RenameChat(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed to: %s\n", args[1])
		return nil
	},
}
