package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List available search modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		ctx := context.Background()

		modeList, err := apiClient.ListModes(ctx)
		if err != nil {
			return err
		}
		sort.Slice(modeList, func(i, j int) bool { return modeList[i].ID < modeList[j].ID })

		fmt.Printf("Modes (%d):\n\n", len(modeList))
		for _, m := range modeList {
			fmt.Printf("- %s\n", m.ID)
			if len(m.Tools) > 0 {
				fmt.Printf("  tools: %s\n", strings.Join(m.Tools, ", "))
			}
		}
		return nil
	},
}
