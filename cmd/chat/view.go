package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"surveychat/internal/chat"
)

func newViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view <response-oid>",
		Short: "Replay a submitted response as the conversation it came from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := newClient().GetSubmission(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load submission: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range chat.Reconstruct(*sub) {
				printMessage(out, m)
			}
			dimColor.Fprintf(out, "submitted %s\n", sub.SubmittedAt.Local().Format("January 2, 2006 at 15:04"))
			return nil
		},
	}
}
