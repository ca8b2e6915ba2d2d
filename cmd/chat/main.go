package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	apiURL  string
	rawMode bool
	verbose bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "surveychat",
		Short: "Answer and review surveys as a chat in the terminal",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rawMode {
				color.NoColor = true
			}
		},
		SilenceUsage: true,
	}

	defaultAPI := os.Getenv("SURVEYCHAT_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "Survey API base URL")
	root.PersistentFlags().BoolVar(&rawMode, "raw", false, "Plain text output (no colors)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log API traffic to stderr")

	root.AddCommand(newFillCommand())
	root.AddCommand(newViewCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
