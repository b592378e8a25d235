package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askTurns []string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one business question with gathered context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		exec, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer exec.Close()

		p := buildPipeline(exec)

		question := strings.Join(args, " ")
		resp, err := p.Run(ctx, question, askTurns...)
		if err != nil {
			return err
		}

		if resp.NeedsClarification() {
			fmt.Fprintf(cmd.OutOrStdout(), "Please clarify: %s\n", resp.Intent.ClarifyReason)
			return nil
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	askCmd.Flags().StringArrayVar(&askTurns, "turn", nil, "prior conversation turn, repeatable")
	rootCmd.AddCommand(askCmd)
}
