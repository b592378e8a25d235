package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/insight-cli/internal/fallback"
	"github.com/sells-group/insight-cli/internal/intent"
	"github.com/sells-group/insight-cli/internal/model"
	"github.com/sells-group/insight-cli/internal/planner"
	schemapkg "github.com/sells-group/insight-cli/internal/schema"
)

var planCmd = &cobra.Command{
	Use:   "plan [question]",
	Short: "Show the query plans a question would run, without executing them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		exec, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer exec.Close()

		tables, err := exec.Introspect(ctx)
		if err != nil {
			return err
		}
		controller := fallback.NewController(schemapkg.NewCache(), exec)
		desc, err := controller.Descriptor(tables)
		if err != nil {
			return err
		}

		question := strings.Join(args, " ")
		req := model.NewRequest(question)

		// Heuristics only: plan preview should not spend model tokens.
		classified, err := intent.NewClassifier(nil, "").Classify(ctx, req)
		if err != nil {
			return err
		}

		plans, err := planner.NewBuilder(cfg.Retrieval.MaxRows).Build(classified, desc)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(struct {
			Intent model.QueryIntent `json:"intent"`
			Plans  []model.QueryPlan `json:"plans"`
		}{classified, plans}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
