package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/insight-cli/internal/fallback"
	"github.com/sells-group/insight-cli/internal/model"
	schemapkg "github.com/sells-group/insight-cli/internal/schema"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Introspect the store and print the derived schema descriptor",
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

		out, err := renderDescriptor(desc, schemaFormat)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// renderDescriptor serializes a descriptor as json or yaml.
func renderDescriptor(desc *model.SchemaDescriptor, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(desc, "", "  ")
	case "yaml":
		return yaml.Marshal(desc)
	default:
		return nil, eris.Errorf("unknown format %q, want json or yaml", format)
	}
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(schemaCmd)
}
