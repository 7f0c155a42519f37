package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/searchktools/fastry"
	"github.com/searchktools/fastry/app"
	"github.com/searchktools/fastry/core/codec"
	"github.com/searchktools/fastry/core/handlers"
	"github.com/searchktools/fastry/core/router"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table",
	Long: `Prints the routes that serve would register, encoded with --format
(` + strings.Join(codec.Names(), ", ") + `) or as a rendered table with --pretty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		routes, err := app.LoadRoutes(cfg)
		if err != nil {
			return err
		}

		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			out, err := renderTable(routes)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}

		format, _ := cmd.Flags().GetString("format")
		c, err := codec.Get(format)
		if err != nil {
			return err
		}
		if oc, ok := c.(*codec.OpenAPICodec); ok {
			oc.Version = fastry.Version
		}
		data, err := c.Encode(routes)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// renderTable renders routes as a markdown table for the terminal
func renderTable(routes []router.Route) (string, error) {
	var b strings.Builder
	b.WriteString("# Routes\n\n| Pattern | Source | Handler |\n|---|---|---|\n")
	for _, r := range routes {
		source, symbol, ok := strings.Cut(r.HandlerID, handlers.IDSeparator)
		if !ok {
			source, symbol = r.HandlerID, ""
		}
		fmt.Fprintf(&b, "| `%s` | %s | `%s` |\n", r.Pattern, source, symbol)
	}
	fmt.Fprintf(&b, "\n%d routes\n", len(routes))

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(b.String())
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringP("format", "f", codec.NameJSON, "Output format: "+strings.Join(codec.Names(), ", "))
	routesCmd.Flags().Bool("pretty", false, "Render a table instead of an encoded route table")
}
